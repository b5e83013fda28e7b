package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
)

// ErrorType classifies a failed request
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeCanceled    ErrorType = "canceled"
	ErrorTypeClient      ErrorType = "client_error"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error is a failed request with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	URL     string
	Err     error
}

func (e *Error) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap returns the transport error, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// FromResult builds an Error for a request that failed with err or returned
// a non-2xx status. It returns nil for a successful request.
func FromResult(url string, statusCode int, err error) *Error {
	if err != nil {
		return &Error{
			Type:    typeOf(err),
			Message: err.Error(),
			URL:     url,
			Err:     err,
		}
	}

	if statusCode >= 200 && statusCode <= 299 {
		return nil
	}

	return &Error{
		Type:    TypeForStatusCode(statusCode),
		Message: fmt.Sprintf("unexpected status from %s", url),
		Code:    statusCode,
		URL:     url,
	}
}

func typeOf(err error) ErrorType {
	if stderrors.Is(err, context.Canceled) {
		return ErrorTypeCanceled
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
		return ErrorTypeNetwork
	}

	return ErrorTypeUnknown
}

// TypeForStatusCode maps an HTTP status to an ErrorType
func TypeForStatusCode(statusCode int) ErrorType {
	switch {
	case statusCode >= 500:
		return ErrorTypeServerError
	case statusCode >= 400:
		return ErrorTypeClient
	default:
		return ErrorTypeUnknown
	}
}

// IsType reports whether err is an *Error of the given type
func IsType(err error, t ErrorType) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Type == t
}
