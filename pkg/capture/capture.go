package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrIncomplete is returned by Size when the body was closed before EOF
	ErrIncomplete = errors.New("response body closed before EOF")

	// ErrInvalidLength is returned by Size for an unparsable Content-Length
	ErrInvalidLength = errors.New("invalid content-length header")

	errBodyClosed = errors.New("read on closed response body")
)

// Option configures Wrap
type Option func(*countingBody)

// WithDrain makes an early Close keep the connection open and read the rest
// of the body in the background, for at most timeout, so Size still reports
// the full length. The caller's Close returns immediately.
func WithDrain(timeout time.Duration) Option {
	return func(b *countingBody) { b.drainTimeout = timeout }
}

// Response is a read-only view of a response for logging. It never reads the
// body itself: the bytes flow to the original caller and are only counted on
// the way through.
type Response struct {
	StatusCode int
	Header     http.Header
	URL        *url.URL

	body *countingBody
}

// Wrap captures resp for inspection and swaps resp.Body for a pass-through
// counter. The returned view stays valid after the caller closes the body.
func Wrap(req *http.Request, resp *http.Response, opts ...Option) *Response {
	r := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
	}
	if r.Header == nil {
		r.Header = make(http.Header)
	}

	switch {
	case resp.Request != nil && resp.Request.URL != nil:
		r.URL = resp.Request.URL
	case req != nil:
		r.URL = req.URL
	}

	// 101 bodies are io.ReadWriteCloser and must keep their concrete type
	if resp.Body != nil && resp.Body != http.NoBody && resp.StatusCode != http.StatusSwitchingProtocols {
		r.body = newCountingBody(resp.Body)
		for _, opt := range opts {
			opt(r.body)
		}
		resp.Body = r.body
	}

	return r
}

// OK reports whether the status is in the 2xx range
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// ContentType returns the Content-Type header
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// URLString returns the response URL or an empty string
func (r *Response) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Ready reports whether Size would return without waiting
func (r *Response) Ready() bool {
	if r.Header.Get("Content-Length") != "" || r.body == nil {
		return true
	}
	select {
	case <-r.body.done:
		return true
	default:
		return false
	}
}

// Size returns the response size in bytes. The Content-Length header is used
// when present; otherwise Size blocks until the body has been read to EOF
// (by the caller or a drain) or closed, or ctx is done.
func (r *Response) Size(ctx context.Context) (int64, error) {
	if v := r.Header.Get("Content-Length"); v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidLength, v)
		}
		return n, nil
	}

	if r.body == nil {
		return 0, nil
	}

	select {
	case <-r.body.done:
		if !r.body.complete {
			return 0, ErrIncomplete
		}
		return r.body.n.Load(), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// countingBody counts bytes read through it and signals when the stream ends
type countingBody struct {
	rc           io.ReadCloser
	n            atomic.Int64
	drainTimeout time.Duration

	// mu serializes reads of rc between the caller and the drain
	mu     sync.Mutex
	closed atomic.Bool

	once     sync.Once
	done     chan struct{}
	complete bool
}

func newCountingBody(rc io.ReadCloser) *countingBody {
	return &countingBody{
		rc:   rc,
		done: make(chan struct{}),
	}
}

func (b *countingBody) Read(p []byte) (int, error) {
	if b.closed.Load() {
		return 0, errBodyClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.read(p)
}

func (b *countingBody) read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	b.n.Add(int64(n))
	if err == io.EOF {
		b.finish(true)
	} else if err != nil {
		b.finish(false)
	}
	return n, err
}

func (b *countingBody) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	select {
	case <-b.done:
		return b.rc.Close()
	default:
	}

	if b.drainTimeout <= 0 {
		err := b.rc.Close()
		b.finish(false)
		return err
	}

	go b.drain()
	return nil
}

// drain reads the remainder through the counter, then closes rc. rc is
// closed early when the timeout fires, which unblocks a pending read.
func (b *countingBody) drain() {
	timer := time.AfterFunc(b.drainTimeout, func() {
		b.rc.Close()
		b.finish(false)
	})
	defer timer.Stop()

	b.mu.Lock()
	defer b.mu.Unlock()

	buf := make([]byte, 32*1024)
	for {
		if _, err := b.read(buf); err != nil {
			break
		}
	}
	b.rc.Close()
}

// finish records the outcome once; complete is published by closing done
func (b *countingBody) finish(eof bool) {
	b.once.Do(func() {
		b.complete = eof
		close(b.done)
	})
}
