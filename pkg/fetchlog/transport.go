package fetchlog

import (
	"net/http"
	"path/filepath"
	"runtime"
	"strings"

	"fetchlog/pkg/logger"
)

// Transport is the RoundTripper installed by Attach and returned by Wrap.
// Its owner marks it as belonging to a Logger.
type Transport struct {
	// Base performs the real request. nil means http.DefaultTransport.
	Base http.RoundTripper

	owner    *Logger
	client   *http.Client // follows redirects above this transport; nil means default policy
	explicit bool
}

// RoundTrip sends req through Base unchanged and queues a log line for the
// response. Errors from Base are returned as is and not logged, and so are
// redirects the client goes on to follow.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	origin := callerFile()
	start := t.owner.now()
	resp, err := base.RoundTrip(req)
	end := t.owner.now()
	if err != nil || resp == nil {
		return resp, err
	}

	t.owner.intercept(t, req, start, end, resp, origin)
	return resp, nil
}

// Owner returns the Logger that created t
func (t *Transport) Owner() *Logger {
	return t.owner
}

// Attach replaces the client's transport with a logging Transport. It does
// nothing when already attached, without a client, or on a js/wasm host.
func (l *Logger) Attach() error {
	if !l.server || l.client == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if l.attachedLocked() {
		return nil
	}

	l.client.Transport = l.transport
	logger.LogComponentStart(l.log, "interceptor", map[string]interface{}{
		"mode":    l.Mode().String(),
		"type":    l.cfg.Type.String(),
		"workers": l.queue.Workers(),
	})
	return nil
}

// Detach restores the transport captured when the Logger was created. It
// does nothing when not attached.
func (l *Logger) Detach() {
	if !l.server || l.client == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.attachedLocked() {
		return
	}

	l.client.Transport = l.base
	logger.LogComponentStop(l.log, "interceptor", "detached")
}

// IsAttached reports whether the client currently uses this Logger's Transport
func (l *Logger) IsAttached() bool {
	if l.client == nil {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attachedLocked()
}

func (l *Logger) attachedLocked() bool {
	t, ok := l.client.Transport.(*Transport)
	return ok && t.owner == l
}

// Wrap returns a logging RoundTripper around base for clients built by the
// caller. It logs whether or not the Logger is attached. Redirects are
// assumed to follow the default client policy.
func (l *Logger) Wrap(base http.RoundTripper) http.RoundTripper {
	return &Transport{Base: base, owner: l, explicit: true}
}

var (
	pkgDir        string
	skipFunctions = []string{"net/http.", "runtime."}
)

func init() {
	if _, file, _, ok := runtime.Caller(0); ok {
		pkgDir = filepath.Dir(file)
	}
}

// callerFile returns the file of the first stack frame outside net/http and
// the logger itself, i.e. the code that issued the request.
func callerFile() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if frame.File != "" && !internalFrame(frame) {
			return frame.File
		}
		if !more {
			return ""
		}
	}
}

func internalFrame(frame runtime.Frame) bool {
	for _, prefix := range skipFunctions {
		if strings.HasPrefix(frame.Function, prefix) {
			return true
		}
	}
	return filepath.Dir(frame.File) == pkgDir && !strings.HasSuffix(frame.File, "_test.go")
}
