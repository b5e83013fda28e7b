// Package fetchlog logs every response an *http.Client receives.
//
// A Logger swaps the client's Transport for a decorator that times the real
// RoundTripper, hands the caller the untouched response and queues one line
// per request for a background worker. A redirect chain the client follows
// yields a single line for its final response. Bodies without Content-Length
// are measured as they stream, each on its own goroutine, so a slow body
// only delays its own line. Lines are built by package format and can be
// filtered by category and mode:
//
//	info   category, status, duration, url, size
//	debug  category, status, duration, url, originFile, timestamp
//	error  like debug, only for responses outside 2xx
//
// Most programs use the process-wide instance:
//
//	l := fetchlog.Initialize(fetchlog.Config{Mode: fetchlog.ModeDebug})
//	if err := l.Attach(); err != nil {
//		return err
//	}
//	defer l.Close(ctx)
//
// Initialize only configures on its first call. Code that composes its own
// clients can use New and Wrap instead of the package-level instance.
package fetchlog
