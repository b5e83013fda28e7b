// Package capture provides the inspection side of an intercepted response.
//
// Go response bodies are single-use streams, so instead of duplicating the
// body the package wraps it in a counter that forwards every byte unchanged
// to the caller. The logger reads status, headers and URL from the captured
// Response and asks Size for the byte count, which resolves from the
// Content-Length header or, without one, once the caller finishes reading.
package capture
