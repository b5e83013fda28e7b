package fetchlog

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"fetchlog/internal/queue"
	"fetchlog/pkg/capture"
	"fetchlog/pkg/category"
	"fetchlog/pkg/format"
	"fetchlog/pkg/metrics"
)

// maxRedirects matches the limit of http.Client's default redirect policy
const maxRedirects = 10

// Call is one intercepted request and its captured response
type Call struct {
	Request  *http.Request
	Start    time.Time
	End      time.Time
	Response *capture.Response
	Origin   string
}

// Duration returns End-Start in milliseconds
func (c Call) Duration() float64 {
	return float64(c.End.Sub(c.Start)) / float64(time.Millisecond)
}

// Category classifies the response
func (c Call) Category() category.Category {
	return category.Classify(c.Response.ContentType(), c.Response.URLString())
}

// LogRequest queues a line for a response captured by the caller. It only
// logs while the Logger is attached.
func (l *Logger) LogRequest(req *http.Request, start, end time.Time, resp *capture.Response) {
	if resp == nil || !l.active(false) {
		return
	}

	call := Call{
		Request:  req,
		Start:    start,
		End:      end,
		Response: resp,
		Origin:   callerFile(),
	}
	cat := call.Category()
	columns, ok := l.plan(cat, resp.StatusCode, end.Sub(start))
	if !ok {
		return
	}
	l.submit(call, cat, columns)
}

// intercept is called by Transport for every response of its base. Hops
// the client is about to follow are skipped, so a redirect chain yields one
// line for its final response under the URL the caller asked for.
func (l *Logger) intercept(t *Transport, req *http.Request, start, end time.Time, resp *http.Response, origin string) {
	if !l.active(t.explicit) {
		return
	}
	if followsRedirect(t.client, req, resp) {
		return
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}
	rawURL := ""
	if finalURL != nil {
		rawURL = finalURL.String()
	}

	cat := category.Classify(resp.Header.Get("Content-Type"), rawURL)
	columns, ok := l.plan(cat, resp.StatusCode, end.Sub(start))
	if !ok {
		return
	}

	var opts []capture.Option
	if hasColumn(columns, format.ColumnSize) {
		opts = append(opts, capture.WithDrain(l.cfg.SizeTimeout))
	}

	l.submit(Call{
		Request:  firstRequest(req),
		Start:    start,
		End:      end,
		Response: capture.Wrap(req, resp, opts...),
		Origin:   origin,
	}, cat, columns)
}

// active reports whether responses are logged right now
func (l *Logger) active(explicit bool) bool {
	if !l.server {
		return false
	}
	return explicit || l.IsAttached()
}

// plan applies the type filter, records the request metrics and picks the
// columns for the current mode. It returns false when no line is written.
func (l *Logger) plan(cat category.Category, status int, d time.Duration) ([]format.Column, bool) {
	if !l.cfg.Type.Matches(cat) {
		return nil, false
	}

	if l.metrics != nil {
		l.metrics.ObserveRequest(cat.String(), status, d)
	}

	return l.columnsFor(l.Mode(), status >= 200 && status <= 299)
}

// columnsFor returns the columns to render in mode, or false when the mode
// suppresses the line
func (l *Logger) columnsFor(mode Mode, ok bool) ([]format.Column, bool) {
	switch mode {
	case ModeDebug:
		return l.columnsOr(format.DebugColumns), true
	case ModeError:
		if ok {
			return nil, false
		}
		return l.columnsOr(format.DebugColumns), true
	default:
		return l.columnsOr(format.InfoColumns), true
	}
}

func (l *Logger) columnsOr(fallback []format.Column) []format.Column {
	if len(l.cfg.Columns) > 0 {
		return l.cfg.Columns
	}
	return fallback
}

// submit measures the size when the line needs one and hands the line to the
// queue. A body still streaming is awaited on its own goroutine so it never
// holds up lines of other requests.
func (l *Logger) submit(call Call, cat category.Category, columns []format.Column) {
	if !hasColumn(columns, format.ColumnSize) {
		l.enqueue(call, cat, columns, nil)
		return
	}

	if call.Response.Ready() {
		size := l.formatter.MeasureSize(l.ctx, call.Response)
		l.enqueue(call, cat, columns, &size)
		return
	}

	l.sizing.add()
	go func() {
		defer l.sizing.done()
		size := l.formatter.MeasureSize(l.ctx, call.Response)
		l.enqueue(call, cat, columns, &size)
	}()
}

func (l *Logger) enqueue(call Call, cat category.Category, columns []format.Column, size *format.Size) {
	job := func(ctx context.Context) {
		line := l.formatter.Build(ctx, columns, format.Entry{
			URL:      requestURL(call),
			Category: cat,
			Duration: call.Duration(),
			Response: call.Response,
			Origin:   call.Origin,
			Time:     l.now(),
			Size:     size,
		})

		if l.metrics != nil && size != nil && size.Known {
			l.metrics.ObserveSize(cat.String(), size.Bytes)
		}

		if err := l.renderer.Render(line); err != nil {
			l.log.WithError(err).Warn("Failed to write request line")
		}
	}

	err := l.queue.Submit(job)
	if l.metrics != nil {
		l.metrics.SetQueueDepth(l.queue.QueueSize())
	}
	if err == nil {
		return
	}

	reason := metrics.DropClosed
	if errors.Is(err, queue.ErrQueueFull) {
		reason = metrics.DropQueueFull
	}
	if l.metrics != nil {
		l.metrics.LineDropped(reason)
	}
	l.log.WarnWithFields("Dropped request line", map[string]interface{}{
		"reason": reason,
		"url":    call.Response.URLString(),
	})
}

func hasColumn(columns []format.Column, want format.Column) bool {
	for _, c := range columns {
		if c == want {
			return true
		}
	}
	return false
}

// requestURL prefers the URL the caller asked for over the final one
func requestURL(call Call) *url.URL {
	if call.Request != nil && call.Request.URL != nil {
		return call.Request.URL
	}
	return call.Response.URL
}

// firstRequest walks a redirect chain back to the request the caller made
func firstRequest(req *http.Request) *http.Request {
	for req.Response != nil && req.Response.Request != nil {
		req = req.Response.Request
	}
	return req
}

// redirectChain returns the requests of the chain ending in req, oldest first
func redirectChain(req *http.Request) []*http.Request {
	var chain []*http.Request
	for r := req; r != nil; {
		chain = append([]*http.Request{r}, chain...)
		if r.Response == nil {
			break
		}
		r = r.Response.Request
	}
	return chain
}

// followsRedirect reports whether client will follow resp with another
// request, the same way http.Client decides. A custom CheckRedirect is asked
// with the request the client would send next.
func followsRedirect(client *http.Client, req *http.Request, resp *http.Response) bool {
	method := req.Method
	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther:
		if method != http.MethodGet && method != http.MethodHead {
			method = http.MethodGet
		}
	case http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		// a body that cannot be replayed is not redirected
		first := firstRequest(req)
		if first.GetBody == nil && first.Body != nil && first.Body != http.NoBody {
			return false
		}
	default:
		return false
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return false
	}

	via := redirectChain(req)
	if client == nil || client.CheckRedirect == nil {
		return len(via) < maxRedirects
	}

	target, err := req.URL.Parse(loc)
	if err != nil {
		return false
	}
	next, err := http.NewRequestWithContext(req.Context(), method, target.String(), nil)
	if err != nil {
		return false
	}
	next.Response = resp
	return client.CheckRedirect(next, via) == nil
}

// inflight counts lines still waiting for their body size
type inflight struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func newInflight() *inflight {
	idle := make(chan struct{})
	close(idle)
	return &inflight{idle: idle}
}

func (f *inflight) add() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.n == 0 {
		f.idle = make(chan struct{})
	}
	f.n++
}

func (f *inflight) done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n--
	if f.n == 0 {
		close(f.idle)
	}
}

func (f *inflight) wait(ctx context.Context) error {
	f.mu.Lock()
	idle := f.idle
	f.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
