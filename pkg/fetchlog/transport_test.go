package fetchlog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fetchlog/internal/testserver"
	"fetchlog/pkg/capture"
	"fetchlog/pkg/format"
	"fetchlog/pkg/logger"
	"fetchlog/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseErrorIsReturnedUnchanged(t *testing.T) {
	base := &mockTransport{err: errDial}
	out := &safeBuffer{}
	l, client := newTestLogger(t, Config{}, base, out)
	require.NoError(t, l.Attach())

	_, err := client.Get("http://example.invalid/users.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, errDial)

	flush(t, l)
	assert.Empty(t, out.Lines())
	assert.Equal(t, int32(1), atomic.LoadInt32(&base.calls))
}

func TestRoundTripKeepsRequestAndResponse(t *testing.T) {
	seen := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Method + " " + r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Trace", "abc")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	out := &safeBuffer{}
	l, client := newTestLogger(t, Config{}, srv.Client().Transport, out)
	require.NoError(t, l.Attach())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/items", strings.NewReader("payload"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer token")

	resp, err := client.Do(req)
	require.NoError(t, err)
	body := make([]byte, 64)
	n, _ := resp.Body.Read(body)
	resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "abc", resp.Header.Get("X-Trace"))
	assert.Equal(t, `{"ok":true}`, string(body[:n]))
	assert.Equal(t, "POST Bearer token", <-seen)

	flush(t, l)
	require.Len(t, out.Lines(), 1)
	assert.True(t, strings.HasPrefix(out.Lines()[0], "FETCH - 201 - "))
}

func TestWrapLogsWithoutAttach(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	out := &safeBuffer{}
	l, _ := newTestLogger(t, Config{}, nil, out)

	client := &http.Client{Transport: l.Wrap(srv.Client().Transport)}
	get(t, client, srv.Endpoint(testserver.PathCSS))
	flush(t, l)

	lines := out.Lines()
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "CSS - 200 - "))
	assert.False(t, l.IsAttached())

	wrapped, ok := client.Transport.(*Transport)
	require.True(t, ok)
	assert.Same(t, l, wrapped.Owner())
}

func TestLogRequestRequiresAttach(t *testing.T) {
	out := &safeBuffer{}
	l, _ := newTestLogger(t, Config{}, &mockTransport{status: 200}, out)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/app.js", nil)
	resp := &http.Response{StatusCode: 200, Header: http.Header{}, Request: req, Body: http.NoBody}
	start := fixedTime
	end := fixedTime.Add(75 * time.Millisecond)

	l.LogRequest(req, start, end, capture.Wrap(req, resp))
	flush(t, l)
	assert.Empty(t, out.Lines())

	require.NoError(t, l.Attach())
	l.LogRequest(req, start, end, capture.Wrap(req, resp))
	flush(t, l)

	lines := out.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "JS - 200 - 75ms - example.com/app.js - 0.00 KB", lines[0])
}

func TestOriginIsCallerFile(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	out := &safeBuffer{}
	l, client := newTestLogger(t, Config{Mode: ModeDebug, Format: "json"}, srv.Client().Transport, out)
	require.NoError(t, l.Attach())

	resp, err := client.Get(srv.Endpoint(testserver.PathHTML))
	require.NoError(t, err)
	resp.Body.Close()
	flush(t, l)

	lines := out.Lines()
	require.Len(t, lines, 1)

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &event))
	assert.Equal(t, "html", strings.ToLower(event["category"].(string)))
	assert.Equal(t, float64(200), event["status"])
	assert.True(t, strings.HasSuffix(event["origin"].(string), "pkg/fetchlog/transport_test.go"), event["origin"])
}

func TestMetricsRecorded(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	rec := metrics.New(prometheus.NewRegistry())
	l, client := newTestLogger(t, Config{}, srv.Client().Transport, &safeBuffer{}, WithMetrics(rec))
	require.NoError(t, l.Attach())

	get(t, client, srv.Endpoint(testserver.PathImage))
	get(t, client, srv.Endpoint(testserver.PathStatus+"500"))
	flush(t, l)

	body := scrape(t, rec)
	assert.Contains(t, body, `fetchlog_requests_total{category="image",status="200"} 1`)
	assert.Contains(t, body, `fetchlog_requests_total{category="fetch",status="500"} 1`)
	assert.Contains(t, body, `fetchlog_response_size_bytes_sum{category="image"} 2048`)
}

func TestFullQueueDropsLines(t *testing.T) {
	renderer := &blockingRenderer{release: make(chan struct{})}
	rec := metrics.New(prometheus.NewRegistry())
	log := logger.NewTestLogger()

	// no size column, so lines are queued by the requesting goroutine
	cfg := Config{Workers: 1, QueueSize: 1, Columns: []format.Column{format.ColumnCategory, format.ColumnStatus}}
	l, client := newTestLogger(t, cfg, &mockTransport{status: 200, contentType: "application/json"}, &safeBuffer{},
		WithRenderer(renderer), WithMetrics(rec), WithLogger(log))
	require.NoError(t, l.Attach())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			resp, err := client.Get("http://example.com/data.json")
			if err == nil {
				resp.Body.Close()
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("requests blocked on a full log queue")
	}

	assert.True(t, log.HasMessage("WARN", "Dropped request line"))

	close(renderer.release)
	flush(t, l)

	written := atomic.LoadInt32(&renderer.count)
	assert.GreaterOrEqual(t, written, int32(1))
	assert.LessOrEqual(t, written, int32(2))
	assert.Contains(t, scrape(t, rec), fmt.Sprintf(`fetchlog_lines_dropped_total{reason="queue_full"} %d`, 5-written))
}

func TestCloseDrainsQueue(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	out := &safeBuffer{}
	l, client := newTestLogger(t, Config{}, srv.Client().Transport, out)
	require.NoError(t, l.Attach())

	for i := 0; i < 3; i++ {
		get(t, client, srv.Endpoint(testserver.PathJS))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Close(ctx))

	assert.Len(t, out.Lines(), 3)
	assert.Same(t, srv.Client().Transport, client.Transport)
}

func TestRedirectChainLogsOnce(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	out := &safeBuffer{}
	cfg := Config{URL: &format.URLOptions{Host: false, Pathname: format.PathnameFull}}
	l, client := newTestLogger(t, cfg, srv.Client().Transport, out)
	require.NoError(t, l.Attach())

	get(t, client, srv.RedirectURL(2, ""))
	flush(t, l)

	lines := out.Lines()
	require.Len(t, lines, 1)
	assert.Regexp(t, `^FETCH - 200 - \d+ms - /redirect/2 - 0\.\d\d KB$`, lines[0])
	assert.Equal(t, 4, srv.RequestCount())
}

func TestRedirectToSuccessIsQuietInErrorMode(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	out := &safeBuffer{}
	l, client := newTestLogger(t, Config{Mode: ModeError}, srv.Client().Transport, out)
	require.NoError(t, l.Attach())

	get(t, client, srv.RedirectURL(1, testserver.PathImage))
	flush(t, l)
	assert.Empty(t, out.Lines())

	get(t, client, srv.RedirectURL(1, testserver.PathStatus+"503"))
	flush(t, l)

	lines := out.Lines()
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "FETCH - 503 - "), lines[0])
	assert.Contains(t, lines[0], "/1?to=%2Fstatus%2F503")
}

func TestRedirectNotFollowedIsLogged(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	out := &safeBuffer{}
	l, client := newTestLogger(t, Config{}, srv.Client().Transport, out)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	require.NoError(t, l.Attach())

	get(t, client, srv.RedirectURL(0, ""))
	flush(t, l)

	lines := out.Lines()
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "HTML - 302 - "), lines[0])
}

func TestWrapLogsRedirectChainOnce(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	out := &safeBuffer{}
	l, _ := newTestLogger(t, Config{}, nil, out)
	client := &http.Client{Transport: l.Wrap(srv.Client().Transport)}

	get(t, client, srv.RedirectURL(1, testserver.PathCSS))
	flush(t, l)

	lines := out.Lines()
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "CSS - 200 - "), lines[0])
}

func TestFollowsRedirect(t *testing.T) {
	newReq := func(method string, body *strings.Reader) *http.Request {
		var req *http.Request
		if body == nil {
			req, _ = http.NewRequest(method, "http://example.com/a", nil)
		} else {
			req, _ = http.NewRequest(method, "http://example.com/a", body)
		}
		return req
	}
	redirect := func(req *http.Request, status int, location string) *http.Response {
		resp := &http.Response{StatusCode: status, Header: make(http.Header), Request: req}
		if location != "" {
			resp.Header.Set("Location", location)
		}
		return resp
	}

	plain := newReq(http.MethodGet, nil)
	assert.True(t, followsRedirect(nil, plain, redirect(plain, http.StatusFound, "/b")))
	assert.True(t, followsRedirect(nil, plain, redirect(plain, http.StatusPermanentRedirect, "/b")))
	assert.False(t, followsRedirect(nil, plain, redirect(plain, http.StatusFound, "")))
	assert.False(t, followsRedirect(nil, plain, redirect(plain, http.StatusNotModified, "/b")))
	assert.False(t, followsRedirect(nil, plain, redirect(plain, http.StatusOK, "/b")))

	// replayable body
	post := newReq(http.MethodPost, strings.NewReader("x"))
	assert.True(t, followsRedirect(nil, post, redirect(post, http.StatusTemporaryRedirect, "/b")))
	post.GetBody = nil
	assert.False(t, followsRedirect(nil, post, redirect(post, http.StatusTemporaryRedirect, "/b")))
	assert.True(t, followsRedirect(nil, post, redirect(post, http.StatusSeeOther, "/b")))

	// the default policy stops after 10 requests
	req := plain
	for i := 0; i < 9; i++ {
		next := newReq(http.MethodGet, nil)
		next.Response = redirect(req, http.StatusFound, "/b")
		req = next
	}
	assert.Len(t, redirectChain(req), 10)
	assert.Same(t, plain, firstRequest(req))
	assert.False(t, followsRedirect(nil, req, redirect(req, http.StatusFound, "/b")))

	var asked *http.Request
	client := &http.Client{CheckRedirect: func(next *http.Request, via []*http.Request) error {
		asked = next
		if next.URL.Path == "/stop" {
			return http.ErrUseLastResponse
		}
		return nil
	}}
	assert.True(t, followsRedirect(client, post, redirect(post, http.StatusSeeOther, "/b")))
	assert.Equal(t, http.MethodGet, asked.Method)
	assert.Equal(t, "http://example.com/b", asked.URL.String())
	assert.False(t, followsRedirect(client, plain, redirect(plain, http.StatusFound, "/stop")))
}

func TestSizeWhenCallerClosesWithoutReading(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	out := &safeBuffer{}
	l, client := newTestLogger(t, Config{}, srv.Client().Transport, out)
	require.NoError(t, l.Attach())

	resp, err := client.Get(srv.StreamURL(1536))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	flush(t, l)
	lines := out.Lines()
	require.Len(t, lines, 1)
	assert.Regexp(t, `^FETCH - 200 - \d+ms - 127\.0\.0\.1:\d+/stream\?bytes=1536 - 1\.50 KB$`, lines[0])
}

func TestOpenStreamDoesNotDelayOtherLines(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	out := &safeBuffer{}
	l, client := newTestLogger(t, Config{Workers: 1, SizeTimeout: 10 * time.Second}, srv.Client().Transport, out)
	require.NoError(t, l.Attach())

	stream, err := client.Get(srv.StreamURL(1536))
	require.NoError(t, err)

	get(t, client, srv.Endpoint(testserver.PathImage))

	assert.Eventually(t, func() bool {
		return len(out.Lines()) == 1
	}, time.Second, 10*time.Millisecond, "line of a finished request waited on an open stream")
	assert.True(t, strings.HasPrefix(out.Lines()[0], "IMAGE - 200 - "))

	_, err = io.Copy(io.Discard, stream.Body)
	require.NoError(t, err)
	require.NoError(t, stream.Body.Close())

	flush(t, l)
	lines := out.Lines()
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[1], "/stream?bytes=1536 - 1.50 KB"), lines[1])
}

func TestCloseAbandonsPendingSizes(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()

	out := &safeBuffer{}
	l, client := newTestLogger(t, Config{SizeTimeout: time.Minute}, srv.Client().Transport, out)
	require.NoError(t, l.Attach())

	stream, err := client.Get(srv.StreamURL(1536))
	require.NoError(t, err)
	defer stream.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	l.Close(ctx)

	assert.Less(t, time.Since(start), 5*time.Second)
	lines := out.Lines()
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0], "/stream?bytes=1536 - "), lines[0])
}

func scrape(t *testing.T, rec *metrics.Recorder) string {
	t.Helper()
	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}
