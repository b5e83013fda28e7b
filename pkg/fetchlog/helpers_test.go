package fetchlog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fetchlog/pkg/format"
	"fetchlog/pkg/logger"

	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, time.March, 9, 14, 5, 7, 0, time.Local)

func fixedClock() time.Time { return fixedTime }

// safeBuffer is a bytes.Buffer that tolerates concurrent renderers
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	text := strings.TrimRight(b.buf.String(), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// mockTransport answers every request with a canned response
type mockTransport struct {
	status      int
	contentType string
	body        string
	err         error
	calls       int32
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.err != nil {
		return nil, m.err
	}
	header := make(http.Header)
	if m.contentType != "" {
		header.Set("Content-Type", m.contentType)
	}
	return &http.Response{
		StatusCode: m.status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(m.body)),
		Request:    req,
	}, nil
}

// blockingRenderer holds every Render call until release is closed
type blockingRenderer struct {
	release chan struct{}
	count   int32
}

func (r *blockingRenderer) Render(line format.Line) error {
	<-r.release
	atomic.AddInt32(&r.count, 1)
	return nil
}

// newTestLogger builds a Logger on its own client writing plain text to out
func newTestLogger(t *testing.T, cfg Config, base http.RoundTripper, out io.Writer, opts ...Option) (*Logger, *http.Client) {
	t.Helper()
	client := &http.Client{Transport: base}
	if cfg.Color == "" {
		cfg.Color = format.ColorNever
	}
	opts = append([]Option{
		WithClient(client),
		WithOutput(out),
		WithLogger(logger.NewNopLogger()),
		WithClock(fixedClock),
	}, opts...)

	l := New(cfg, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l.Close(ctx)
	})
	return l, client
}

func get(t *testing.T, client *http.Client, url string) []byte {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return body
}

func flush(t *testing.T, l *Logger) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Flush(ctx))
}

func resetDefault(t *testing.T) {
	t.Helper()
	defaultMu.Lock()
	defaultLogger = nil
	defaultMu.Unlock()
	t.Cleanup(func() {
		defaultMu.Lock()
		l := defaultLogger
		defaultLogger = nil
		defaultMu.Unlock()
		if l != nil {
			l.Close(context.Background())
		}
	})
}

var errDial = errors.New("dial tcp: connection refused")
