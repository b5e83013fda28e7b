package fetchlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"fetchlog/internal/queue"
	"fetchlog/pkg/config"
	"fetchlog/pkg/format"
	"fetchlog/pkg/logger"
	"fetchlog/pkg/metrics"
)

var (
	// ErrNotInitialized is returned by package functions used before Initialize
	ErrNotInitialized = errors.New("fetchlog: logger not initialized")

	// ErrClosed is returned by Attach after Close
	ErrClosed = errors.New("fetchlog: logger is closed")
)

// Logger intercepts requests made through an *http.Client and writes one
// line per response.
type Logger struct {
	cfg  Config
	mode atomic.Value // Mode

	client    *http.Client
	base      http.RoundTripper
	transport *Transport
	server    bool

	mu     sync.Mutex
	closed bool

	// ctx bounds size measurements; cancelled when Close gives up waiting
	ctx    context.Context
	cancel context.CancelFunc
	sizing *inflight

	formatter *format.Formatter
	renderer  format.Renderer
	queue     *queue.Pool
	metrics   *metrics.Recorder
	log       logger.Logger
	now       func() time.Time
}

// Option customizes a Logger
type Option func(*options)

type options struct {
	client   *http.Client
	out      io.Writer
	renderer format.Renderer
	metrics  *metrics.Recorder
	log      logger.Logger
	now      func() time.Time
}

// WithClient sets the client whose transport Attach replaces. The default is
// http.DefaultClient.
func WithClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithOutput sets where request lines are written. The default is stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithRenderer replaces the renderer chosen from Config.Format
func WithRenderer(r format.Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithMetrics records every intercepted response on rec
func WithMetrics(rec *metrics.Recorder) Option {
	return func(o *options) { o.metrics = rec }
}

// WithLogger sets the diagnostics logger
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a Logger and starts its background queue. The client's current
// transport is captured here and is the only one Attach ever restores.
func New(cfg Config, opts ...Option) *Logger {
	o := options{
		client: http.DefaultClient,
		out:    os.Stdout,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.GetLogger()
	}

	cfg = cfg.withDefaults()

	renderer := o.renderer
	if renderer == nil {
		if cfg.Format == config.FormatJSON {
			renderer = format.NewJSONRenderer(o.out)
		} else {
			renderer = format.NewTextRenderer(o.out, cfg.Color)
		}
	}

	l := &Logger{
		cfg:       cfg,
		client:    o.client,
		server:    runtime.GOOS != "js",
		formatter: format.NewFormatter(*cfg.URL, cfg.SizeTimeout),
		renderer:  renderer,
		metrics:   o.metrics,
		log:       o.log,
		now:       o.now,
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.sizing = newInflight()
	l.mode.Store(cfg.Mode)
	if l.client != nil {
		l.base = l.client.Transport
	}
	l.transport = &Transport{Base: l.base, owner: l, client: l.client}

	l.queue = queue.NewPool(cfg.Workers, cfg.QueueSize, l.log)
	l.queue.Start()

	return l
}

// Mode returns the current mode
func (l *Logger) Mode() Mode {
	return l.mode.Load().(Mode)
}

// SetMode changes the mode for requests logged from now on. Unknown modes
// behave like ModeInfo.
func (l *Logger) SetMode(mode Mode) {
	l.mode.Store(mode)
}

// Config returns the configuration the Logger was built with
func (l *Logger) Config() Config {
	cfg := l.cfg
	cfg.Mode = l.Mode()
	return cfg
}

// Flush waits until every pending line has been written, including lines
// still waiting for their body size
func (l *Logger) Flush(ctx context.Context) error {
	if err := l.sizing.wait(ctx); err != nil {
		return fmt.Errorf("waiting for response sizes: %w", err)
	}
	return l.queue.Wait(ctx)
}

// Close detaches the logger, stops accepting lines and drains the queue
// within ctx. Size waits still running when ctx expires are abandoned and
// their lines written without a size.
func (l *Logger) Close(ctx context.Context) error {
	l.Detach()

	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	if err := l.sizing.wait(ctx); err != nil {
		l.cancel()
		l.sizing.wait(context.Background())
	}
	defer l.cancel()

	if err := l.queue.Stop(ctx); err != nil {
		return fmt.Errorf("closing fetch logger: %w", err)
	}
	return nil
}

var (
	defaultMu     sync.Mutex
	defaultLogger *Logger
)

// Initialize creates the process-wide Logger on first use. Later calls return
// that Logger and ignore their arguments.
func Initialize(cfg Config, opts ...Option) *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultLogger == nil {
		defaultLogger = New(cfg, opts...)
	}
	return defaultLogger
}

// Default returns the Logger created by Initialize
func Default() (*Logger, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultLogger == nil {
		return nil, ErrNotInitialized
	}
	return defaultLogger, nil
}

// SetMode changes the mode of the process-wide Logger
func SetMode(mode Mode) error {
	l, err := Default()
	if err != nil {
		return err
	}
	l.SetMode(mode)
	return nil
}
