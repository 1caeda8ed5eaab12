package perfdefs

import (
	"log/slog"

	"github.com/hupe1980/perfdefs/blobstore"
	"github.com/hupe1980/perfdefs/clocksync"
	"github.com/hupe1980/perfdefs/ipc"
)

type options struct {
	config           Config
	comm             ipc.Communicator
	timer            clocksync.Timer
	store            blobstore.Store
	metricsCollector MetricsCollector
	logger           *Logger
	abort            AbortHandler
}

// Option configures a Measurement.
type Option func(*options)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithCommunicator sets the transport to the other processes of the run.
// The default is ipc.Single(), a run of one process.
func WithCommunicator(c ipc.Communicator) Option {
	return func(o *options) {
		o.comm = c
	}
}

// WithTimer sets the platform clock. The default is a monotonic timer.
func WithTimer(t clocksync.Timer) Option {
	return func(o *options) {
		o.timer = t
	}
}

// WithArchiveStore enables the archive hand-off into store. It takes
// precedence over Config.ArchiveDir.
func WithArchiveStore(store blobstore.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &perfdefs.BasicMetricsCollector{}
//	m, _ := perfdefs.New(perfdefs.WithMetricsCollector(metrics))
//	// ... measure ...
//	stats := metrics.GetStats()
//	fmt.Printf("Defined: %d, deduplicated: %d\n", stats.Defined, stats.Deduplicated)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithAbortHandler replaces ExitOnFatal. The handler may return, in which
// case the failing call returns the *FatalError and the measurement is unusable.
func WithAbortHandler(h AbortHandler) Option {
	return func(o *options) {
		o.abort = h
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		config:           DefaultConfig(),
		comm:             ipc.Single(),
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		abort:            ExitOnFatal,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.comm == nil {
		o.comm = ipc.Single()
	}
	if o.timer == nil {
		o.timer = clocksync.NewMonotonicTimer()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.abort == nil {
		o.abort = ExitOnFatal
	}
	return o
}
