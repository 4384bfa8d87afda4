package privmsg

import (
	"log/slog"
	"time"

	"github.com/rbaliyan/privmsg/retry"
	"github.com/rbaliyan/privmsg/store"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Default configuration values.
const (
	DefaultShutdownTimeout = 30 * time.Second // default graceful shutdown timeout
	MinShutdownTimeout     = 1 * time.Second  // minimum shutdown timeout

	// Message limits
	DefaultMaxSubjectLength = 120              // runes
	DefaultMaxBodySize      = 64 * 1024        // bytes
	MaxBodySizeLimit        = 10 * 1024 * 1024 // upper bound for WithMaxBodySize

	// Query limits
	DefaultMaxQueryLimit = 100 // max messages per query
	DefaultQueryLimit    = 20  // default messages per query

	// Concurrency limits
	DefaultMaxConcurrentComposes = 10

	// Notifications
	DefaultNotifyTimeout = 10 * time.Second // per dispatch in async mode

	// Stats cache
	DefaultStatsRefreshInterval = 30 * time.Second
)

// options holds service configuration.
type options struct {
	store    store.Store
	logger   *slog.Logger
	plugins  []Plugin
	resolver PrincipalResolver
	clock    func() time.Time

	// Message limits
	maxSubjectLength int
	maxBodySize      int

	// Query limits
	maxQueryLimit     int
	defaultQueryLimit int

	// Concurrency limits
	maxConcurrentComposes int

	// Shutdown
	shutdownTimeout time.Duration

	// Notifications
	notifier        Notifier
	asyncNotify     bool
	notifyTimeout   time.Duration
	notifyRetry     retry.Policy
	onNotifyFailure NotifyFailureFunc // always set

	// OpenTelemetry
	tracingEnabled bool
	metricsEnabled bool
	serviceName    string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// Stats cache
	statsRefreshInterval time.Duration
}

// NotifyFailureFunc is called when a notification fails after retries.
type NotifyFailureFunc func(err *NotificationError)

// safeNotifyFailure calls the failure callback with panic recovery.
func (o *options) safeNotifyFailure(err *NotificationError) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in notification failure handler",
				"kind", err.Kind,
				"message_id", err.MessageID,
				"original_error", err.Err,
				"panic", r,
			)
		}
	}()
	o.onNotifyFailure(err)
}

// newOptions creates options with defaults and applies provided options.
func newOptions(opts ...Option) *options {
	o := &options{
		logger:                slog.Default(),
		clock:                 time.Now,
		maxSubjectLength:      DefaultMaxSubjectLength,
		maxBodySize:           DefaultMaxBodySize,
		maxQueryLimit:         DefaultMaxQueryLimit,
		defaultQueryLimit:     DefaultQueryLimit,
		maxConcurrentComposes: DefaultMaxConcurrentComposes,
		shutdownTimeout:       DefaultShutdownTimeout,
		notifyTimeout:         DefaultNotifyTimeout,
		notifyRetry:           retry.DefaultPolicy(),
		statsRefreshInterval:  DefaultStatsRefreshInterval,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.defaultQueryLimit > o.maxQueryLimit {
		o.defaultQueryLimit = o.maxQueryLimit
	}

	if o.onNotifyFailure == nil {
		o.onNotifyFailure = func(err *NotificationError) {
			o.logger.Error("failed to deliver notification",
				"kind", err.Kind,
				"to", err.To.String(),
				"message_id", err.MessageID,
				"error", err.Err,
			)
		}
	}

	return o
}

// Option configures a privmsg service.
type Option func(*options)

// --- Core Options ---

// WithStore sets the storage backend (required).
func WithStore(s store.Store) Option {
	return func(o *options) {
		if s != nil {
			o.store = s
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPrincipalResolver makes Compose reject senders and recipients that
// do not resolve to a known entity.
func WithPrincipalResolver(r PrincipalResolver) Option {
	return func(o *options) {
		if r != nil {
			o.resolver = r
		}
	}
}

// WithClock overrides the time source used for sent_at, read_at and
// deleted markers.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// --- Plugin Options ---

// WithPlugin registers a plugin with the service.
// Multiple plugins can be registered by calling this option multiple times.
func WithPlugin(p Plugin) Option {
	return func(o *options) {
		if p != nil {
			o.plugins = append(o.plugins, p)
		}
	}
}

// WithPlugins registers multiple plugins at once.
func WithPlugins(plugins ...Plugin) Option {
	return func(o *options) {
		for _, p := range plugins {
			if p != nil {
				o.plugins = append(o.plugins, p)
			}
		}
	}
}

// --- Notification Options ---

// WithNotifier sets the notification backend. Without one, notifications
// are disabled. A notifier that also implements Plugin is initialized and
// closed with the service.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithAsyncNotify dispatches notifications in the background instead of
// before Compose returns. Close waits for pending dispatches.
func WithAsyncNotify(async bool) Option {
	return func(o *options) {
		o.asyncNotify = async
	}
}

// WithNotifyTimeout bounds each background dispatch. Default is 10 seconds.
func WithNotifyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.notifyTimeout = d
		}
	}
}

// WithNotifyRetry sets the retry policy for notification delivery.
func WithNotifyRetry(p retry.Policy) Option {
	return func(o *options) {
		o.notifyRetry = p
	}
}

// WithNotifyFailureHandler sets a callback for notifications that failed
// after retries. By default, failures are logged.
func WithNotifyFailureHandler(fn NotifyFailureFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.onNotifyFailure = fn
		}
	}
}

// --- OTel Options ---

// WithTracing enables or disables OpenTelemetry tracing.
// Default is disabled.
func WithTracing(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
	}
}

// WithMetrics enables or disables OpenTelemetry metrics.
// Default is disabled.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metricsEnabled = enabled
	}
}

// WithOTel enables both OpenTelemetry tracing and metrics.
func WithOTel(enabled bool) Option {
	return func(o *options) {
		o.tracingEnabled = enabled
		o.metricsEnabled = enabled
	}
}

// WithServiceName sets the service name for OpenTelemetry telemetry.
// Default is "privmsg".
func WithServiceName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// WithTracerProvider sets a custom OpenTelemetry tracer provider.
// Default uses the global tracer provider from otel.GetTracerProvider().
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets a custom OpenTelemetry meter provider.
// Default uses the global meter provider from otel.GetMeterProvider().
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// --- Message Limit Options ---

// WithMaxSubjectLength sets the maximum subject length in characters.
// Default is 120.
func WithMaxSubjectLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSubjectLength = n
		}
	}
}

// WithMaxBodySize sets the maximum body size in bytes.
// Default is 64 KB, capped at MaxBodySizeLimit.
func WithMaxBodySize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBodySize = min(n, MaxBodySizeLimit)
		}
	}
}

// --- Query Limit Options ---

// WithMaxQueryLimit sets the maximum number of messages per query.
// Any query requesting more than this limit will be capped.
// Default is 100.
func WithMaxQueryLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxQueryLimit = n
		}
	}
}

// WithDefaultQueryLimit sets the number of messages per query when no
// limit is specified. Capped to MaxQueryLimit.
// Default is 20.
func WithDefaultQueryLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.defaultQueryLimit = n
		}
	}
}

// --- Concurrency Options ---

// WithMaxConcurrentComposes limits concurrent compose operations.
// Default is 10.
func WithMaxConcurrentComposes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentComposes = n
		}
	}
}

// WithShutdownTimeout sets the maximum time Close waits for in-flight
// composes and notifications. Default is 30 seconds. Minimum is 1 second.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= MinShutdownTimeout {
			o.shutdownTimeout = d
		}
	}
}

// --- Stats Options ---

// WithStatsRefreshInterval sets the TTL for cached mailbox stats.
// Default is 30 seconds.
func WithStatsRefreshInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.statsRefreshInterval = d
		}
	}
}

// limits returns the configured message limits.
func (o *options) limits() MessageLimits {
	return MessageLimits{
		MaxSubjectLength: o.maxSubjectLength,
		MaxBodySize:      o.maxBodySize,
	}
}

// now returns the current time truncated to storage precision.
func (o *options) now() time.Time {
	return store.Timestamp(o.clock())
}
