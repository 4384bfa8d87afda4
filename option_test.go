package privmsg

import (
	"log/slog"
	"testing"
	"time"

	"github.com/rbaliyan/privmsg/retry"
	"github.com/rbaliyan/privmsg/store/memory"
)

func TestDefaultOptions(t *testing.T) {
	o := newOptions()

	if o.maxSubjectLength != DefaultMaxSubjectLength {
		t.Errorf("maxSubjectLength = %d", o.maxSubjectLength)
	}
	if o.maxBodySize != DefaultMaxBodySize {
		t.Errorf("maxBodySize = %d", o.maxBodySize)
	}
	if o.maxQueryLimit != DefaultMaxQueryLimit || o.defaultQueryLimit != DefaultQueryLimit {
		t.Errorf("query limits = %d/%d", o.defaultQueryLimit, o.maxQueryLimit)
	}
	if o.maxConcurrentComposes != DefaultMaxConcurrentComposes {
		t.Errorf("maxConcurrentComposes = %d", o.maxConcurrentComposes)
	}
	if o.shutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("shutdownTimeout = %v", o.shutdownTimeout)
	}
	if o.notifyTimeout != DefaultNotifyTimeout {
		t.Errorf("notifyTimeout = %v", o.notifyTimeout)
	}
	if o.statsRefreshInterval != DefaultStatsRefreshInterval {
		t.Errorf("statsRefreshInterval = %v", o.statsRefreshInterval)
	}
	if o.notifyRetry.Attempts != retry.DefaultPolicy().Attempts {
		t.Errorf("notifyRetry.Attempts = %d", o.notifyRetry.Attempts)
	}
	if o.logger == nil || o.clock == nil || o.onNotifyFailure == nil {
		t.Error("logger, clock and failure handler must be set")
	}
	if o.asyncNotify || o.tracingEnabled || o.metricsEnabled {
		t.Error("async notify and telemetry are off by default")
	}
}

func TestOptions(t *testing.T) {
	st := memory.New()
	logger := slog.New(slog.DiscardHandler)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 678901234, time.FixedZone("x", 3600))

	o := newOptions(
		WithStore(st),
		WithLogger(logger),
		WithClock(func() time.Time { return fixed }),
		WithMaxSubjectLength(50),
		WithMaxBodySize(1024),
		WithMaxQueryLimit(30),
		WithDefaultQueryLimit(10),
		WithMaxConcurrentComposes(3),
		WithShutdownTimeout(5*time.Second),
		WithNotifyTimeout(time.Second),
		WithAsyncNotify(true),
		WithStatsRefreshInterval(time.Minute),
		WithOTel(true),
		WithServiceName("svc"),
	)

	if o.store != st || o.logger != logger {
		t.Error("store and logger not applied")
	}
	if got := o.limits(); got.MaxSubjectLength != 50 || got.MaxBodySize != 1024 {
		t.Errorf("limits = %+v", got)
	}
	if o.maxQueryLimit != 30 || o.defaultQueryLimit != 10 {
		t.Errorf("query limits = %d/%d", o.defaultQueryLimit, o.maxQueryLimit)
	}
	if o.maxConcurrentComposes != 3 || o.shutdownTimeout != 5*time.Second {
		t.Errorf("concurrency = %d, shutdown = %v", o.maxConcurrentComposes, o.shutdownTimeout)
	}
	if !o.asyncNotify || o.notifyTimeout != time.Second {
		t.Errorf("async = %v, notifyTimeout = %v", o.asyncNotify, o.notifyTimeout)
	}
	if !o.tracingEnabled || !o.metricsEnabled || o.serviceName != "svc" {
		t.Error("telemetry options not applied")
	}
	if o.statsRefreshInterval != time.Minute {
		t.Errorf("statsRefreshInterval = %v", o.statsRefreshInterval)
	}

	now := o.now()
	if now.Location() != time.UTC || now.Nanosecond() != 678000000 {
		t.Errorf("now() = %v, want UTC at millisecond precision", now)
	}
}

func TestOptionsIgnoreZeroValues(t *testing.T) {
	o := newOptions(
		WithStore(nil),
		WithLogger(nil),
		WithClock(nil),
		WithMaxSubjectLength(0),
		WithMaxBodySize(-1),
		WithMaxQueryLimit(0),
		WithDefaultQueryLimit(0),
		WithMaxConcurrentComposes(0),
		WithShutdownTimeout(time.Millisecond),
		WithNotifyTimeout(0),
		WithStatsRefreshInterval(0),
		WithNotifier(nil),
		WithPlugin(nil),
		WithPlugins(nil, nil),
		WithPrincipalResolver(nil),
		WithNotifyFailureHandler(nil),
		WithServiceName(""),
		WithTracerProvider(nil),
		WithMeterProvider(nil),
	)

	if o.store != nil || o.notifier != nil || o.resolver != nil || len(o.plugins) != 0 {
		t.Error("nil values must be ignored")
	}
	if o.logger == nil || o.clock == nil || o.onNotifyFailure == nil {
		t.Error("defaults must survive nil overrides")
	}
	if o.maxSubjectLength != DefaultMaxSubjectLength || o.maxBodySize != DefaultMaxBodySize {
		t.Error("message limits must keep defaults")
	}
	if o.maxQueryLimit != DefaultMaxQueryLimit || o.defaultQueryLimit != DefaultQueryLimit {
		t.Error("query limits must keep defaults")
	}
	if o.shutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("shutdown below minimum applied: %v", o.shutdownTimeout)
	}
	if o.notifyTimeout != DefaultNotifyTimeout || o.statsRefreshInterval != DefaultStatsRefreshInterval {
		t.Error("durations must keep defaults")
	}
}

func TestOptionClamping(t *testing.T) {
	t.Run("default query limit capped to max", func(t *testing.T) {
		o := newOptions(WithMaxQueryLimit(5), WithDefaultQueryLimit(50))
		if o.defaultQueryLimit != 5 {
			t.Errorf("defaultQueryLimit = %d, want 5", o.defaultQueryLimit)
		}
	})

	t.Run("body size capped", func(t *testing.T) {
		o := newOptions(WithMaxBodySize(MaxBodySizeLimit * 2))
		if o.maxBodySize != MaxBodySizeLimit {
			t.Errorf("maxBodySize = %d, want %d", o.maxBodySize, MaxBodySizeLimit)
		}
	})

	t.Run("list limit clamped", func(t *testing.T) {
		s := &service{opts: newOptions(WithMaxQueryLimit(10), WithDefaultQueryLimit(4))}
		if got := s.clampListOptions(ListOptions{}).Limit; got != 4 {
			t.Errorf("default limit = %d, want 4", got)
		}
		if got := s.clampListOptions(ListOptions{Limit: 500}).Limit; got != 10 {
			t.Errorf("capped limit = %d, want 10", got)
		}
		if got := s.clampListOptions(ListOptions{Limit: 7}).Limit; got != 7 {
			t.Errorf("explicit limit = %d, want 7", got)
		}
	})
}

func TestNotifyFailureHandlerPanic(t *testing.T) {
	o := newOptions(
		WithLogger(slog.New(slog.DiscardHandler)),
		WithNotifyFailureHandler(func(*NotificationError) { panic("handler bug") }),
	)
	// Must not propagate.
	o.safeNotifyFailure(&NotificationError{Kind: KindSent, To: alice, MessageID: "m1"})
}
