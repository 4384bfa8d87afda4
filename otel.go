package privmsg

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/rbaliyan/privmsg"
)

// opInstruments is the latency/count/errors triple recorded per operation.
type opInstruments struct {
	latency metric.Float64Histogram
	count   metric.Int64Counter
	errors  metric.Int64Counter
}

func newOpInstruments(meter metric.Meter, op, noun string) (*opInstruments, error) {
	prefix := "privmsg." + op
	latency, err := meter.Float64Histogram(prefix+".duration",
		metric.WithDescription("Duration of "+op+" operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	count, err := meter.Int64Counter(prefix+".count",
		metric.WithDescription("Number of "+noun),
	)
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter(prefix+".errors",
		metric.WithDescription("Number of "+op+" errors"),
	)
	if err != nil {
		return nil, err
	}
	return &opInstruments{latency: latency, count: count, errors: errs}, nil
}

func (i *opInstruments) record(ctx context.Context, d time.Duration, err error, attrs ...attribute.KeyValue) {
	set := metric.WithAttributes(attrs...)
	i.latency.Record(ctx, d.Seconds(), set)
	i.count.Add(ctx, 1, set)
	if err != nil {
		i.errors.Add(ctx, 1, set)
	}
}

// otelInstrumentation holds OpenTelemetry instrumentation for the service.
type otelInstrumentation struct {
	tracingEnabled bool
	tracer         trace.Tracer

	metricsEnabled bool
	compose        *opInstruments
	get            *opInstruments
	list           *opInstruments
	update         *opInstruments
	notify         *opInstruments
}

func newOtelInstrumentation(opts *options) (*otelInstrumentation, error) {
	o := &otelInstrumentation{
		tracingEnabled: opts.tracingEnabled,
		metricsEnabled: opts.metricsEnabled,
	}

	if opts.tracingEnabled {
		tp := opts.tracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		o.tracer = tp.Tracer(instrumentationName)
	}

	if opts.metricsEnabled {
		mp := opts.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		if err := o.initMetrics(mp); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *otelInstrumentation) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)
	for _, inst := range []struct {
		dst  **opInstruments
		op   string
		noun string
	}{
		{&o.compose, "compose", "messages composed"},
		{&o.get, "get", "get operations"},
		{&o.list, "list", "list operations"},
		{&o.update, "update", "update operations"},
		{&o.notify, "notify", "notifications attempted"},
	} {
		i, err := newOpInstruments(meter, inst.op, inst.noun)
		if err != nil {
			return err
		}
		*inst.dst = i
	}
	return nil
}

// startSpan starts a span if tracing is enabled. The returned func ends
// it, recording err when non-nil.
func (o *otelInstrumentation) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if !o.tracingEnabled || o.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func (o *otelInstrumentation) recordCompose(ctx context.Context, d time.Duration, reply bool, err error) {
	if !o.metricsEnabled {
		return
	}
	o.compose.record(ctx, d, err, attribute.Bool("reply", reply))
}

func (o *otelInstrumentation) recordGet(ctx context.Context, d time.Duration, err error) {
	if !o.metricsEnabled {
		return
	}
	o.get.record(ctx, d, err)
}

func (o *otelInstrumentation) recordList(ctx context.Context, d time.Duration, folder string, resultCount int, err error) {
	if !o.metricsEnabled {
		return
	}
	o.list.record(ctx, d, err,
		attribute.String("folder", folder),
		attribute.Int("result_count", resultCount),
	)
}

func (o *otelInstrumentation) recordUpdate(ctx context.Context, d time.Duration, operation string, err error) {
	if !o.metricsEnabled {
		return
	}
	o.update.record(ctx, d, err, attribute.String("operation", operation))
}

func (o *otelInstrumentation) recordNotify(ctx context.Context, d time.Duration, kind NotificationKind, err error) {
	if !o.metricsEnabled {
		return
	}
	o.notify.record(ctx, d, err, attribute.String("kind", kind.String()))
}
