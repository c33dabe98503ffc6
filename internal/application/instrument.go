package application

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-storefront/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	SpanPrefix     = "UC."
	publishPeer    = "outbox"
	publishTimeout = 300 * time.Millisecond
)

// Instruments holds the RED metrics, tracer and base logger shared by use cases of one service.
type Instruments struct {
	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewInstruments(tel observability.Observability, service string) Instruments {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return Instruments{
		log:          tel.Logger().With(observability.F("service", service)),
		tracer:       tel.Tracer(),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

func (in Instruments) Logger() observability.Logger { return in.log }

// Run tracks a single use case execution from Begin to End.
type Run struct {
	in      Instruments
	useCase string
	start   time.Time
	span    trace.Span
	ctx     context.Context

	Log     observability.Logger
	outcome string
	status  string
	extra   []observability.Field
}

// Begin opens the UC span and binds a request logger tagged with useCase.
func (in Instruments) Begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	logger := logctx.FromOr(ctx, in.log).With(observability.F("use_case", useCase))
	attrs = append(attrs, attribute.String("use_case", useCase))
	ctx, span := in.tracer.Start(ctx, SpanPrefix+spanName, attrs...)
	return ctx, &Run{
		in:      in,
		useCase: useCase,
		start:   time.Now(),
		span:    span,
		ctx:     ctx,
		Log:     logger,
		outcome: "success",
		status:  "OK",
	}
}

func (r *Run) Span() trace.Span { return r.span }

// Fail marks the run as failed with a machine-readable status.
func (r *Run) Fail(status string) { r.outcome, r.status = "error", status }

// Status overrides the status text of a successful run, e.g. IDEMPOTENT_REPLAY.
func (r *Run) Status(status string) { r.status = status }

// Annotate adds fields to the use_case_done line.
func (r *Run) Annotate(fields ...observability.Field) { r.extra = append(r.extra, fields...) }

// End records span status, RED metrics and the use_case_done log line.
func (r *Run) End(err error) {
	if err != nil && r.outcome == "success" {
		r.outcome, r.status = "error", "ERROR"
	}
	lat := time.Since(r.start).Seconds()

	if err != nil {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, r.status)
	} else {
		r.span.SetStatus(codes.Ok, r.status)
	}
	r.span.End()

	r.in.reqCounter.Add(1,
		observability.L("use_case", r.useCase),
		observability.L("outcome", r.outcome),
	)
	r.in.durHistogram.Observe(lat, observability.L("use_case", r.useCase))

	fields := []observability.Field{
		observability.F("outcome", r.outcome),
		observability.F("status", r.status),
		observability.F("latency_seconds", lat),
	}
	fields = append(fields, observability.TraceFields(r.ctx)...)
	fields = append(fields, r.extra...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	r.Log.Info("use_case_done", fields...)
}

// Publish hands e to the outbox with a short deadline and records it as an external call.
// A publish failure never fails the use case; it is annotated on the run instead.
func (r *Run) Publish(ctx context.Context, publisher domoutbox.Publisher, e domoutbox.Event) {
	if publisher == nil || e == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	start := time.Now()
	outcome := "success"
	err := publisher.Publish(pubCtx, e)
	switch {
	case err != nil:
		outcome = "error"
	case pubCtx.Err() != nil:
		outcome, err = "canceled", pubCtx.Err()
	}

	r.in.External(publishPeer, e.EventName(), outcome, start)
	if err != nil {
		r.Annotate(observability.F("event_publish_error", err.Error()))
	}
}

// External records one call to an outbound collaborator.
func (in Instruments) External(peer, endpoint, outcome string, started time.Time) {
	in.extCounter.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	in.extHistogram.Observe(time.Since(started).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
}
