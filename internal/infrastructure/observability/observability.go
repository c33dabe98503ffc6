// Package observability bundles the concrete tracer, logger and metric instruments into the
// observability.Observability handed to use cases, workers and HTTP middleware.
package observability

import (
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
)

// Options carries the instruments built by the zaplogger, oteltrace and prometrics packages.
// Any zero field degrades to a nop so CLI subcommands can run half-wired.
type Options struct {
	Tracer     observability.Tracer
	Logger     observability.Logger
	Counters   map[observability.MetricKey]observability.Counter
	Histograms map[observability.MetricKey]observability.Histogram
}

type bundle struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

func New(opts Options) observability.Observability {
	b := &bundle{
		tracer:  opts.Tracer,
		logger:  opts.Logger,
		metrics: observability.NopMetrics(),
	}
	if b.tracer == nil {
		b.tracer = observability.NopTracer()
	}
	if b.logger == nil {
		b.logger = observability.NopLogger()
	}
	counters, histograms := withoutNil(opts.Counters), withoutNil(opts.Histograms)
	if len(counters) > 0 || len(histograms) > 0 {
		b.metrics = keyedMetrics{counters: counters, histograms: histograms}
	}
	return b
}

func (b *bundle) Tracer() observability.Tracer   { return b.tracer }
func (b *bundle) Logger() observability.Logger   { return b.logger }
func (b *bundle) Metrics() observability.Metrics { return b.metrics }

// keyedMetrics resolves instruments by key; unknown keys get a nop so a use case never has to
// nil-check.
type keyedMetrics struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

func (m keyedMetrics) Counter(name observability.MetricKey) observability.Counter {
	if c, ok := m.counters[name]; ok {
		return c
	}
	return observability.NopCounter()
}

func (m keyedMetrics) Histogram(name observability.MetricKey) observability.Histogram {
	if h, ok := m.histograms[name]; ok {
		return h
	}
	return observability.NopHistogram()
}

func withoutNil[T comparable](in map[observability.MetricKey]T) map[observability.MetricKey]T {
	var zero T
	out := make(map[observability.MetricKey]T, len(in))
	for k, v := range in {
		if v != zero {
			out[k] = v
		}
	}
	return out
}
