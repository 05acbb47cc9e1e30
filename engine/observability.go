package engine

import (
	"context"
	"time"

	"github.com/ArcetriAdaptiveOptics/SpecuLab/observability"
)

// WithTracing enables an OpenTelemetry span per run and per step.
// Spans are named "pipeline.step.{name}" under a "pipeline.run" root.
func WithTracing() RunnerOption {
	return func(r *Runner) { r.tracing = true }
}

// WithMetrics enables run, step, item, and error counters on the
// given metric set.
func WithMetrics(metrics *observability.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = metrics }
}

// startStep opens the per-step span and returns a finish callback that
// records duration, status, and the step's error, if any. When neither
// tracing nor metrics are enabled the callback still fills in the
// StepResult timing.
func (r *Runner) startStep(ctx context.Context, runID, name string, role Role, sr *StepResult) (context.Context, func(error)) {
	start := time.Now()
	var end func()
	if r.tracing {
		spanCtx, span := observability.StartSpan(ctx, observability.SpanStep+"."+name)
		observability.SetSpanAttribute(spanCtx, observability.AttrRunID, runID)
		observability.SetSpanAttribute(spanCtx, observability.AttrStepName, name)
		observability.SetSpanAttribute(spanCtx, observability.AttrStepRole, string(role))
		ctx = spanCtx
		end = func() { span.End() }
	}
	return ctx, func(err error) {
		sr.Duration = time.Since(start)
		if r.tracing && err != nil {
			observability.SetSpanError(ctx, err)
		}
		if end != nil {
			end()
		}
		if r.metrics != nil {
			status := "ok"
			if err != nil {
				status = "error"
				r.metrics.RecordError(ctx, name)
			}
			r.metrics.RecordStep(ctx, name, status, sr.Duration)
		}
	}
}

// recordRun emits the run-level counters once a run reaches a terminal
// status, along with per-step item counts.
func (r *Runner) recordRun(ctx context.Context, res *Result) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordRun(ctx, string(res.Status), res.Duration)
	for _, sr := range res.Steps {
		if sr.Items > 0 {
			r.metrics.RecordItems(ctx, sr.Name, sr.Items)
		}
	}
}
