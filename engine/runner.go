package engine

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/ArcetriAdaptiveOptics/SpecuLab/config"
	"github.com/ArcetriAdaptiveOptics/SpecuLab/errors"
	"github.com/ArcetriAdaptiveOptics/SpecuLab/logger"
	"github.com/ArcetriAdaptiveOptics/SpecuLab/observability"
	"github.com/ArcetriAdaptiveOptics/SpecuLab/stream"
	"github.com/ArcetriAdaptiveOptics/SpecuLab/validation"
)

// Status is the lifecycle state of a pipeline run.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusValidating Status = "validating"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// StepResult records what a single scheduled step did during a run.
type StepResult struct {
	Name     string
	Role     Role
	Items    int64
	Duration time.Duration
	Err      error
}

// Result is the outcome of a pipeline run. Value holds the sink's
// aggregate, or the collected remaining items when the pipeline has
// no sink.
type Result struct {
	RunID    string
	Status   Status
	Value    any
	Steps    []*StepResult
	Duration time.Duration
}

// Options carries the per-run hooks and switches.
type Options struct {
	// Preview asks preview-aware steps to run in reduced form. Stream
	// stages are additionally truncated to PreviewCount items.
	Preview bool
	// PreviewCount overrides the configured preview truncation length
	// when positive.
	PreviewCount int
	// OnPeek receives the first value each stage produces: nil for a
	// source, the first streamed item for transforms and item mappers,
	// and the aggregate value for a sink. Registering it forces one
	// item through each stage as the pipeline is assembled.
	OnPeek func(step string, value any)
	// OnProgress is called with the running item count as each stage's
	// output flows.
	OnProgress func(step string, count int64)
	// CancelRequested is polled before every item. Returning true stops
	// the run cleanly with StatusCancelled.
	CancelRequested func() bool
}

// Runner schedules registered steps into a lazy stream and drives it.
type Runner struct {
	registry *Registry
	cfg      config.EngineConfig
	log      *logger.Logger
	tracing  bool
	metrics  *observability.Metrics
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithConfig replaces the default engine configuration.
func WithConfig(cfg config.EngineConfig) RunnerOption {
	return func(r *Runner) { r.cfg = cfg }
}

// WithLogger replaces the default logger.
func WithLogger(l *logger.Logger) RunnerOption {
	return func(r *Runner) { r.log = l }
}

// NewRunner builds a Runner over a registry.
func NewRunner(registry *Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: registry,
		cfg:      config.Default(),
		log:      logger.WithComponent("engine"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the scheduled steps in order. Each step is validated and
// classified as it is reached, so a structural mistake late in the
// schedule surfaces only after the earlier stages are already wired
// (and, with OnPeek set, already producing).
//
// The returned Result is never nil; on failure it carries the partial
// step results alongside the error.
func (r *Runner) Run(ctx context.Context, steps []Step, opts Options) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.NewString(), Status: StatusIdle}
	log := r.log.WithFields(logger.Fields(logger.FieldRunID, res.RunID))

	var cancelled bool
	var cur *stream.Pipeline[any]

	// closeStream tears down whatever chain has been assembled so far:
	// instantiating the remaining lazy wrappers and closing the outermost
	// iterator propagates Close stage by stage down to the source,
	// releasing any worker pool a parallel stage has started.
	closeStream := func() {
		if cur == nil {
			return
		}
		if err := cur.Iter(ctx).Close(); err != nil {
			log.Warn("stream teardown failed", logger.Fields(logger.FieldError, err.Error()))
		}
		cur = nil
	}

	fail := func(sr *StepResult, err error) (*Result, error) {
		closeStream()
		if sr != nil {
			sr.Err = err
		}
		res.Status = StatusFailed
		res.Duration = time.Since(start)
		log.Error("pipeline run failed", logger.Fields(
			logger.FieldStatus, string(res.Status),
			logger.FieldError, err.Error(),
		))
		r.recordRun(ctx, res)
		return res, err
	}

	if len(steps) == 0 {
		return fail(nil, errors.InvalidInput("pipeline has no steps"))
	}

	previewCount := opts.PreviewCount
	if previewCount <= 0 {
		previewCount = r.cfg.PreviewCount
	}

	log.Info("starting pipeline run", logger.Fields(
		"steps", len(steps),
		"preview", opts.Preview,
	))

	for i := range steps {
		step := steps[i]
		res.Status = StatusValidating

		if err := validation.ValidateStruct(&step); err != nil {
			return fail(nil, err)
		}
		entry, ok := r.registry.Get(step.Name)
		if !ok {
			return fail(nil, errors.NotFound("step", step.Name))
		}
		role, err := Classify(entry.Func())
		if err != nil {
			return fail(nil, err)
		}

		sr := &StepResult{Name: step.Name, Role: role}
		res.Steps = append(res.Steps, sr)

		if role == RoleSource && cur != nil {
			return fail(sr, newStructureError(step.Name, role, "source cannot follow a stream"))
		}
		if role != RoleSource && cur == nil {
			return fail(sr, newStructureError(step.Name, role, string(role)+" requires an input stream"))
		}

		params := step.Params.clone()
		if entry.AcceptsPreview {
			params[PreviewParam] = opts.Preview
		}

		workers := r.effectiveWorkers(log, step, role)
		chunk := step.ChunkSize
		if chunk <= 0 {
			chunk = r.cfg.DefaultChunkSize
		}

		res.Status = StatusRunning
		log.Info("scheduling step", logger.Fields(
			logger.FieldStep, step.Name,
			logger.FieldRole, string(role),
			logger.FieldWorkers, workers,
		))

		stepCtx, finish := r.startStep(ctx, res.RunID, step.Name, role, sr)

		switch role {
		case RoleSource:
			it, err := asSource(entry.Func())(stepCtx, params)
			finish(err)
			if err != nil {
				return fail(sr, wrapStepError(step.Name, role, err))
			}
			cur = stream.From(it)

		case RoleTransform:
			in := cur.Iter(stepCtx)
			out, err := asTransform(entry.Func())(stepCtx, in, params)
			finish(err)
			if err != nil {
				// The transform never took ownership of its input.
				_ = in.Close()
				cur = nil
				return fail(sr, wrapStepError(step.Name, role, err))
			}
			cur = stream.From(out)

		case RoleGeneric:
			item := asItem(entry.Func())
			mapFn := func(ctx context.Context, v any) (any, error) {
				out, err := item(ctx, v, params)
				if err != nil {
					return nil, wrapStepError(step.Name, role, err)
				}
				return out, nil
			}
			if workers > 0 {
				cur = stream.OrderedParallel(cur, workers, chunk, mapFn)
			} else {
				cur = stream.Map(cur, mapFn)
			}
			finish(nil)

		case RoleSink:
			in := cur.Iter(stepCtx)
			value, err := asSink(entry.Func())(stepCtx, in, params)
			// The sink may legitimately return without draining its
			// input; closing here releases every upstream stage.
			if cerr := in.Close(); cerr != nil {
				log.Warn("stream teardown failed", logger.Fields(logger.FieldError, cerr.Error()))
			}
			cur = nil
			finish(err)
			if err != nil {
				if isCancellation(err) {
					return r.finishCancelled(ctx, log, res, start), nil
				}
				return fail(sr, wrapStepError(step.Name, role, err))
			}
			sr.Items = 1
			if opts.OnProgress != nil {
				opts.OnProgress(step.Name, 1)
			}
			if opts.OnPeek != nil {
				opts.OnPeek(step.Name, value)
			}
			res.Value = value
			if cancelled {
				return r.finishCancelled(ctx, log, res, start), nil
			}
			return r.finishCompleted(ctx, log, res, start), nil
		}

		cur = tagErrors(cur, step.Name, role)
		if opts.Preview && (role == RoleSource || role == RoleTransform) {
			cur = stream.Take(cur, previewCount)
		}
		cur, err = r.peek(ctx, cur, step.Name, role, opts)
		if err != nil {
			if isCancellation(err) {
				return r.finishCancelled(ctx, log, res, start), nil
			}
			return fail(sr, err)
		}
		if opts.CancelRequested != nil {
			cur = stream.Guard(cur, opts.CancelRequested, func() { cancelled = true })
		}
		cur = stream.Tap(cur, func(_ context.Context, _ any) error {
			sr.Items++
			if opts.OnProgress != nil {
				opts.OnProgress(step.Name, sr.Items)
			}
			return nil
		})
	}

	// No sink closed the schedule; drain what remains into a slice so
	// the run still yields a value.
	log.Warn("pipeline ended without a sink; collecting remaining items")
	values, err := stream.Collect(ctx, cur)
	cur = nil // Collect closed the chain
	if err != nil {
		if isCancellation(err) {
			return r.finishCancelled(ctx, log, res, start), nil
		}
		sr := res.Steps[len(res.Steps)-1]
		if name, found := FailedStep(err); found {
			for _, s := range res.Steps {
				if s.Name == name {
					sr = s
				}
			}
		}
		return fail(sr, err)
	}
	res.Value = values
	if cancelled {
		return r.finishCancelled(ctx, log, res, start), nil
	}
	return r.finishCompleted(ctx, log, res, start), nil
}

// effectiveWorkers clamps the requested pool size and rejects
// parallelism on roles that manage their own iteration.
func (r *Runner) effectiveWorkers(log *logger.Logger, step Step, role Role) int {
	workers := step.Workers
	if workers <= 0 {
		return 0
	}
	if role != RoleGeneric {
		log.Warn("parallelism ignored: only item mappers run on a worker pool", logger.Fields(
			logger.FieldStep, step.Name,
			logger.FieldRole, string(role),
		))
		return 0
	}
	if limit := r.cfg.MaxWorkers; limit > 0 && workers > limit {
		log.Warn("worker count clamped", logger.Fields(
			logger.FieldStep, step.Name,
			logger.FieldWorkers, workers,
			"max_workers", limit,
		))
		workers = limit
	}
	return workers
}

// peek reports the first value a stage produces. Sources report nil
// without touching the stream; other stages pull one item eagerly and
// re-emit it so the consumer still sees the full sequence.
func (r *Runner) peek(ctx context.Context, cur *stream.Pipeline[any], name string, role Role, opts Options) (*stream.Pipeline[any], error) {
	if opts.OnPeek == nil {
		return cur, nil
	}
	if role == RoleSource {
		opts.OnPeek(name, nil)
		return cur, nil
	}
	it := cur.Iter(ctx)
	first, ok, err := it.Next(ctx)
	if err != nil {
		_ = it.Close()
		return nil, err
	}
	if ok {
		opts.OnPeek(name, first)
	} else {
		opts.OnPeek(name, nil)
	}
	return stream.Resume(first, ok, it), nil
}

func (r *Runner) finishCompleted(ctx context.Context, log *logger.Logger, res *Result, start time.Time) *Result {
	res.Status = StatusCompleted
	res.Duration = time.Since(start)
	log.Info("pipeline run completed", logger.Fields(
		logger.FieldStatus, string(res.Status),
		logger.FieldDuration, res.Duration.Milliseconds(),
	))
	r.recordRun(ctx, res)
	return res
}

func (r *Runner) finishCancelled(ctx context.Context, log *logger.Logger, res *Result, start time.Time) *Result {
	res.Status = StatusCancelled
	res.Duration = time.Since(start)
	log.Warn("pipeline run cancelled", logger.Fields(
		logger.FieldStatus, string(res.Status),
		logger.FieldDuration, res.Duration.Milliseconds(),
	))
	r.recordRun(ctx, res)
	return res
}

// isCancellation reports whether err only signals that the surrounding
// context was torn down, which ends the run as cancelled rather than
// failed.
func isCancellation(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}

// wrapStepError attributes an execution failure to a step, leaving
// already-attributed pipeline errors untouched.
func wrapStepError(name string, role Role, err error) error {
	if IsStepExecutionError(err) || IsStructureError(err) || IsClassificationError(err) {
		return err
	}
	return newStepExecutionError(name, role, err)
}

// tagErrors wraps a stage's output so errors surfacing from its lazy
// iteration carry the step identity even when they are first observed
// stages later, at the sink.
func tagErrors(p *stream.Pipeline[any], name string, role Role) *stream.Pipeline[any] {
	return stream.FromFunc(func(ctx context.Context) stream.Iterator[any] {
		return &errTagIter{src: p.Iter(ctx), name: name, role: role}
	})
}

type errTagIter struct {
	src  stream.Iterator[any]
	name string
	role Role
}

func (it *errTagIter) Next(ctx context.Context) (any, bool, error) {
	// The run polls its context between items, so cancellation is
	// observed even when every stage below is pure computation.
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	val, ok, err := it.src.Next(ctx)
	if err != nil && !isCancellation(err) {
		err = wrapStepError(it.name, it.role, err)
	}
	return val, ok, err
}

func (it *errTagIter) Close() error { return it.src.Close() }
