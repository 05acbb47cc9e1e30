package engine

import (
	"context"

	"github.com/spf13/cast"

	"github.com/ArcetriAdaptiveOptics/SpecuLab/errors"
	"github.com/ArcetriAdaptiveOptics/SpecuLab/stream"
)

// PreviewParam is the reserved parameter name through which the Runner
// injects its preview-mode flag into steps registered with WithPreview.
// It never participates in role classification, and user-supplied values
// under this key are overridden.
const PreviewParam = "preview"

// Step describes one scheduled pipeline step. A Step is immutable once a
// run starts and is owned by the Runner for the duration of that run.
type Step struct {
	// Name is the registry key of the step function.
	Name string `json:"name" validate:"required"`
	// Params supplies the step's declared parameters by name.
	Params Params `json:"params"`
	// Workers is the degree of parallelism (0 = sequential). Only
	// item-mapper steps are eligible; sources and sinks are inherently
	// sequential.
	Workers int `json:"workers" validate:"min=0"`
	// ChunkSize groups items before dispatch to the worker pool.
	// 0 means use the engine default.
	ChunkSize int `json:"chunk_size" validate:"min=0"`
}

// Step function shapes. The shape of a function is its role declaration:
// whether it consumes a stream (first data parameter) and whether it
// produces one (return value).
type (
	// SourceFunc produces a stream and consumes none.
	SourceFunc func(ctx context.Context, params Params) (stream.Iterator[any], error)
	// TransformFunc consumes a stream and produces a stream. The
	// returned iterator owns the input: its Close must close in.
	TransformFunc func(ctx context.Context, in stream.Iterator[any], params Params) (stream.Iterator[any], error)
	// SinkFunc consumes a stream and produces one aggregate value. The
	// sink may return before draining in; the Runner closes it.
	SinkFunc func(ctx context.Context, in stream.Iterator[any], params Params) (any, error)
	// ItemFunc consumes one item and produces one item. The Runner
	// promotes it to a lazy per-item transform, optionally fanned out
	// across a worker pool.
	ItemFunc func(ctx context.Context, item any, params Params) (any, error)
)

// Params maps parameter names to supplied values.
type Params map[string]any

// Has reports whether a parameter was supplied.
func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// String returns a required string parameter.
func (p Params) String(name string) (string, error) {
	raw, ok := p[name]
	if !ok {
		return "", errors.MissingField(name)
	}
	val, err := cast.ToStringE(raw)
	if err != nil {
		return "", errors.InvalidInput("parameter " + name + " is not a string").WithCause(err)
	}
	return val, nil
}

// Float returns a required float64 parameter.
func (p Params) Float(name string) (float64, error) {
	raw, ok := p[name]
	if !ok {
		return 0, errors.MissingField(name)
	}
	val, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, errors.InvalidInput("parameter " + name + " is not a number").WithCause(err)
	}
	return val, nil
}

// Int returns a required int parameter.
func (p Params) Int(name string) (int, error) {
	raw, ok := p[name]
	if !ok {
		return 0, errors.MissingField(name)
	}
	val, err := cast.ToIntE(raw)
	if err != nil {
		return 0, errors.InvalidInput("parameter " + name + " is not an integer").WithCause(err)
	}
	return val, nil
}

// Bool returns a bool parameter, or def when absent.
func (p Params) Bool(name string, def bool) bool {
	raw, ok := p[name]
	if !ok {
		return def
	}
	val, err := cast.ToBoolE(raw)
	if err != nil {
		return def
	}
	return val
}

// clone returns a shallow copy so the Runner can inject reserved
// parameters without mutating the caller's descriptor.
func (p Params) clone() Params {
	out := make(Params, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	return out
}
