package engine

import (
	"context"
	"fmt"

	"github.com/ArcetriAdaptiveOptics/SpecuLab/stream"
)

// Role classifies a step function by its calling-convention shape.
type Role string

const (
	// RoleSource produces a lazy stream and consumes none.
	RoleSource Role = "source"
	// RoleTransform consumes a stream and produces a stream.
	RoleTransform Role = "transform"
	// RoleSink consumes a stream and produces one aggregate value.
	RoleSink Role = "sink"
	// RoleGeneric consumes one item and produces one item.
	RoleGeneric Role = "generic"
)

// Classify derives the role of a step function from its shape. It accepts
// both the named shapes (SourceFunc, TransformFunc, SinkFunc, ItemFunc)
// and their underlying function signatures. Any other value fails with a
// classification error.
//
// Roles are derived, never stored: the Runner re-classifies a step each
// time it is scheduled.
func Classify(fn any) (Role, error) {
	switch fn.(type) {
	case SourceFunc, func(context.Context, Params) (stream.Iterator[any], error):
		return RoleSource, nil
	case TransformFunc, func(context.Context, stream.Iterator[any], Params) (stream.Iterator[any], error):
		return RoleTransform, nil
	case SinkFunc, func(context.Context, stream.Iterator[any], Params) (any, error):
		return RoleSink, nil
	case ItemFunc, func(context.Context, any, Params) (any, error):
		return RoleGeneric, nil
	default:
		return "", newClassificationError(fmt.Sprintf("%T", fn))
	}
}

// asSource normalizes a classified source value to its named shape.
func asSource(fn any) SourceFunc {
	switch f := fn.(type) {
	case SourceFunc:
		return f
	case func(context.Context, Params) (stream.Iterator[any], error):
		return SourceFunc(f)
	}
	return nil
}

func asTransform(fn any) TransformFunc {
	switch f := fn.(type) {
	case TransformFunc:
		return f
	case func(context.Context, stream.Iterator[any], Params) (stream.Iterator[any], error):
		return TransformFunc(f)
	}
	return nil
}

func asSink(fn any) SinkFunc {
	switch f := fn.(type) {
	case SinkFunc:
		return f
	case func(context.Context, stream.Iterator[any], Params) (any, error):
		return SinkFunc(f)
	}
	return nil
}

func asItem(fn any) ItemFunc {
	switch f := fn.(type) {
	case ItemFunc:
		return f
	case func(context.Context, any, Params) (any, error):
		return ItemFunc(f)
	}
	return nil
}
