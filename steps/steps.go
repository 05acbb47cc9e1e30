package steps

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ArcetriAdaptiveOptics/SpecuLab/engine"
	"github.com/ArcetriAdaptiveOptics/SpecuLab/errors"
	"github.com/ArcetriAdaptiveOptics/SpecuLab/stream"
)

// RegisterBuiltins adds the built-in step library to a registry.
func RegisterBuiltins(r *engine.Registry) {
	r.MustRegister("list_files", engine.SourceFunc(ListFiles),
		engine.WithDescription("glob a pattern and emit matching paths in acquisition order"))
	r.MustRegister("pair_diff", engine.TransformFunc(PairDiff),
		engine.WithDescription("difference consecutive frame pairs (up - down)"),
		engine.WithPreview())
	r.MustRegister("normalize_constant", engine.ItemFunc(NormalizeConstant),
		engine.WithDescription("divide each frame by a constant"))
	r.MustRegister("scale", engine.ItemFunc(Scale),
		engine.WithDescription("multiply each frame by a factor"))
	r.MustRegister("stack_sink", engine.SinkFunc(StackSink),
		engine.WithDescription("elementwise sum of all frames"))
	r.MustRegister("collect_sink", engine.SinkFunc(CollectSink),
		engine.WithDescription("drain the stream into a slice"))
}

// ListFiles emits the paths matching the "pattern" glob parameter.
// Acquisitions are stored one frame per timestamped directory, so
// paths are ordered by the numeric suffix of their parent directory
// rather than lexically. An empty match set is an error: a pipeline
// fed nothing should say so rather than complete over zero frames.
func ListFiles(ctx context.Context, params engine.Params) (stream.Iterator[any], error) {
	pattern, err := params.String("pattern")
	if err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.InvalidInput("invalid glob pattern " + pattern).WithCause(err)
	}
	if len(matches) == 0 {
		return nil, errors.NotFound("files matching", pattern)
	}

	keys := make(map[string]int, len(matches))
	for _, path := range matches {
		key, err := dirSequence(path)
		if err != nil {
			return nil, err
		}
		keys[path] = key
	}
	sort.Slice(matches, func(i, j int) bool { return keys[matches[i]] < keys[matches[j]] })

	items := make([]any, len(matches))
	for i, path := range matches {
		items[i] = path
	}
	return stream.FromSlice(items).Iter(ctx), nil
}

// dirSequence extracts the numeric suffix of a path's parent directory,
// e.g. "run_0012/frame.fits" -> 12.
func dirSequence(path string) (int, error) {
	dir := filepath.Dir(path)
	parts := strings.Split(dir, "_")
	n, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0, errors.InvalidInput("directory " + dir + " has no numeric suffix").WithCause(err)
	}
	return n, nil
}

// PairDiff consumes frames in consecutive pairs and emits up - down for
// each pair. In preview mode only the first pair is emitted. A trailing
// unpaired frame is an error.
func PairDiff(_ context.Context, in stream.Iterator[any], params engine.Params) (stream.Iterator[any], error) {
	return &pairDiffIter{in: in, preview: params.Bool(engine.PreviewParam, false)}, nil
}

type pairDiffIter struct {
	in      stream.Iterator[any]
	preview bool
	done    bool
}

func (it *pairDiffIter) Next(ctx context.Context) (any, bool, error) {
	if it.done {
		return nil, false, nil
	}
	upRaw, ok, err := it.in.Next(ctx)
	if err != nil || !ok {
		it.done = true
		return nil, false, err
	}
	downRaw, ok, err := it.in.Next(ctx)
	if err != nil {
		it.done = true
		return nil, false, err
	}
	if !ok {
		it.done = true
		return nil, false, errors.InvalidInput("unpaired trailing frame")
	}

	up, err := asFrame(upRaw)
	if err != nil {
		return nil, false, err
	}
	down, err := asFrame(downRaw)
	if err != nil {
		return nil, false, err
	}
	if len(up) != len(down) {
		return nil, false, errors.InvalidInput("frame size mismatch in pair")
	}
	diff := make([]float64, len(up))
	for i := range up {
		diff[i] = up[i] - down[i]
	}
	if it.preview {
		it.done = true
	}
	return diff, true, nil
}

func (it *pairDiffIter) Close() error { return it.in.Close() }

// NormalizeConstant divides a frame by the "constant" parameter.
func NormalizeConstant(_ context.Context, item any, params engine.Params) (any, error) {
	c, err := params.Float("constant")
	if err != nil {
		return nil, err
	}
	if c == 0 {
		return nil, errors.InvalidInput("constant must not be zero")
	}
	frame, err := asFrame(item)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(frame))
	for i, v := range frame {
		out[i] = v / c
	}
	return out, nil
}

// Scale multiplies a frame by the "factor" parameter. Pure per-frame
// work, safe to fan out over a worker pool.
func Scale(_ context.Context, item any, params engine.Params) (any, error) {
	f, err := params.Float("factor")
	if err != nil {
		return nil, err
	}
	frame, err := asFrame(item)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(frame))
	for i, v := range frame {
		out[i] = v * f
	}
	return out, nil
}

// StackSink sums all frames elementwise and returns the stacked frame.
func StackSink(ctx context.Context, in stream.Iterator[any], _ engine.Params) (any, error) {
	var stack []float64
	for {
		raw, ok, err := in.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		frame, err := asFrame(raw)
		if err != nil {
			return nil, err
		}
		if stack == nil {
			stack = make([]float64, len(frame))
		}
		if len(frame) != len(stack) {
			return nil, errors.InvalidInput("frame size mismatch in stack")
		}
		for i, v := range frame {
			stack[i] += v
		}
	}
	if stack == nil {
		return nil, errors.InvalidInput("stream produced no frames to stack")
	}
	return stack, nil
}

// CollectSink drains the stream into a slice. Diagnostic.
func CollectSink(ctx context.Context, in stream.Iterator[any], _ engine.Params) (any, error) {
	var out []any
	for {
		v, ok, err := in.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

func asFrame(v any) ([]float64, error) {
	frame, ok := v.([]float64)
	if !ok {
		return nil, errors.InvalidInput("item is not a frame of float64 samples")
	}
	return frame, nil
}
