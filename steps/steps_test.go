package steps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ArcetriAdaptiveOptics/SpecuLab/engine"
	"github.com/ArcetriAdaptiveOptics/SpecuLab/errors"
	"github.com/ArcetriAdaptiveOptics/SpecuLab/logger"
	"github.com/ArcetriAdaptiveOptics/SpecuLab/stream"
)

func drain(t *testing.T, it stream.Iterator[any]) []any {
	t.Helper()
	ctx := context.Background()
	var out []any
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func frames(items ...[]float64) stream.Iterator[any] {
	raw := make([]any, len(items))
	for i, f := range items {
		raw[i] = f
	}
	return stream.FromSlice(raw).Iter(context.Background())
}

func wantFrame(t *testing.T, got any, want []float64) {
	t.Helper()
	frame, ok := got.([]float64)
	if !ok {
		t.Fatalf("got %T, want []float64", got)
	}
	if len(frame) != len(want) {
		t.Fatalf("got %v, want %v", frame, want)
	}
	for i := range want {
		if frame[i] != want[i] {
			t.Fatalf("got %v, want %v", frame, want)
		}
	}
}

func TestListFiles_NumericDirectoryOrder(t *testing.T) {
	root := t.TempDir()
	// Lexically "meas_10" sorts before "meas_2"; acquisition order
	// must win.
	for _, dir := range []string{"meas_10", "meas_2", "meas_1"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(root, dir, "frame.dat"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	it, err := ListFiles(context.Background(), engine.Params{
		"pattern": filepath.Join(root, "*", "frame.dat"),
	})
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	got := drain(t, it)
	want := []string{
		filepath.Join(root, "meas_1", "frame.dat"),
		filepath.Join(root, "meas_2", "frame.dat"),
		filepath.Join(root, "meas_10", "frame.dat"),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d paths, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestListFiles_NoMatchIsError(t *testing.T) {
	_, err := ListFiles(context.Background(), engine.Params{
		"pattern": filepath.Join(t.TempDir(), "nothing", "*.dat"),
	})
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestListFiles_NonNumericDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "plain"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "plain", "frame.dat"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := ListFiles(context.Background(), engine.Params{
		"pattern": filepath.Join(root, "plain", "*.dat"),
	})
	if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("error = %v, want invalid input", err)
	}
}

func TestPairDiff(t *testing.T) {
	in := frames([]float64{10, 8}, []float64{4, 2}, []float64{5, 5}, []float64{1, 2})
	out, err := PairDiff(context.Background(), in, engine.Params{})
	if err != nil {
		t.Fatalf("PairDiff() error = %v", err)
	}
	got := drain(t, out)
	if len(got) != 2 {
		t.Fatalf("got %d diffs, want 2", len(got))
	}
	wantFrame(t, got[0], []float64{6, 6})
	wantFrame(t, got[1], []float64{4, 3})
}

func TestPairDiff_PreviewStopsAfterFirstPair(t *testing.T) {
	in := frames([]float64{3}, []float64{1}, []float64{9}, []float64{9})
	out, err := PairDiff(context.Background(), in, engine.Params{engine.PreviewParam: true})
	if err != nil {
		t.Fatalf("PairDiff() error = %v", err)
	}
	got := drain(t, out)
	if len(got) != 1 {
		t.Fatalf("got %d diffs in preview, want 1", len(got))
	}
	wantFrame(t, got[0], []float64{2})
}

func TestPairDiff_UnpairedFrame(t *testing.T) {
	in := frames([]float64{1}, []float64{2}, []float64{3})
	out, err := PairDiff(context.Background(), in, engine.Params{})
	if err != nil {
		t.Fatalf("PairDiff() error = %v", err)
	}
	ctx := context.Background()
	if _, _, err := out.Next(ctx); err != nil {
		t.Fatalf("first pair error = %v", err)
	}
	if _, _, err := out.Next(ctx); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("trailing frame error = %v, want invalid input", err)
	}
}

func TestNormalizeConstant(t *testing.T) {
	got, err := NormalizeConstant(context.Background(), []float64{2, 4}, engine.Params{"constant": 2.0})
	if err != nil {
		t.Fatalf("NormalizeConstant() error = %v", err)
	}
	wantFrame(t, got, []float64{1, 2})

	if _, err := NormalizeConstant(context.Background(), []float64{1}, engine.Params{"constant": 0}); err == nil {
		t.Error("zero constant accepted")
	}
	if _, err := NormalizeConstant(context.Background(), []float64{1}, engine.Params{}); !errors.HasCode(err, errors.ErrCodeMissingField) {
		t.Errorf("missing constant error = %v, want missing field", err)
	}
	if _, err := NormalizeConstant(context.Background(), "not a frame", engine.Params{"constant": 2.0}); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("bad item error = %v, want invalid input", err)
	}
}

func TestScale(t *testing.T) {
	got, err := Scale(context.Background(), []float64{1, -2}, engine.Params{"factor": 3.0})
	if err != nil {
		t.Fatalf("Scale() error = %v", err)
	}
	wantFrame(t, got, []float64{3, -6})
}

func TestStackSink(t *testing.T) {
	got, err := StackSink(context.Background(), frames(
		[]float64{1, 2}, []float64{10, 20}, []float64{100, 200},
	), engine.Params{})
	if err != nil {
		t.Fatalf("StackSink() error = %v", err)
	}
	wantFrame(t, got, []float64{111, 222})
}

func TestStackSink_MismatchAndEmpty(t *testing.T) {
	_, err := StackSink(context.Background(), frames([]float64{1}, []float64{1, 2}), engine.Params{})
	if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("mismatch error = %v, want invalid input", err)
	}
	_, err = StackSink(context.Background(), frames(), engine.Params{})
	if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("empty stream error = %v, want invalid input", err)
	}
}

func TestCollectSink(t *testing.T) {
	got, err := CollectSink(context.Background(), frames([]float64{1}, []float64{2}), engine.Params{})
	if err != nil {
		t.Fatalf("CollectSink() error = %v", err)
	}
	if items := got.([]any); len(items) != 2 {
		t.Errorf("collected %d items, want 2", len(items))
	}
}

func TestRegisterBuiltins(t *testing.T) {
	r := engine.NewRegistry()
	RegisterBuiltins(r)
	want := []string{"collect_sink", "list_files", "normalize_constant", "pair_diff", "scale", "stack_sink"}
	got := r.List()
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	entry, _ := r.Get("pair_diff")
	if !entry.AcceptsPreview {
		t.Error("pair_diff not registered as preview-aware")
	}
}

// Full reduction through the engine: frames are differenced in pairs,
// normalized, scaled on a worker pool, and stacked.
func TestPipeline_EndToEnd(t *testing.T) {
	reg := engine.NewRegistry()
	RegisterBuiltins(reg)
	reg.MustRegister("frames", engine.SourceFunc(func(ctx context.Context, _ engine.Params) (stream.Iterator[any], error) {
		items := make([]any, 6)
		for i := range items {
			v := float64(i + 1)
			items[i] = []float64{v, v}
		}
		return stream.FromSlice(items).Iter(ctx), nil
	}))
	runner := engine.NewRunner(reg, engine.WithLogger(logger.New(&logger.Config{Level: "error"}, "steps-test")))

	steps := []engine.Step{
		{Name: "frames"},
		{Name: "pair_diff"},
		{Name: "normalize_constant", Params: engine.Params{"constant": 2.0}},
		{Name: "scale", Params: engine.Params{"factor": 3.0}, Workers: 2},
		{Name: "stack_sink"},
	}

	res, err := runner.Run(context.Background(), steps, engine.Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Status != engine.StatusCompleted {
		t.Fatalf("Status = %q, want %q", res.Status, engine.StatusCompleted)
	}
	// Three pairs of [n,n]-[n+1,n+1] = [-1,-1]; /2 then *3 gives
	// [-1.5,-1.5] each, stacked to [-4.5,-4.5].
	wantFrame(t, res.Value, []float64{-4.5, -4.5})
}

func TestPipeline_EndToEndPreview(t *testing.T) {
	reg := engine.NewRegistry()
	RegisterBuiltins(reg)
	reg.MustRegister("frames", engine.SourceFunc(func(ctx context.Context, _ engine.Params) (stream.Iterator[any], error) {
		items := make([]any, 1000)
		for i := range items {
			v := float64(i + 1)
			items[i] = []float64{v}
		}
		return stream.FromSlice(items).Iter(ctx), nil
	}))
	runner := engine.NewRunner(reg, engine.WithLogger(logger.New(&logger.Config{Level: "error"}, "steps-test")))

	steps := []engine.Step{
		{Name: "frames"},
		{Name: "pair_diff"},
		{Name: "stack_sink"},
	}

	res, err := runner.Run(context.Background(), steps, engine.Options{Preview: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Only the first pair survives preview truncation.
	wantFrame(t, res.Value, []float64{-1})
	if res.Steps[0].Items > 2 {
		t.Errorf("source produced %d items in preview, want at most 2", res.Steps[0].Items)
	}
}
