package stream

import (
	"context"
	"errors"
	"testing"
)

func TestMap(t *testing.T) {
	p := Map(FromSlice([]int{1, 2, 3}), func(_ context.Context, n int) (int, error) {
		return n * 2, nil
	})
	got, err := Collect(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{2, 4, 6}) {
		t.Errorf("got %v, want [2 4 6]", got)
	}
}

func TestMap_Error(t *testing.T) {
	boom := errors.New("boom")
	src := &countingIter{limit: 10}
	p := Map(From[int](src), func(_ context.Context, n int) (int, error) {
		if n == 1 {
			return 0, boom
		}
		return n, nil
	})
	got, err := Collect(context.Background(), p)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if !intSliceEqual(got, []int{0}) {
		t.Errorf("got %v before the error, want [0]", got)
	}
	if src.pulls != 2 {
		t.Errorf("upstream pulled %d times, want 2", src.pulls)
	}
}

func TestTap_PreservesOrderAndCount(t *testing.T) {
	var tapped []int
	p := Tap(FromSlice([]int{3, 1, 2}), func(_ context.Context, v int) error {
		tapped = append(tapped, v)
		return nil
	})
	got, err := Collect(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{3, 1, 2}) {
		t.Errorf("tap changed the stream: %v", got)
	}
	if !intSliceEqual(tapped, []int{3, 1, 2}) {
		t.Errorf("tap saw %v, want [3 1 2]", tapped)
	}
}

func TestTake(t *testing.T) {
	src := &countingIter{limit: 1000}
	got, err := Collect(context.Background(), Take(From[int](src), 2))
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{0, 1}) {
		t.Errorf("got %v, want [0 1]", got)
	}
	if src.pulls != 2 {
		t.Errorf("upstream pulled %d times, want 2", src.pulls)
	}
}

func TestTake_ShorterStream(t *testing.T) {
	got, err := Collect(context.Background(), Take(FromSlice([]int{1}), 5))
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{1}) {
		t.Errorf("got %v, want [1]", got)
	}
}

func TestChunk(t *testing.T) {
	got, err := Collect(context.Background(), Chunk(FromSlice([]int{1, 2, 3, 4, 5}), 2))
	if err != nil {
		t.Fatal(err)
	}
	want := [][]int{{1, 2}, {3, 4}, {5}}
	if len(got) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(got), len(want))
	}
	for i := range want {
		if !intSliceEqual(got[i], want[i]) {
			t.Errorf("chunk %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestChunk_PartialBeforeError(t *testing.T) {
	boom := errors.New("boom")
	n := 0
	p := Generate(func(_ context.Context) (int, bool, error) {
		if n == 3 {
			return 0, false, boom
		}
		val := n
		n++
		return val, true, nil
	})
	iter := Chunk(p, 2).Iter(context.Background())
	defer iter.Close()

	first, ok, err := iter.Next(context.Background())
	if err != nil || !ok || !intSliceEqual(first, []int{0, 1}) {
		t.Fatalf("first chunk: %v ok=%v err=%v", first, ok, err)
	}
	second, ok, err := iter.Next(context.Background())
	if err != nil || !ok || !intSliceEqual(second, []int{2}) {
		t.Fatalf("partial chunk should surface before the error: %v ok=%v err=%v", second, ok, err)
	}
	// The deferred error must not be swallowed by the exhaustion path.
	if _, ok, err := iter.Next(context.Background()); ok || !errors.Is(err, boom) {
		t.Fatalf("pull after partial chunk: ok=%v err=%v, want the source error", ok, err)
	}
	if _, ok, err := iter.Next(context.Background()); ok || err != nil {
		t.Fatalf("pull after delivered error: ok=%v err=%v, want clean end", ok, err)
	}
}

func TestChunk_CollectSeesTrailingError(t *testing.T) {
	boom := errors.New("boom")
	n := 0
	p := Generate(func(_ context.Context) (int, bool, error) {
		n++
		if n > 3 {
			return 0, false, boom
		}
		return n, true, nil
	})
	got, err := Collect(context.Background(), Chunk(p, 2))
	if !errors.Is(err, boom) {
		t.Fatalf("Collect error = %v, want the source error", err)
	}
	if len(got) != 2 || !intSliceEqual(got[0], []int{1, 2}) || !intSliceEqual(got[1], []int{3}) {
		t.Fatalf("chunks before error = %v, want [[1 2] [3]]", got)
	}
}

func TestLookahead_ReportsFirstWithoutSkipping(t *testing.T) {
	var observed int
	var observedOK bool
	p := Lookahead(FromSlice([]int{7, 8, 9}), func(first int, ok bool) {
		observed, observedOK = first, ok
	})
	got, err := Collect(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if !observedOK || observed != 7 {
		t.Errorf("observed (%d, %v), want (7, true)", observed, observedOK)
	}
	if !intSliceEqual(got, []int{7, 8, 9}) {
		t.Errorf("lookahead consumed an item: got %v", got)
	}
}

func TestLookahead_EmptyStream(t *testing.T) {
	called := false
	var observedOK bool
	p := Lookahead(FromSlice([]int{}), func(_ int, ok bool) {
		called = true
		observedOK = ok
	})
	got, err := Collect(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if !called || observedOK {
		t.Errorf("observer should be told the stream is empty (called=%v ok=%v)", called, observedOK)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestLookahead_Lazy(t *testing.T) {
	src := &countingIter{limit: 10}
	p := Lookahead(From[int](src), func(int, bool) {})
	// Building the pipeline must not pull anything.
	if src.pulls != 0 {
		t.Fatalf("lookahead pulled %d items before consumption", src.pulls)
	}
	iter := p.Iter(context.Background())
	defer iter.Close()
	if _, _, err := iter.Next(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.pulls != 1 {
		t.Errorf("upstream pulled %d times after one Next, want 1", src.pulls)
	}
}

func TestGuard_StopsImmediately(t *testing.T) {
	src := &countingIter{limit: 1000}
	stop := false
	stopped := false
	p := Guard(From[int](src), func() bool { return stop }, func() { stopped = true })

	iter := p.Iter(context.Background())
	defer iter.Close()

	for i := 0; i < 3; i++ {
		if _, ok, err := iter.Next(context.Background()); !ok || err != nil {
			t.Fatalf("pull %d: ok=%v err=%v", i, ok, err)
		}
	}
	stop = true
	if _, ok, err := iter.Next(context.Background()); ok || err != nil {
		t.Fatalf("guard should end the stream: ok=%v err=%v", ok, err)
	}
	if !stopped {
		t.Error("onStop not invoked")
	}
	if src.pulls != 3 {
		t.Errorf("upstream pulled %d times after stop, want 3", src.pulls)
	}
	// Subsequent pulls stay exhausted and never touch upstream.
	if _, ok, _ := iter.Next(context.Background()); ok {
		t.Error("stopped guard yielded again")
	}
	if src.pulls != 3 {
		t.Errorf("stopped guard pulled upstream again (%d pulls)", src.pulls)
	}
}

func TestGuard_OnStopOnlyOnTrigger(t *testing.T) {
	stopped := false
	p := Guard(FromSlice([]int{1, 2}), func() bool { return false }, func() { stopped = true })
	got, err := Collect(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{1, 2}) {
		t.Errorf("got %v, want [1 2]", got)
	}
	if stopped {
		t.Error("onStop invoked without a stop request")
	}
}
