package fn

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

// --- Result ---

func TestOkAndErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("expected ok")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("Unwrap = %d, %v", v, err)
	}

	e := Err[int](errors.New("boom"))
	if e.IsOk() || !e.IsErr() {
		t.Fatal("expected err")
	}
	if e.UnwrapOr(7) != 7 {
		t.Fatal("UnwrapOr should return fallback")
	}
	if Errf[int]("bad %d", 1).IsOk() {
		t.Fatal("Errf should fail")
	}
}

func TestFromPair(t *testing.T) {
	if v, err := FromPair(3, nil).Unwrap(); v != 3 || err != nil {
		t.Fatalf("got %d, %v", v, err)
	}
	if FromPair(0, errors.New("x")).IsOk() {
		t.Fatal("expected error")
	}
}

func TestCollect(t *testing.T) {
	all := Collect([]Result[int]{Ok(1), Ok(2)})
	if v, _ := all.Unwrap(); !reflect.DeepEqual(v, []int{1, 2}) {
		t.Fatalf("got %v", v)
	}
	first := errors.New("first")
	bad := Collect([]Result[int]{Ok(1), Err[int](first), Err[int](errors.New("second"))})
	if _, err := bad.Unwrap(); !errors.Is(err, first) {
		t.Fatalf("expected first error, got %v", err)
	}
}

// --- Slices ---

func TestSliceHelpers(t *testing.T) {
	if got := Map([]int{1, 2}, func(v int) int { return v * 10 }); !reflect.DeepEqual(got, []int{10, 20}) {
		t.Fatalf("Map = %v", got)
	}
	if got := Filter([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 0 }); !reflect.DeepEqual(got, []int{2, 4}) {
		t.Fatalf("Filter = %v", got)
	}
	if got := Chunk([]int{1, 2, 3, 4, 5}, 2); !reflect.DeepEqual(got, [][]int{{1, 2}, {3, 4}, {5}}) {
		t.Fatalf("Chunk = %v", got)
	}
	if Chunk([]int{1}, 0) != nil {
		t.Fatal("Chunk with n=0 should be nil")
	}
	if got := Unique([]string{"b", "a", "b", "c", "a"}); !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Fatalf("Unique = %v", got)
	}
}

func TestParMapResult_OrderAndBound(t *testing.T) {
	var inFlight, peak atomic.Int32
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	out := ParMapResult(items, 3, func(v int) Result[int] {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		return Ok(v * v)
	})
	for i, r := range out {
		if v, _ := r.Unwrap(); v != items[i]*items[i] {
			t.Fatalf("position %d = %d", i, v)
		}
	}
	if peak.Load() > 3 {
		t.Fatalf("peak concurrency %d exceeds 3", peak.Load())
	}
	if len(ParMapResult([]int{}, 2, func(v int) Result[int] { return Ok(v) })) != 0 {
		t.Fatal("expected empty output")
	}
}

// --- Stages ---

func TestThen(t *testing.T) {
	double := Stage[int, int](func(_ context.Context, v int) Result[int] { return Ok(v * 2) })
	str := Stage[int, string](func(_ context.Context, v int) Result[string] { return Ok(string(rune('0' + v))) })
	if v, _ := Then(double, str)(context.Background(), 3).Unwrap(); v != "6" {
		t.Fatalf("got %q", v)
	}

	called := false
	fail := Stage[int, int](func(_ context.Context, _ int) Result[int] { return Err[int](errors.New("stop")) })
	next := Stage[int, int](func(_ context.Context, v int) Result[int] { called = true; return Ok(v) })
	if Then(fail, next)(context.Background(), 1).IsOk() {
		t.Fatal("expected error")
	}
	if called {
		t.Fatal("second stage must not run after a failure")
	}
}

func TestTapAndTracedStage(t *testing.T) {
	var seen int
	tap := TapStage(func(_ context.Context, v int) { seen = v })
	traced := TracedStage("test.stage", tap)
	if v, _ := traced(context.Background(), 9).Unwrap(); v != 9 || seen != 9 {
		t.Fatalf("v=%d seen=%d", v, seen)
	}
	failing := TracedStage("test.fail", Stage[int, int](func(_ context.Context, _ int) Result[int] {
		return Err[int](errors.New("traced failure"))
	}))
	if failing(context.Background(), 1).IsOk() {
		t.Fatal("expected error")
	}
}

func TestBatchStage(t *testing.T) {
	sq := Stage[int, int](func(_ context.Context, v int) Result[int] {
		if v < 0 {
			return Err[int](errors.New("negative"))
		}
		return Ok(v * v)
	})
	v, err := BatchStage(2, sq)(context.Background(), []int{1, 2, 3}).Unwrap()
	if err != nil || !reflect.DeepEqual(v, []int{1, 4, 9}) {
		t.Fatalf("got %v, %v", v, err)
	}
	if BatchStage(2, sq)(context.Background(), []int{1, -1}).IsOk() {
		t.Fatal("expected error")
	}
}

// --- Retry ---

type recordedSleep struct{ waits []time.Duration }

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	rs := &recordedSleep{}
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Second, Sleep: rs.sleep},
		func(_ context.Context) Result[int] {
			attempts++
			if attempts < 3 {
				return Err[int](errors.New("not yet"))
			}
			return Ok(42)
		})
	if v, _ := r.Unwrap(); v != 42 || attempts != 3 {
		t.Fatalf("v=%d attempts=%d", v, attempts)
	}
	if !reflect.DeepEqual(rs.waits, []time.Duration{time.Second, 2 * time.Second}) {
		t.Fatalf("waits = %v", rs.waits)
	}
}

func TestRetry_ExhaustedNoTrailingWait(t *testing.T) {
	rs := &recordedSleep{}
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Second, Sleep: rs.sleep},
		func(_ context.Context) Result[int] {
			attempts++
			return Err[int](errors.New("fail"))
		})
	if r.IsOk() || attempts != 3 {
		t.Fatalf("ok=%v attempts=%d", r.IsOk(), attempts)
	}
	if len(rs.waits) != 2 {
		t.Fatalf("expected 2 waits, got %v", rs.waits)
	}
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	rs := &recordedSleep{}
	cause := errors.New("unauthorized")
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 5, InitialWait: time.Second, Sleep: rs.sleep},
		func(_ context.Context) Result[int] {
			attempts++
			return Err[int](Permanent(cause))
		})
	_, err := r.Unwrap()
	if attempts != 1 || len(rs.waits) != 0 {
		t.Fatalf("attempts=%d waits=%v", attempts, rs.waits)
	}
	if !errors.Is(err, cause) || !IsPermanent(err) {
		t.Fatalf("unexpected error %v", err)
	}
	if Permanent(nil) != nil {
		t.Fatal("Permanent(nil) should be nil")
	}
}

func TestRetry_SleepErrorAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := 0
	r := Retry(ctx, RetryOpts{MaxAttempts: 10, InitialWait: time.Hour}, func(_ context.Context) Result[int] {
		attempts++
		return Err[int](errors.New("fail"))
	})
	if _, err := r.Unwrap(); !errors.Is(err, context.Canceled) || attempts != 1 {
		t.Fatalf("err=%v attempts=%d", err, attempts)
	}
}

func TestRetry_OnRetryAndMaxWait(t *testing.T) {
	rs := &recordedSleep{}
	var observed []int
	opts := RetryOpts{
		MaxAttempts: 5,
		InitialWait: time.Second,
		MaxWait:     3 * time.Second,
		Sleep:       rs.sleep,
		OnRetry:     func(attempt int, _ error, _ time.Duration) { observed = append(observed, attempt) },
	}
	Retry(context.Background(), opts, func(_ context.Context) Result[int] { return Err[int](errors.New("x")) })
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	if !reflect.DeepEqual(rs.waits, want) {
		t.Fatalf("waits = %v, want %v", rs.waits, want)
	}
	if !reflect.DeepEqual(observed, []int{0, 1, 2, 3}) {
		t.Fatalf("observed = %v", observed)
	}
}

func TestRetryStage(t *testing.T) {
	attempts := 0
	s := RetryStage(RetryOpts{MaxAttempts: 2, Sleep: func(context.Context, time.Duration) error { return nil }},
		Stage[int, int](func(_ context.Context, v int) Result[int] {
			attempts++
			if attempts < 2 {
				return Err[int](errors.New("fail"))
			}
			return Ok(v * 2)
		}))
	if v, _ := s(context.Background(), 5).Unwrap(); v != 10 {
		t.Fatalf("got %d", v)
	}
}

func TestSleepContext(t *testing.T) {
	if err := SleepContext(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SleepContext(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
