package fn

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"
)

func TestResult_OkErr(t *testing.T) {
	ok := Ok(42)
	if !ok.IsOk() || ok.IsErr() {
		t.Fatal("Ok result should be ok")
	}
	v, err := ok.Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("unexpected unwrap: %d %v", v, err)
	}

	e := Err[int](errors.New("boom"))
	if e.IsOk() {
		t.Fatal("Err result should not be ok")
	}
	if got := e.UnwrapOr(7); got != 7 {
		t.Fatalf("UnwrapOr fallback: got %d", got)
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair(1, nil); r.IsErr() {
		t.Fatal("expected ok")
	}
	if r := FromPair(0, errors.New("x")); r.IsOk() {
		t.Fatal("expected err")
	}
}

func TestThen_ShortCircuits(t *testing.T) {
	first := func(_ context.Context, n int) Result[int] {
		return Err[int](errors.New("first failed"))
	}
	called := false
	second := func(_ context.Context, n int) Result[string] {
		called = true
		return Ok(strconv.Itoa(n))
	}
	r := Then(first, second)(context.Background(), 1)
	if r.IsOk() {
		t.Fatal("expected error")
	}
	if called {
		t.Fatal("second stage should not run after failure")
	}
}

func TestThen_Composes(t *testing.T) {
	double := MapStage(func(n int) int { return n * 2 })
	str := MapStage(strconv.Itoa)
	r := Then(double, str)(context.Background(), 21)
	v, err := r.Unwrap()
	if err != nil || v != "42" {
		t.Fatalf("got %q %v", v, err)
	}
}

func TestTapStage_PassesThrough(t *testing.T) {
	var seen int
	tap := TapStage(func(_ context.Context, n int) { seen = n })
	v, err := tap(context.Background(), 9).Unwrap()
	if err != nil || v != 9 {
		t.Fatalf("got %d %v", v, err)
	}
	if seen != 9 {
		t.Fatalf("side effect saw %d", seen)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[int] {
		attempts++
		if attempts < 3 {
			return Err[int](errors.New("transient"))
		}
		return Ok(attempts)
	})
	if r.IsErr() {
		t.Fatal("expected eventual success")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_GivesUp(t *testing.T) {
	opts := RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[int] {
		return Err[int](errors.New("permanent"))
	})
	if r.IsOk() {
		t.Fatal("expected failure")
	}
}
