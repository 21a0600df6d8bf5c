package resilience

import (
	"errors"
	"testing"
	"time"
)

type countingBackend struct {
	calls int
	err   error
}

func (b *countingBackend) do() error {
	b.calls++
	return b.err
}

func TestFallbackGroup_PrimaryServesWhenHealthy(t *testing.T) {
	primary := &countingBackend{}
	fallback := &countingBackend{}
	fg := NewFallbackGroup(primary, "primary", FallbackConfig{})
	fg.AddFallback("secondary", fallback)

	if err := fg.Execute(func(b *countingBackend) error { return b.do() }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if primary.calls != 1 || fallback.calls != 0 {
		t.Errorf("calls = primary %d, fallback %d; want 1, 0", primary.calls, fallback.calls)
	}
}

func TestFallbackGroup_FailsOverInOrder(t *testing.T) {
	primary := &countingBackend{err: errBackend}
	second := &countingBackend{err: errBackend}
	third := &countingBackend{}
	fg := NewFallbackGroup(primary, "primary", FallbackConfig{})
	fg.AddFallback("second", second)
	fg.AddFallback("third", third)

	if err := fg.Execute(func(b *countingBackend) error { return b.do() }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if primary.calls != 1 || second.calls != 1 || third.calls != 1 {
		t.Errorf("calls = %d/%d/%d; want 1/1/1", primary.calls, second.calls, third.calls)
	}
}

func TestFallbackGroup_AllFailed(t *testing.T) {
	fg := NewFallbackGroup(&countingBackend{err: errBackend}, "only", FallbackConfig{})

	err := fg.Execute(func(b *countingBackend) error { return b.do() })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v; want ErrAllFailed", err)
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	primary := &countingBackend{err: errBackend}
	fallback := &countingBackend{}
	cfg := FallbackConfig{Breaker: BreakerConfig{MaxFailures: 1, CoolDown: time.Hour}}
	fg := NewFallbackGroup(primary, "primary", cfg)
	fg.AddFallback("secondary", fallback)

	// First call trips the primary's breaker; the second must skip it.
	for i := 0; i < 2; i++ {
		if err := fg.Execute(func(b *countingBackend) error { return b.do() }); err != nil {
			t.Fatalf("Execute %d: %v", i, err)
		}
	}
	if primary.calls != 1 {
		t.Errorf("primary.calls = %d; want 1 (open breaker must be skipped)", primary.calls)
	}
	if fallback.calls != 2 {
		t.Errorf("fallback.calls = %d; want 2", fallback.calls)
	}
}

func TestExecuteWithResult_ReturnsFirstSuccess(t *testing.T) {
	fg := NewFallbackGroup("broken", "primary", FallbackConfig{})
	fg.AddFallback("secondary", "healthy")

	got, err := ExecuteWithResult(fg, func(s string) (string, error) {
		if s == "broken" {
			return "", errBackend
		}
		return "result from " + s, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if got != "result from healthy" {
		t.Errorf("result = %q", got)
	}
}

func TestExecuteWithResult_AllFailedReturnsZero(t *testing.T) {
	fg := NewFallbackGroup("a", "primary", FallbackConfig{})

	got, err := ExecuteWithResult(fg, func(string) (int, error) { return 42, errBackend })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v; want ErrAllFailed", err)
	}
	if got != 0 {
		t.Errorf("result = %d; want zero value", got)
	}
}
