package resilience

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func newGroup(cfg FallbackConfig) *FallbackGroup[string] {
	g := NewFallbackGroup("primary", "primary", cfg)
	g.AddFallback("secondary", "secondary")
	return g
}

func TestFallbackGroup_PrimaryFirst(t *testing.T) {
	t.Parallel()

	g := newGroup(FallbackConfig{})
	var called []string
	err := g.Execute(context.Background(), func(v string) error {
		called = append(called, v)
		return nil
	})
	if err != nil || !slices.Equal(called, []string{"primary"}) {
		t.Errorf("Execute = %v, called %v", err, called)
	}
	if names := g.Names(); !slices.Equal(names, []string{"primary", "secondary"}) {
		t.Errorf("Names = %v", names)
	}
}

func TestFallbackGroup_FailsOver(t *testing.T) {
	t.Parallel()

	var failed []string
	g := newGroup(FallbackConfig{OnFailure: func(name string, err error) { failed = append(failed, name) }})

	got, err := ExecuteWithResult(context.Background(), g, func(v string) (string, error) {
		if v == "primary" {
			return "", errTest
		}
		return "from " + v, nil
	})
	if err != nil || got != "from secondary" {
		t.Fatalf("ExecuteWithResult = %q, %v", got, err)
	}
	if !slices.Equal(failed, []string{"primary"}) {
		t.Errorf("OnFailure saw %v", failed)
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	t.Parallel()

	g := newGroup(FallbackConfig{})
	err := g.Execute(context.Background(), func(string) error { return errTest })
	if !errors.Is(err, ErrAllFailed) || !errors.Is(err, errTest) {
		t.Errorf("err = %v, want ErrAllFailed wrapping the last error", err)
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()

	g := newGroup(FallbackConfig{CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour}})
	for range 2 {
		_ = g.Execute(context.Background(), func(v string) error {
			if v == "primary" {
				return errTest
			}
			return nil
		})
	}

	var called []string
	_ = g.Execute(context.Background(), func(v string) error {
		called = append(called, v)
		return nil
	})
	if !slices.Equal(called, []string{"secondary"}) {
		t.Errorf("called = %v, the open primary should be skipped", called)
	}
}

func TestFallbackGroup_StopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	g := newGroup(FallbackConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	var called []string
	err := g.Execute(ctx, func(v string) error {
		called = append(called, v)
		cancel()
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want the context error", err)
	}
	if !slices.Equal(called, []string{"primary"}) {
		t.Errorf("called = %v", called)
	}
}
