package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestFallbackGroup_PrefersPrimary(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup("openai", "openai", FallbackConfig{})
	fg.AddFallback("ollama", "ollama")

	var used string
	err := fg.Execute(func(backend string) error {
		used = backend
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if used != "openai" {
		t.Fatalf("used = %q, want the primary", used)
	}
}

func TestFallbackGroup_FailsOverOnError(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup("openai", "openai", FallbackConfig{})
	fg.AddFallback("ollama", "ollama")

	var used string
	err := fg.Execute(func(backend string) error {
		if backend == "openai" {
			return errBackendDown
		}
		used = backend
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if used != "ollama" {
		t.Fatalf("used = %q, want the fallback", used)
	}
}

func TestFallbackGroup_AllBackendsDown(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup("openai", "openai", FallbackConfig{})
	fg.AddFallback("ollama", "ollama")

	err := fg.Execute(func(string) error { return errBackendDown })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroup_OpenBreakerSkipsBackend(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup("openai", "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	fg.AddFallback("ollama", "ollama")

	for i := 0; i < 2; i++ {
		_ = fg.Execute(func(backend string) error {
			if backend == "openai" {
				return errBackendDown
			}
			return nil
		})
	}

	// The primary's breaker is open now, so it must not be called at all.
	var calls []string
	err := fg.Execute(func(backend string) error {
		calls = append(calls, backend)
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(calls) != 1 || calls[0] != "ollama" {
		t.Fatalf("calls = %v, want only the fallback", calls)
	}
}

func TestExecuteWithResult_FailsOverAndReturnsValue(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup(1, "first", FallbackConfig{})
	fg.AddFallback("second", 2)

	got, err := ExecuteWithResult(fg, func(v int) (string, error) {
		if v == 1 {
			return "", errBackendDown
		}
		return "answer", nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if got != "answer" {
		t.Fatalf("result = %q, want the fallback's answer", got)
	}
}

func TestExecuteWithResult_AllBackendsDown(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup(1, "first", FallbackConfig{})

	_, err := ExecuteWithResult(fg, func(int) (string, error) {
		return "", errBackendDown
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroup_ExecuteSharesBreakers(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup("openai", "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	fg.AddFallback("ollama", "ollama")

	// Trip the primary through the result path, then check the plain path
	// sees the same open breaker.
	_, _ = ExecuteWithResult(fg, func(backend string) (string, error) {
		if backend == "openai" {
			return "", errBackendDown
		}
		return "ok", nil
	})

	var calls []string
	err := fg.Execute(func(backend string) error {
		calls = append(calls, backend)
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(calls) != 1 || calls[0] != "ollama" {
		t.Fatalf("calls = %v, want only the fallback", calls)
	}
}
