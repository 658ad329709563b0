package services

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker"
)

func TestCircuitBreakerService_ExecutePassesThroughSuccess(t *testing.T) {
	cbs := NewCircuitBreakerService()

	result, err := cbs.Execute("minio", func() (interface{}, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected result %q, got %q", "ok", result)
	}
}

func TestCircuitBreakerService_TripsAfterConsecutiveFailures(t *testing.T) {
	cbs := NewCircuitBreakerService()
	boom := errors.New("boom")

	failingOp := func() (interface{}, error) {
		return nil, boom
	}

	// ReadyToTrip fires once ConsecutiveFailures >= 3, i.e. on the 3rd failure.
	for i := 0; i < 3; i++ {
		_, _ = cbs.Execute("minio", failingOp)
	}

	if state := cbs.GetCircuitBreaker("minio").State(); state != gobreaker.StateOpen {
		t.Fatalf("expected breaker to be open after 3 consecutive failures, got %s", state)
	}

	// While open, calls fail fast without invoking fn.
	called := false
	_, err := cbs.Execute("minio", func() (interface{}, error) {
		called = true
		return nil, nil
	})
	if err == nil {
		t.Fatalf("expected an error while the breaker is open")
	}
	if called {
		t.Errorf("fn must not run while the breaker is open")
	}
}

func TestCircuitBreakerService_GetCircuitBreakerKnownAliases(t *testing.T) {
	cbs := NewCircuitBreakerService()

	if cbs.GetCircuitBreaker("content-service") == nil {
		t.Errorf("expected content-service alias to resolve to the content breaker")
	}
	if cbs.GetCircuitBreaker("isolate") == nil {
		t.Errorf("expected isolate alias to resolve to the isolate breaker")
	}
}

func TestCircuitBreakerService_IsHealthy(t *testing.T) {
	cbs := NewCircuitBreakerService()
	if !cbs.IsHealthy() {
		t.Errorf("a fresh circuit breaker service should report healthy")
	}

	for i := 0; i < 3; i++ {
		_, _ = cbs.Execute("rabbitmq", func() (interface{}, error) {
			return nil, errors.New("down")
		})
	}

	if cbs.IsHealthy() {
		t.Errorf("expected IsHealthy to be false once a breaker has tripped open")
	}
}

func TestCircuitBreakerService_Reset(t *testing.T) {
	cbs := NewCircuitBreakerService()

	for i := 0; i < 3; i++ {
		_, _ = cbs.Execute("content-service", func() (interface{}, error) {
			return nil, errors.New("down")
		})
	}
	if state := cbs.GetCircuitBreaker("content-service").State(); state != gobreaker.StateOpen {
		t.Fatalf("expected content breaker to be open before reset, got %s", state)
	}

	if err := cbs.Reset("content"); err != nil {
		t.Fatalf("unexpected error resetting: %v", err)
	}
	if state := cbs.GetCircuitBreaker("content-service").State(); state != gobreaker.StateClosed {
		t.Errorf("expected content breaker to be closed after reset, got %s", state)
	}

	if err := cbs.Reset("nonexistent"); err == nil {
		t.Errorf("expected an error resetting an unknown breaker name")
	}
}
