package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"judge-execution-service/internal/config"
	"judge-execution-service/internal/httpclient"
)

func newTestResourceValidator(t *testing.T, problemHandler http.HandlerFunc) *ResourceValidationService {
	t.Helper()

	var server *httptest.Server
	if problemHandler != nil {
		server = httptest.NewServer(problemHandler)
		t.Cleanup(server.Close)
	} else {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unreachable", http.StatusServiceUnavailable)
		}))
		t.Cleanup(server.Close)
	}

	contentClient := httpclient.NewContentServiceClient(server.URL)

	cfg := &config.JudgeConfig{
		DefaultTimeLimit:   1000 * time.Millisecond,
		DefaultMemoryLimit: 65536,
		MaxTimeLimit:       10000 * time.Millisecond,
		MaxMemoryLimit:     524288,
		MaxStackSize:       65536,
		MaxOutputSize:      1024,
	}

	return NewResourceValidationService(cfg, contentClient)
}

func TestValidateAndNormalizeLimits_ClampsAboveCeiling(t *testing.T) {
	rvs := newTestResourceValidator(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(httpclient.ProblemResponse{
			ID:          1,
			TimeLimit:   20000,
			MemoryLimit: 1048576,
		})
	})

	limits, result := rvs.ValidateAndNormalizeLimits(context.Background(), 1, 1000, 65536)

	if limits.TimeLimitMs != 10000 {
		t.Errorf("time limit should clamp to the 10000ms ceiling, got %d", limits.TimeLimitMs)
	}
	if limits.MemoryLimitKb != 524288 {
		t.Errorf("memory limit should clamp to the 524288kb ceiling, got %d", limits.MemoryLimitKb)
	}
	if result.IsValid {
		t.Errorf("clamping above the ceiling must be recorded as an error, not silently accepted")
	}
	if !hasSeverity(result.Violations, "error") {
		t.Errorf("expected at least one error-severity violation, got: %+v", result.Violations)
	}
}

func TestValidateAndNormalizeLimits_ClampsBelowFloor(t *testing.T) {
	rvs := newTestResourceValidator(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(httpclient.ProblemResponse{
			ID:          1,
			TimeLimit:   10,
			MemoryLimit: 512,
		})
	})

	limits, result := rvs.ValidateAndNormalizeLimits(context.Background(), 1, 1000, 65536)

	if limits.TimeLimitMs != 100 {
		t.Errorf("time limit should clamp to the 100ms floor, got %d", limits.TimeLimitMs)
	}
	if limits.MemoryLimitKb != 1024 {
		t.Errorf("memory limit should clamp to the 1024kb floor, got %d", limits.MemoryLimitKb)
	}

	// Floor violations are warnings, not errors: IsValid stays true.
	if !result.IsValid {
		t.Errorf("clamping below the floor is a warning, not a rejection")
	}
	if !hasSeverity(result.Violations, "warning") {
		t.Errorf("expected at least one warning-severity violation, got: %+v", result.Violations)
	}
}

func TestValidateAndNormalizeLimits_ProblemLimitsOverrideRequested(t *testing.T) {
	rvs := newTestResourceValidator(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(httpclient.ProblemResponse{
			ID:          1,
			TimeLimit:   2500,
			MemoryLimit: 131072,
		})
	})

	limits, result := rvs.ValidateAndNormalizeLimits(context.Background(), 1, 1000, 65536)

	if limits.TimeLimitMs != 2500 {
		t.Errorf("problem-declared time limit should win over the requested value, got %d", limits.TimeLimitMs)
	}
	if limits.MemoryLimitKb != 131072 {
		t.Errorf("problem-declared memory limit should win over the requested value, got %d", limits.MemoryLimitKb)
	}
	if !result.IsValid {
		t.Errorf("in-range problem limits should not produce violations, got: %+v", result.Violations)
	}
}

func TestValidateAndNormalizeLimits_CatalogUnreachableFallsBackToDefaults(t *testing.T) {
	rvs := newTestResourceValidator(t, nil)

	// Catalog unreachable: getProblemLimits substitutes the configured
	// DefaultTimeLimit/DefaultMemoryLimit, and since those are positive
	// they win over the (here zero) requested values, same as any other
	// positive problem-declared limit would.
	limits, result := rvs.ValidateAndNormalizeLimits(context.Background(), 1, 0, 0)

	if limits.TimeLimitMs != 1000 {
		t.Errorf("expected the configured default time limit, got %d", limits.TimeLimitMs)
	}
	if limits.MemoryLimitKb != 65536 {
		t.Errorf("expected the configured default memory limit, got %d", limits.MemoryLimitKb)
	}
	if !result.IsValid {
		t.Errorf("in-range defaults should not produce violations, got: %+v", result.Violations)
	}
}

func hasSeverity(violations []ResourceViolation, severity string) bool {
	for _, v := range violations {
		if v.Severity == severity {
			return true
		}
	}
	return false
}
