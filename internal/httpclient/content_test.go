package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetTestCases_OrdersByTestNumberAndExcludesInactive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ProblemResponse{
			ID: 1,
			TestCases: []TestCaseResponse{
				{ID: 3, TestNumber: 3, IsActive: true},
				{ID: 1, TestNumber: 1, IsActive: true},
				{ID: 2, TestNumber: 2, IsActive: false},
				{ID: 4, TestNumber: 4, IsActive: true},
			},
		})
	}))
	defer server.Close()

	client := NewContentServiceClient(server.URL)
	testCases, err := client.GetTestCases(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(testCases) != 3 {
		t.Fatalf("expected 3 active test cases, got %d", len(testCases))
	}

	wantOrder := []int64{1, 3, 4}
	for i, tc := range testCases {
		if tc.ID != wantOrder[i] {
			t.Errorf("test case at position %d: got ID %d, want %d", i, tc.ID, wantOrder[i])
		}
	}
}

func TestGetTestCases_ZeroTestCases(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ProblemResponse{ID: 1, TestCases: []TestCaseResponse{}})
	}))
	defer server.Close()

	client := NewContentServiceClient(server.URL)
	testCases, err := client.GetTestCases(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(testCases) != 0 {
		t.Errorf("expected no test cases, got %d", len(testCases))
	}
}

func TestGetProblem_NonOKStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewContentServiceClient(server.URL)
	if _, err := client.GetProblem(context.Background(), 1); err == nil {
		t.Errorf("expected an error for a non-200 response")
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewContentServiceClient(server.URL)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
