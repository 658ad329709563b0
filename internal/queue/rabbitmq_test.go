package queue

import (
	"encoding/json"
	"testing"

	"judge-execution-service/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestParseJudgeRequest(t *testing.T) {
	body := []byte(`{
		"submission_id": 101,
		"user_id": 7,
		"problem_id": 42,
		"language": "python",
		"code_url": "https://store/code/101",
		"time_limit_ms": 2000,
		"memory_limit_kb": 262144,
		"priority": 5,
		"unknown_future_field": "ignored"
	}`)

	req, err := ParseJudgeRequest(amqp.Delivery{Body: body})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &models.JudgeRequest{
		SubmissionID:  101,
		UserID:        7,
		ProblemID:     42,
		Language:      "python",
		CodeURL:       "https://store/code/101",
		TimeLimitMs:   2000,
		MemoryLimitKb: 262144,
		Priority:      5,
	}

	if *req != *want {
		t.Errorf("ParseJudgeRequest() = %+v, want %+v", req, want)
	}
}

func TestParseJudgeRequest_InvalidJSON(t *testing.T) {
	_, err := ParseJudgeRequest(amqp.Delivery{Body: []byte(`not json`)})
	if err == nil {
		t.Fatalf("expected an error parsing invalid JSON")
	}
}

func TestJudgeRequest_RoundTrip(t *testing.T) {
	original := models.JudgeRequest{
		SubmissionID:  1,
		UserID:        2,
		ProblemID:     3,
		Language:      "cpp",
		CodeURL:       "https://store/code/1",
		TimeLimitMs:   1000,
		MemoryLimitKb: 65536,
		Priority:      0,
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}

	parsed, err := ParseJudgeRequest(amqp.Delivery{Body: data})
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if *parsed != original {
		t.Errorf("round trip produced %+v, want %+v", parsed, original)
	}
}
