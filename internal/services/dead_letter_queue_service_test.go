package services

import (
	"encoding/json"
	"testing"

	"judge-execution-service/internal/models"
)

func TestRetryableSubmission_RoundTrip(t *testing.T) {
	original := RetryableSubmission{
		JudgeRequest: &models.JudgeRequest{
			SubmissionID: 55,
			UserID:       9,
			ProblemID:    3,
			Language:     "cpp",
			CodeURL:      "https://store/code/55",
			TimeLimitMs:  2000,
		},
		RetryCount:    2,
		OriginalQueue: "judge.submissions",
		LastError:     "storage fetch timeout",
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}

	var decoded RetryableSubmission
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}

	if decoded.RetryCount != original.RetryCount {
		t.Errorf("RetryCount = %d, want %d", decoded.RetryCount, original.RetryCount)
	}
	if decoded.JudgeRequest.SubmissionID != original.JudgeRequest.SubmissionID {
		t.Errorf("SubmissionID = %d, want %d", decoded.JudgeRequest.SubmissionID, original.JudgeRequest.SubmissionID)
	}
	if decoded.LastError != original.LastError {
		t.Errorf("LastError = %q, want %q", decoded.LastError, original.LastError)
	}
}

func TestDeadLetterQueueService_DefaultRetryLimits(t *testing.T) {
	dlqs := NewDeadLetterQueueService(nil, nil)

	if dlqs.maxRetries != 3 {
		t.Errorf("expected max retries of 3, got %d", dlqs.maxRetries)
	}
	if dlqs.dlqName != "judge.failed" {
		t.Errorf("expected dlq name judge.failed, got %q", dlqs.dlqName)
	}
	if dlqs.retryQueueName != "judge.retry" {
		t.Errorf("expected retry queue name judge.retry, got %q", dlqs.retryQueueName)
	}
}
