package plagiarism

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"judge-execution-service/internal/config"
	"judge-execution-service/internal/queue"
)

// PlagiarismDetector is a producer only: it publishes accepted submissions
// to the plagiarism queue for a separate detection service to consume. The
// similarity algorithm itself lives outside this module.
type PlagiarismDetector struct {
	queue  *queue.RabbitMQClient
	config *config.PlagiarismConfig
}

type SubmissionAcceptedEvent struct {
	SubmissionID int64     `json:"submission_id"`
	UserID       int64     `json:"user_id"`
	ProblemID    int64     `json:"problem_id"`
	Language     string    `json:"language"`
	CodeURL      string    `json:"code_url"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

func NewPlagiarismDetector(q *queue.RabbitMQClient, cfg *config.PlagiarismConfig) *PlagiarismDetector {
	return &PlagiarismDetector{
		queue:  q,
		config: cfg,
	}
}

func (pd *PlagiarismDetector) Start(ctx context.Context) error {
	if !pd.config.Enabled {
		log.Println("Plagiarism enqueue disabled")
		return nil
	}

	if _, err := pd.queue.DeclareQueue(ctx, pd.config.QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare plagiarism queue: %w", err)
	}

	log.Printf("Plagiarism enqueue producer ready on queue %q", pd.config.QueueName)
	return nil
}

func (pd *PlagiarismDetector) Stop() {}

// EnqueueSubmission publishes an accepted submission for the external
// plagiarism-detection service to pick up. Only AC submissions are worth
// comparing, so callers are expected to gate on verdict before calling this.
func (pd *PlagiarismDetector) EnqueueSubmission(submissionID, userID, problemID int64, language, codeURL string) {
	if !pd.config.Enabled {
		return
	}

	event := SubmissionAcceptedEvent{
		SubmissionID: submissionID,
		UserID:       userID,
		ProblemID:    problemID,
		Language:     language,
		CodeURL:      codeURL,
		EnqueuedAt:   time.Now(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal plagiarism event for submission %d: %v", submissionID, err)
		return
	}

	if err := pd.queue.PublishToQueue(context.Background(), pd.config.QueueName, body); err != nil {
		log.Printf("Failed to enqueue submission %d for plagiarism check: %v", submissionID, err)
		return
	}

	log.Printf("Enqueued submission %d for plagiarism check", submissionID)
}
