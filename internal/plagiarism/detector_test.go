package plagiarism

import (
	"context"
	"testing"

	"judge-execution-service/internal/config"
)

func TestEnqueueSubmission_DisabledIsNoop(t *testing.T) {
	detector := NewPlagiarismDetector(nil, &config.PlagiarismConfig{Enabled: false})

	// A nil queue would panic on first use; disabled config must short
	// circuit before ever touching it.
	detector.EnqueueSubmission(1, 2, 3, "python", "https://store/code/1")
}

func TestStart_DisabledSkipsQueueDeclare(t *testing.T) {
	detector := NewPlagiarismDetector(nil, &config.PlagiarismConfig{Enabled: false})

	if err := detector.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error starting a disabled detector: %v", err)
	}
}
