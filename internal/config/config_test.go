package config

import "testing"

func TestLoadFromEnv_DefaultsWhenUnset(t *testing.T) {
	cfg := &Config{}
	if err := loadFromEnv(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "3003" {
		t.Errorf("Server.Port = %q, want default %q", cfg.Server.Port, "3003")
	}
	if cfg.RabbitMQ.QueueName != "judge.submissions" {
		t.Errorf("RabbitMQ.QueueName = %q, want default %q", cfg.RabbitMQ.QueueName, "judge.submissions")
	}
	if cfg.RabbitMQ.PrefetchCount != 1 {
		t.Errorf("RabbitMQ.PrefetchCount = %d, want default 1 (manual-ack consumers should fetch one message at a time)", cfg.RabbitMQ.PrefetchCount)
	}
	if cfg.Judge.WorkerCount != 4 {
		t.Errorf("Judge.WorkerCount = %d, want default 4", cfg.Judge.WorkerCount)
	}
	if cfg.Isolate.Path != "/usr/local/bin/isolate" {
		t.Errorf("Isolate.Path = %q, want default", cfg.Isolate.Path)
	}
	if cfg.Plagiarism.QueueName != "plagiarism.submissions" {
		t.Errorf("Plagiarism.QueueName = %q, want default", cfg.Plagiarism.QueueName)
	}
}

func TestLoadFromEnv_OverridesFromEnvironment(t *testing.T) {
	t.Setenv("SERVICE_PORT", "9090")
	t.Setenv("WORKER_COUNT", "12")
	t.Setenv("RABBITMQ_PREFETCH_COUNT", "1")
	t.Setenv("CONTENT_SERVICE_URL", "https://catalog.internal")
	t.Setenv("PLAGIARISM_ENABLED", "true")

	cfg := &Config{}
	if err := loadFromEnv(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "9090")
	}
	if cfg.Judge.WorkerCount != 12 {
		t.Errorf("Judge.WorkerCount = %d, want 12", cfg.Judge.WorkerCount)
	}
	if cfg.ContentService.URL != "https://catalog.internal" {
		t.Errorf("ContentService.URL = %q, want override", cfg.ContentService.URL)
	}
	if !cfg.Plagiarism.Enabled {
		t.Errorf("expected Plagiarism.Enabled to be true")
	}
}

func TestLoadFromEnv_InvalidNumericEnvKeepsZeroThenDefaults(t *testing.T) {
	t.Setenv("MAX_QUEUE_SIZE", "not-a-number")

	cfg := &Config{}
	if err := loadFromEnv(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// strconv.Atoi fails silently (error is swallowed) so the zero value
	// falls through to the default-filling branch below it.
	if cfg.Judge.MaxQueueSize != 1000 {
		t.Errorf("Judge.MaxQueueSize = %d, want the default 1000 when the env value fails to parse", cfg.Judge.MaxQueueSize)
	}
}
