package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"judge-execution-service/internal/database"
)

type CleanupService struct {
	db               *database.DB
	retentionPeriods map[string]time.Duration
	cleanupInterval  time.Duration
}

type CleanupConfig struct {
	SubmissionsRetention   time.Duration
	ExecutionLogsRetention time.Duration
	TestResultsRetention   time.Duration
	CleanupInterval        time.Duration
}

func NewCleanupService(db *database.DB, config *CleanupConfig) *CleanupService {
	retentionPeriods := map[string]time.Duration{
		"submissions":    config.SubmissionsRetention,
		"execution_logs": config.ExecutionLogsRetention,
		"test_results":   config.TestResultsRetention,
	}

	return &CleanupService{
		db:               db,
		retentionPeriods: retentionPeriods,
		cleanupInterval:  config.CleanupInterval,
	}
}

func (cs *CleanupService) Start(ctx context.Context) {
	ticker := time.NewTicker(cs.cleanupInterval)
	defer ticker.Stop()

	log.Printf("Starting cleanup service with interval: %v", cs.cleanupInterval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Cleanup service shutting down")
			return
		case <-ticker.C:
			cs.performCleanup(ctx)
		}
	}
}

func (cs *CleanupService) performCleanup(ctx context.Context) {
	log.Printf("Starting scheduled cleanup run")

	if err := cs.cleanupOldTestResults(ctx); err != nil {
		log.Printf("Failed to cleanup old test results: %v", err)
	}

	if err := cs.cleanupOldSubmissions(ctx); err != nil {
		log.Printf("Failed to cleanup old submissions: %v", err)
	}

	if err := cs.cleanupOldExecutionLogs(ctx); err != nil {
		log.Printf("Failed to cleanup old execution logs: %v", err)
	}

	log.Printf("Cleanup run completed")
}

// cleanupOldTestResults runs before cleanupOldSubmissions since test results
// reference submissions by ID and must be gone before the parent row is.
func (cs *CleanupService) cleanupOldTestResults(ctx context.Context) error {
	cutoff := time.Now().Add(-cs.retentionPeriods["test_results"])
	deleted, err := cs.db.DeleteTestResultsOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	log.Printf("Deleted %d test results older than %v", deleted, cutoff)
	return nil
}

func (cs *CleanupService) cleanupOldSubmissions(ctx context.Context) error {
	cutoff := time.Now().Add(-cs.retentionPeriods["submissions"])
	deleted, err := cs.db.DeleteSubmissionsOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	log.Printf("Deleted %d submissions older than %v", deleted, cutoff)
	return nil
}

func (cs *CleanupService) cleanupOldExecutionLogs(ctx context.Context) error {
	cutoff := time.Now().Add(-cs.retentionPeriods["execution_logs"])
	deleted, err := cs.db.DeleteExecutionLogsOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	log.Printf("Deleted %d execution logs older than %v", deleted, cutoff)
	return nil
}

func (cs *CleanupService) GetCleanupStats(ctx context.Context) map[string]interface{} {
	tables := []string{"submissions", "execution_logs", "submission_test_results"}
	tableSizes := make(map[string]interface{})

	for _, table := range tables {
		size, err := cs.db.TableSize(ctx, table)
		if err != nil {
			tableSizes[table] = "unknown"
			continue
		}
		tableSizes[table] = size
	}

	return map[string]interface{}{
		"table_sizes": tableSizes,
	}
}

func (cs *CleanupService) ForceCleanup(ctx context.Context, dataType string) error {
	switch dataType {
	case "submissions":
		return cs.cleanupOldSubmissions(ctx)
	case "execution_logs":
		return cs.cleanupOldExecutionLogs(ctx)
	case "test_results":
		return cs.cleanupOldTestResults(ctx)
	default:
		return fmt.Errorf("unknown data type: %s", dataType)
	}
}

func GetDefaultCleanupConfig() *CleanupConfig {
	return &CleanupConfig{
		SubmissionsRetention:   90 * 24 * time.Hour,
		ExecutionLogsRetention: 30 * 24 * time.Hour,
		TestResultsRetention:   60 * 24 * time.Hour,
		CleanupInterval:        24 * time.Hour,
	}
}
