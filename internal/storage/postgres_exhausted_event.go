package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/observer"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/utils"
)

// SaveExhaustedEvent saves an exhausted DLQ event to the database.
func (r *PostgresRepo) SaveExhaustedEvent(ctx context.Context, event model.ExhaustedEvent) error {
	operation := func() error {
		result := r.db.WithContext(ctx).Create(&event)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveExhaustedEvent", operation)
	observer.ObserveDbOperationDuration("save", "exhausted_event", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save exhausted event after retries",
			zap.String("source_subject", event.SourceSubject),
			zap.String("owner_id", event.OwnerID),
			zap.Error(commitErr))
		return commitErr
	}

	logger.FromContext(ctx).Info("Successfully saved exhausted event", zap.Uint("event_id", event.ID), zap.String("source_subject", event.SourceSubject))
	return nil
}
