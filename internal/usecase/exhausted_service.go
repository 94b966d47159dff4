package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
)

// SaveExhaustedEvent persists a DLQ event that ran out of retries.
func (s *ContactService) SaveExhaustedEvent(ctx context.Context, event model.ExhaustedEvent) error {
	if err := s.exhaustedEventRepo.Save(ctx, event); err != nil {
		// The repository layer already wraps the error appropriately.
		return err
	}
	logger.FromContext(ctx).Warn("Event parked as exhausted",
		zap.String("source_subject", event.SourceSubject),
		zap.Int("retry_count", event.RetryCount),
	)
	return nil
}
