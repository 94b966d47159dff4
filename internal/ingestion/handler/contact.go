package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/apperrors"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
)

// ContactHandler turns contact events into ContactService calls.
type ContactHandler struct {
	service ContactService
}

// NewContactHandler creates a new contact event handler
func NewContactHandler(service ContactService) *ContactHandler {
	return &ContactHandler{
		service: service,
	}
}

// HandleEvent dispatches on the base event type. Internal failures come back
// retryable; everything else is fatal and goes to the DLQ as is.
func (h *ContactHandler) HandleEvent(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
	switch eventType {
	case model.V1ContactsSave:
		return h.handleSave(ctx, metadata, rawEvent)
	case model.V1ContactsUpdate:
		return h.handleUpdate(ctx, rawEvent)
	default:
		logger.FromContext(ctx).Error("Unsupported contact event type", zap.String("eventType", string(eventType)))
		return apperrors.NewFatal(fmt.Errorf("unsupported event type: %s", eventType), "contact event")
	}
}

func (h *ContactHandler) handleSave(ctx context.Context, metadata *model.MessageMetadata, rawEvent []byte) error {
	log := logger.FromContext(ctx)

	var payload model.SaveContactPayload
	if err := json.Unmarshal(rawEvent, &payload); err != nil {
		log.Error("Failed to unmarshal contact save payload", zap.Error(err))
		return apperrors.NewFatal(fmt.Errorf("%w: %w", apperrors.ErrValidation, err), "failed to unmarshal contact save payload")
	}

	contact, err := h.service.SaveContact(ctx, payload, metadata.ToLastEvent())
	if err != nil {
		return classify(err, "save contact")
	}
	log.Debug("Contact saved", zap.String("contact_id", contact.ID), zap.String("status", string(contact.Status)))
	return nil
}

func (h *ContactHandler) handleUpdate(ctx context.Context, rawEvent []byte) error {
	log := logger.FromContext(ctx)

	var payload model.UpdateContactPayload
	if err := json.Unmarshal(rawEvent, &payload); err != nil {
		log.Error("Failed to unmarshal contact update payload", zap.Error(err))
		return apperrors.NewFatal(fmt.Errorf("%w: %w", apperrors.ErrValidation, err), "failed to unmarshal contact update payload")
	}

	contact, err := h.service.UpdateContact(ctx, payload)
	if err != nil {
		return classify(err, "update contact")
	}
	log.Debug("Contact updated", zap.String("contact_id", contact.ID))
	return nil
}

func classify(err error, op string) error {
	if apperrors.IsInternalError(err) {
		return apperrors.NewRetryable(err, op)
	}
	return apperrors.NewFatal(err, op)
}
