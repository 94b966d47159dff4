package handler

import (
	"context"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
)

// EventHandlerInterface defines the common interface for event handlers
type EventHandlerInterface interface {
	// HandleEvent processes an event
	HandleEvent(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error
}

// ContactService is the slice of the contact use case the transport calls.
type ContactService interface {
	SaveContact(ctx context.Context, payload model.SaveContactPayload, lastEvent *model.LastEvent) (*model.Contact, error)
	UpdateContact(ctx context.Context, payload model.UpdateContactPayload) (*model.Contact, error)
}

var _ EventHandlerInterface = (*ContactHandler)(nil)
