package ingestion

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/apperrors"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/owner"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/utils"
)

// EventHandler defines a function that processes events
type EventHandler func(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error

// Router routes events to the appropriate handler based on event type
type Router struct {
	handlers       map[model.EventType]EventHandler
	defaultHandler EventHandler
}

// NewRouter creates a new event router
func NewRouter() *Router {
	return &Router{
		handlers: make(map[model.EventType]EventHandler),
	}
}

// Register registers a handler for a base event type (without the owner token)
func (r *Router) Register(eventType model.EventType, handler EventHandler) {
	r.handlers[eventType] = handler
}

// RegisterDefault registers a default handler for unknown event types
func (r *Router) RegisterDefault(handler EventHandler) {
	r.defaultHandler = handler
}

// Route binds the verified owner and request id to the context and hands the
// event to its handler. A message without an owner never reaches a handler.
func (r *Router) Route(ctx context.Context, metadata *model.MessageMetadata, rawEvent []byte) error {
	log := logger.FromContext(ctx).With(
		zap.String("event_type", metadata.MessageSubject),
		zap.String("event_id", metadata.MessageID),
	)

	if metadata.OwnerID == "" {
		log.Error("Event has no verified owner")
		return apperrors.NewFatal(apperrors.ErrUnauthenticated, "route %s", metadata.MessageSubject)
	}
	ctx = owner.WithOwnerID(ctx, metadata.OwnerID)
	if metadata.RequestID != "" {
		ctx = owner.WithRequestID(ctx, metadata.RequestID)
	}
	ctx = logger.WithLogger(ctx, log)
	log = logger.FromContext(ctx)

	eventType, found := model.MapToBaseEventType(metadata.MessageSubject)
	if !found {
		log.Warn("Could not map subject to a known base event type", zap.String("subject", metadata.MessageSubject))
	}

	log.Debug("Event received", zap.String("payload_size", utils.ByteCountSI(len(rawEvent))))

	handler, ok := r.handlers[eventType]
	switch {
	case ok:
		return handler(ctx, eventType, metadata, rawEvent)
	case r.defaultHandler != nil:
		log.Warn("No specific handler for event type, using default")
		return r.defaultHandler(ctx, eventType, metadata, rawEvent)
	default:
		log.Error("No handler registered for event type")
		return apperrors.NewFatal(fmt.Errorf("no handler for %q", metadata.MessageSubject), "route")
	}
}
