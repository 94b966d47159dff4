package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/auth"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/config"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/ingestion"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/ingestion/handler"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/jetstream"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
)

// Processor owns the JetStream side of contact ingestion: the event router,
// the contact handler registered on it and the consumer feeding it.
type Processor struct {
	router   ingestion.RouterInterface
	consumer ingestion.ConsumerInterface
	handler  handler.EventHandlerInterface
}

// NewProcessor wires a router and a contact consumer around service.
func NewProcessor(service handler.ContactService, jsClient jetstream.ClientInterface, verifier auth.TokenVerifier, cfg *config.Config) *Processor {
	router := ingestion.NewRouter()
	consumer := ingestion.NewContactConsumer(jsClient, router, verifier, cfg.NATS.Contacts, cfg.NATS.DLQSubject)
	return newProcessor(router, consumer, handler.NewContactHandler(service))
}

func newProcessor(router ingestion.RouterInterface, consumer ingestion.ConsumerInterface, h handler.EventHandlerInterface) *Processor {
	return &Processor{router: router, consumer: consumer, handler: h}
}

// Router returns the processor's event router. The DLQ worker re-routes
// exhausted events through it.
func (p *Processor) Router() ingestion.RouterInterface {
	return p.router
}

// Setup registers the contact handlers and creates the stream and consumer.
func (p *Processor) Setup() error {
	p.router.Register(model.V1ContactsSave, p.handler.HandleEvent)
	p.router.Register(model.V1ContactsUpdate, p.handler.HandleEvent)

	p.router.RegisterDefault(func(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
		logger.FromContext(ctx).Warn("Unhandled event type",
			zap.String("type", string(eventType)),
			zap.String("subject", metadata.MessageSubject),
		)
		return nil
	})

	if err := p.consumer.Setup(); err != nil {
		return fmt.Errorf("failed to setup contact consumer: %w", err)
	}

	logger.Log.Info("Processor setup complete")
	return nil
}

// Start subscribes the contact consumer.
func (p *Processor) Start() (err error) {
	logger.Log.Info("Starting contact processor...")

	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("[panic] Recovered from panic in processor",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			err = fmt.Errorf("processor start panicked: %v", r)
		}
	}()

	if err := p.consumer.Start(); err != nil {
		return fmt.Errorf("failed to start contact consumer: %w", err)
	}

	logger.Log.Info("Contact processor started")
	return nil
}

// Stop drains the contact consumer.
func (p *Processor) Stop() {
	logger.Log.Info("Stopping contact processor...")
	p.consumer.Stop()
	logger.Log.Info("Contact processor stopped")
}
