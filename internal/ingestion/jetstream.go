package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/apperrors"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/auth"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/config"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/jetstream"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/observer"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/utils"
)

// Message headers understood by the consumer.
const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
	HeaderMsgID         = "Nats-Msg-Id"
)

const consumerTypeContacts = "contacts"

// AckNakAction represents the decision made after processing a message
type AckNakAction int

const (
	ActionAck      AckNakAction = iota // Message processed successfully, ACK it
	ActionNak                          // DLQ failure, NAK immediately
	ActionNakDelay                     // Retryable error, NAK with calculated delay
	ActionDLQ                          // Max retries reached or fatal error, publish to DLQ then ACK
)

// baseConsumer holds shared components and logic for NATS consumers
type baseConsumer struct {
	client       jetstream.ClientInterface
	router       RouterInterface
	verifier     auth.TokenVerifier
	consumerType string
	ctx          context.Context
	cancel       context.CancelFunc
	maxDeliver   int
	dlqSubject   string
	nakBaseDelay time.Duration
	nakMaxDelay  time.Duration
}

func newBaseConsumer(client jetstream.ClientInterface, router RouterInterface, verifier auth.TokenVerifier, consumerType string, maxDeliver int, dlqSubject string, nakBaseDelay, nakMaxDelay time.Duration) *baseConsumer {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With(zap.String("consumer_type", consumerType)))

	return &baseConsumer{
		client:       client,
		router:       router,
		verifier:     verifier,
		consumerType: consumerType,
		ctx:          ctx,
		cancel:       cancel,
		maxDeliver:   maxDeliver,
		dlqSubject:   dlqSubject,
		nakBaseDelay: nakBaseDelay,
		nakMaxDelay:  nakMaxDelay,
	}
}

// ownerSubjects expands base subjects into the owner wildcard form used for
// both the stream and the consumer filter.
func ownerSubjects(subjects []string) []string {
	out := make([]string, 0, len(subjects))
	for _, subject := range subjects {
		out = append(out, subject+".*")
	}
	return out
}

// determineAckNakAction decides the fate of a message based on processing result and metadata.
func determineAckNakAction(
	processingErr error,
	metadata *nats.MsgMetadata,
	maxDeliver int,
	nakBaseDelay time.Duration,
	nakMaxDelay time.Duration,
) (action AckNakAction, delay time.Duration) {
	if processingErr == nil {
		return ActionAck, 0
	}

	numDelivered := metadata.NumDelivered
	if numDelivered >= uint64(maxDeliver) || !apperrors.IsRetryable(processingErr) {
		return ActionDLQ, 0
	}

	delay = nakBaseDelay
	if numDelivered > 1 {
		delay = nakBaseDelay * (1 << (numDelivered - 1))
	}
	if delay > nakMaxDelay {
		delay = nakMaxDelay
	}
	return ActionNakDelay, delay
}

// authenticate checks that the message's bearer token was issued for the
// owner named in the subject.
func (bc *baseConsumer) authenticate(subject string, header nats.Header) (string, error) {
	subjectOwner, ok := model.OwnerFromSubject(subject)
	if !ok {
		return "", fmt.Errorf("%w: subject %q has no owner token", apperrors.ErrUnauthenticated, subject)
	}
	var token string
	if header != nil {
		token = auth.BearerToken(header.Get(HeaderAuthorization))
	}
	tokenOwner, err := bc.verifier.Verify(token)
	if err != nil {
		return "", err
	}
	if tokenOwner != subjectOwner {
		return "", fmt.Errorf("%w: token subject does not match %q", apperrors.ErrUnauthenticated, subjectOwner)
	}
	return subjectOwner, nil
}

func (bc *baseConsumer) handleMessage(msg *nats.Msg) {
	bc.process(msg, msg.Subject, msg.Header, msg.Data)
}

// process is the core message processing logic. Auth failures are terminated
// without a DLQ copy since the owner could not be trusted.
func (bc *baseConsumer) process(msg jetstream.Delivery, subject string, header nats.Header, data []byte) {
	startTime := utils.Now()
	eventType, found := model.MapToBaseEventType(subject)

	defer func() {
		observer.ObserveEventProcessingDuration(string(eventType), bc.consumerType, time.Since(startTime))

		if r := recover(); r != nil {
			logger.FromContext(bc.ctx).Error("[panic] Recovered from panic in message handler",
				zap.Any("panic", r),
				zap.String("subject", subject),
				zap.Duration("duration", time.Since(startTime)),
				zap.Stack("stack"),
			)
			observer.IncEventsFailed(string(eventType), bc.consumerType)
			observer.IncEventProcessingAction(string(eventType), bc.consumerType, "panic_nak", "panic")
			if nakErr := msg.Nak(); nakErr != nil {
				logger.FromContext(bc.ctx).Error("Failed to NAK message after panic", zap.Error(nakErr))
			}
		}
	}()

	log := logger.FromContext(bc.ctx).With(zap.String("subject", subject))

	if !found {
		log.Warn("Unknown event type, terminating message")
		observer.IncEventProcessingAction("unknown", bc.consumerType, "term_unknown_type", "unknown_event_type")
		if termErr := msg.Term(); termErr != nil {
			log.Error("Failed to terminate message for unknown event type", zap.Error(termErr))
		}
		return
	}

	ownerID, authErr := bc.authenticate(subject, header)
	if authErr != nil {
		log.Warn("Rejecting unauthenticated message", zap.Error(authErr))
		observer.IncEventsFailed(string(eventType), bc.consumerType)
		observer.IncEventProcessingAction(string(eventType), bc.consumerType, "term_unauthenticated", "unauthenticated")
		if termErr := msg.Term(); termErr != nil {
			log.Error("Failed to terminate unauthenticated message", zap.Error(termErr))
		}
		return
	}

	metadata, err := msg.Metadata()
	if err != nil {
		log.Error("Failed to read message metadata", zap.Error(err))
		observer.IncEventProcessingAction(string(eventType), bc.consumerType, "nak_metadata_error", "metadata")
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error("Failed to NAK message", zap.Error(nakErr))
		}
		return
	}

	var msgID, requestID string
	if header != nil {
		msgID = header.Get(HeaderMsgID)
		requestID = header.Get(HeaderRequestID)
	}
	if msgID == "" {
		msgID = fmt.Sprintf("msg-%d", metadata.Sequence.Stream)
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	internalMetadata := &model.MessageMetadata{
		StreamSequence:   metadata.Sequence.Stream,
		ConsumerSequence: metadata.Sequence.Consumer,
		NumDelivered:     metadata.NumDelivered,
		NumPending:       metadata.NumPending,
		Timestamp:        metadata.Timestamp,
		Stream:           metadata.Stream,
		Consumer:         metadata.Consumer,
		Domain:           metadata.Domain,
		MessageID:        msgID,
		MessageSubject:   subject,
		OwnerID:          ownerID,
		RequestID:        requestID,
	}

	observer.IncEventsReceived(string(eventType), bc.consumerType)

	log = log.With(
		zap.String("nats_message_id", msgID),
		zap.Uint64("stream_sequence", metadata.Sequence.Stream),
		zap.Uint64("num_delivered", metadata.NumDelivered),
	)
	msgCtx := logger.WithLogger(bc.ctx, log)

	routingStart := utils.Now()
	processingErr := bc.router.Route(msgCtx, internalMetadata, data)
	observer.ObserveEventRoutingDuration(string(eventType), bc.consumerType, time.Since(routingStart))

	action, nakDelay := determineAckNakAction(processingErr, metadata, bc.maxDeliver, bc.nakBaseDelay, bc.nakMaxDelay)

	errorType := "none"
	if processingErr != nil {
		errorType = observer.SanitizeErrorType(processingErr.Error())
	}

	switch action {
	case ActionAck:
		log.Info("Successfully processed message", zap.Duration("duration", time.Since(startTime)))
		observer.IncEventsProcessed(string(eventType), bc.consumerType)
		observer.IncEventProcessingAction(string(eventType), bc.consumerType, "ack_success", errorType)
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error("Failed to ACK message after successful processing", zap.Error(ackErr))
		}

	case ActionNakDelay:
		log.Info("NAKing message with delay for redelivery",
			zap.Error(processingErr),
			zap.Int("max_deliver", bc.maxDeliver),
			zap.Duration("nak_delay", nakDelay),
		)
		observer.IncEventsFailed(string(eventType), bc.consumerType)
		observer.IncEventProcessingAction(string(eventType), bc.consumerType, "nak_retry", errorType)
		if nakErr := msg.NakWithDelay(nakDelay); nakErr != nil {
			log.Error("Failed to NAK message with delay", zap.Error(nakErr))
		}

	case ActionDLQ:
		observer.IncEventsFailed(string(eventType), bc.consumerType)
		if err := bc.publishDLQ(internalMetadata, header.Get(HeaderAuthorization), data, processingErr); err != nil {
			log.Error("Failed to publish message to DLQ, NAKing original message", zap.Error(err))
			observer.IncEventProcessingAction(string(eventType), bc.consumerType, "nak_dlq_publish_fail", "dlq_publish_fail")
			if nakErr := msg.Nak(); nakErr != nil {
				log.Error("Failed to NAK message after DLQ publish error", zap.Error(nakErr))
			}
			return
		}
		log.Warn("Message sent to DLQ",
			zap.Error(processingErr),
			zap.Bool("is_retryable", apperrors.IsRetryable(processingErr)),
			zap.Int("max_deliver", bc.maxDeliver),
		)
		observer.IncEventProcessingAction(string(eventType), bc.consumerType, "dlq_published_ack_success", errorType)
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error("Failed to ACK message after successful DLQ publish", zap.Error(ackErr))
		}
	}
}

// DLQSubject is the per-owner dead letter subject.
func DLQSubject(base, ownerID string) string {
	return base + "." + ownerID
}

// publishDLQ copies the publisher's Authorization header onto the dead letter
// so the DLQ worker can check the owner again before re-routing.
func (bc *baseConsumer) publishDLQ(metadata *model.MessageMetadata, authorization string, data []byte, processingErr error) error {
	errorType := "fatal"
	if apperrors.IsRetryable(processingErr) {
		errorType = "retryable"
	}

	payload := model.DLQPayload{
		SourceSubject:   metadata.MessageSubject,
		Owner:           metadata.OwnerID,
		OriginalPayload: json.RawMessage(data),
		Error:           processingErr.Error(),
		ErrorType:       errorType,
		RetryCount:      metadata.NumDelivered,
		MaxRetry:        bc.maxDeliver,
		Timestamp:       utils.Now().UTC(),
	}
	dlqData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal DLQ payload: %w", err)
	}

	headers := map[string]string{"Original-Nats-Msg-Id": metadata.MessageID}
	if metadata.RequestID != "" {
		headers[HeaderRequestID] = metadata.RequestID
	}
	if authorization != "" {
		headers[HeaderAuthorization] = authorization
	}
	return bc.client.Publish(DLQSubject(bc.dlqSubject, metadata.OwnerID), dlqData, headers)
}

// ContactConsumer consumes contact save and update events for every owner
// through one shared durable push consumer.
type ContactConsumer struct {
	base          *baseConsumer
	cfg           config.ConsumerNatsConfig
	sub           *nats.Subscription
	filterSubject string
}

// NewContactConsumer creates the consumer for the contact event stream.
func NewContactConsumer(client jetstream.ClientInterface, router RouterInterface, verifier auth.TokenVerifier, cfg config.ConsumerNatsConfig, dlqSubject string) *ContactConsumer {
	base := newBaseConsumer(client, router, verifier, consumerTypeContacts, cfg.MaxDeliver, dlqSubject, cfg.NakBaseDelay, cfg.NakMaxDelay)
	return &ContactConsumer{
		base:          base,
		cfg:           cfg,
		filterSubject: "v1.contacts.>",
	}
}

// Setup configures the NATS stream and consumer for contact events
func (c *ContactConsumer) Setup() error {
	log := logger.FromContext(c.base.ctx).With(zap.String("stream", c.cfg.Stream), zap.String("consumer", c.cfg.Consumer))
	log.Info("Setting up ContactConsumer...")

	subjects := ownerSubjects(c.cfg.SubjectList)

	streamCfg := &nats.StreamConfig{
		Name:      c.cfg.Stream,
		Subjects:  subjects,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    time.Duration(c.cfg.MaxAge*24) * time.Hour,
	}
	if err := c.base.client.SetupStream(c.base.ctx, streamCfg); err != nil {
		log.Error("Failed to setup contact stream", zap.Error(err))
		return fmt.Errorf("failed to setup contact stream '%s': %w", c.cfg.Stream, err)
	}

	ackWait := c.cfg.AckWait
	if ackWait <= 0 {
		ackWait = 30 * time.Second
	}
	consumerCfg := &nats.ConsumerConfig{
		Durable:        c.cfg.Consumer,
		DeliverGroup:   c.cfg.QueueGroup,
		FilterSubjects: subjects,
		AckPolicy:      nats.AckExplicitPolicy,
		DeliverSubject: nats.NewInbox(),
		MaxDeliver:     c.cfg.MaxDeliver,
		AckWait:        ackWait,
		MaxAckPending:  1000,
		ReplayPolicy:   nats.ReplayInstantPolicy,
		DeliverPolicy:  nats.DeliverAllPolicy,
	}
	if err := c.base.client.SetupConsumer(c.base.ctx, c.cfg.Stream, consumerCfg); err != nil {
		log.Error("Failed to setup contact consumer", zap.Error(err))
		return fmt.Errorf("failed to setup contact consumer '%s' for stream '%s': %w", c.cfg.Consumer, c.cfg.Stream, err)
	}

	log.Info("ContactConsumer setup complete", zap.Strings("subjects", subjects))
	return nil
}

// Start subscribes to the NATS stream
func (c *ContactConsumer) Start() error {
	log := logger.FromContext(c.base.ctx).With(zap.String("stream", c.cfg.Stream), zap.String("consumer", c.cfg.Consumer))

	sub, err := c.base.client.SubscribePush(c.filterSubject, c.cfg.Consumer, c.cfg.QueueGroup, c.cfg.Stream, c.base.handleMessage)
	if err != nil {
		log.Error("Failed to subscribe contact consumer", zap.Error(err), zap.String("group", c.cfg.QueueGroup))
		return fmt.Errorf("failed to subscribe contact consumer '%s': %w", c.cfg.Consumer, err)
	}
	c.sub = sub
	log.Info("ContactConsumer subscribed")
	return nil
}

// Stop drains the subscription and cancels in-flight handlers
func (c *ContactConsumer) Stop() {
	log := logger.FromContext(c.base.ctx)
	if c.sub != nil {
		if err := c.sub.Drain(); err != nil {
			log.Error("Error draining contact subscription", zap.Error(err))
		}
	}
	if c.base.cancel != nil {
		c.base.cancel()
	}
	log.Info("ContactConsumer stopped")
}
