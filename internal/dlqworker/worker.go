package dlqworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/apperrors"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/auth"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/config"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/ingestion"
	internal_js "github.com/linkedin-followup-tracker/followup-tracker/internal/jetstream"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/observer"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
)

const (
	defaultMsgChanCap = 100
	fetchBatchSize    = 10
	fetchMaxWait      = 5 * time.Second
	taskTimeout       = time.Minute
)

// ExhaustedEventSaver persists DLQ events that will not be retried again.
type ExhaustedEventSaver interface {
	SaveExhaustedEvent(ctx context.Context, event model.ExhaustedEvent) error
}

// OwnerVerifier resolves the publisher token carried on a dead letter to its
// owner. Expired tokens are accepted; the signature is not optional.
type OwnerVerifier interface {
	VerifySignature(token string) (string, error)
}

type fetcher interface {
	Fetch(batch int, opts ...nats.PullOpt) ([]*nats.Msg, error)
}

// Worker re-routes dead-lettered contact events with backoff and parks the
// ones that keep failing.
type Worker struct {
	cfg      *config.Config
	logger   *zap.Logger
	js       internal_js.ClientInterface
	pool     *ants.Pool
	router   ingestion.RouterInterface
	verifier OwnerVerifier
	store    ExhaustedEventSaver
	msgCh    chan *nats.Msg
	stopWg   sync.WaitGroup
	cancel   context.CancelFunc
}

func durableName(dlqSubject string) string {
	return strings.ReplaceAll(dlqSubject, ".", "_") + "_worker_consumer"
}

// NewWorker creates the worker and ensures the DLQ stream and its pull consumer exist.
func NewWorker(cfg *config.Config, log *zap.Logger, jsClient internal_js.ClientInterface, router ingestion.RouterInterface, verifier OwnerVerifier, store ExhaustedEventSaver) (*Worker, error) {
	pool, err := ants.NewPool(cfg.NATS.DLQWorkers,
		ants.WithLogger(newAntsLoggerAdapter(log.Named("ants_pool"))),
		ants.WithPanicHandler(func(err interface{}) {
			log.Error("Worker panic caught", zap.Any("error", err), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}

	setupCtx := logger.WithLogger(context.Background(), log)
	dlqSubject := cfg.NATS.DLQSubject + ".>"
	durable := durableName(cfg.NATS.DLQSubject)

	dlqStreamCfg := &nats.StreamConfig{
		Name:      cfg.NATS.DLQStream,
		Subjects:  []string{dlqSubject},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    time.Duration(cfg.NATS.DLQMaxAgeDays) * 24 * time.Hour,
	}
	if err := jsClient.SetupStream(setupCtx, dlqStreamCfg); err != nil {
		pool.Release()
		return nil, fmt.Errorf("failed to setup DLQ stream '%s': %w", cfg.NATS.DLQStream, err)
	}

	dlqConsumerCfg := &nats.ConsumerConfig{
		Durable:       durable,
		FilterSubject: dlqSubject,
		AckPolicy:     nats.AckExplicitPolicy,
		MaxDeliver:    cfg.NATS.DLQMaxDeliver,
		AckWait:       cfg.NATS.DLQAckWait,
		MaxAckPending: cfg.NATS.DLQMaxAckPending,
		DeliverPolicy: nats.DeliverAllPolicy,
		ReplayPolicy:  nats.ReplayInstantPolicy,
	}
	if err := jsClient.SetupConsumer(setupCtx, cfg.NATS.DLQStream, dlqConsumerCfg); err != nil {
		pool.Release()
		return nil, fmt.Errorf("failed to setup DLQ consumer '%s' for stream '%s': %w", durable, cfg.NATS.DLQStream, err)
	}

	worker := &Worker{
		cfg:      cfg,
		logger:   log.Named("dlq_worker"),
		js:       jsClient,
		pool:     pool,
		router:   router,
		verifier: verifier,
		store:    store,
		msgCh:    make(chan *nats.Msg, defaultMsgChanCap),
	}
	worker.logger.Info("DLQ Worker initialized", zap.Int("pool_size", cfg.NATS.DLQWorkers), zap.String("consumer", durable))
	return worker, nil
}

// Start runs the fetcher and dispatcher until ctx is cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) error {
	derivedCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	subSubject := w.cfg.NATS.DLQSubject + ".>"
	sub, err := w.js.SubscribePull(w.cfg.NATS.DLQStream, subSubject, durableName(w.cfg.NATS.DLQSubject))
	if err != nil {
		w.logger.Error("Failed to create DLQ pull subscription", zap.Error(err))
		cancel()
		return fmt.Errorf("failed to create DLQ pull subscription: %w", err)
	}

	w.stopWg.Add(2)
	go w.fetchMessages(derivedCtx, sub)
	go w.dispatchMessages(derivedCtx)

	w.logger.Info("DLQ worker started")
	<-derivedCtx.Done()
	w.logger.Info("DLQ worker context cancelled, initiating shutdown...")
	return nil
}

// Stop gracefully shuts down the DLQ worker.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.stopWg.Wait()
	close(w.msgCh)
	w.pool.Release()
	w.logger.Info("DLQ worker stopped")
}

func (w *Worker) fetchMessages(ctx context.Context, sub fetcher) {
	defer w.stopWg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		observer.IncDlqFetchRequest()
		msgs, err := sub.Fetch(fetchBatchSize, nats.MaxWait(fetchMaxWait))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, nats.ErrTimeout) || errors.Is(err, nats.ErrConnectionClosed) {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			observer.IncDlqFetchError()
			w.logger.Error("Fetcher loop error retrieving messages", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range msgs {
			select {
			case w.msgCh <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (w *Worker) dispatchMessages(ctx context.Context) {
	defer w.stopWg.Done()

	for {
		observer.SetDlqWorkersActive(w.pool.Running())

		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.msgCh:
			if !ok {
				return
			}
			eventType := eventTypeLabel(msg.Data)
			err := w.pool.Submit(func() {
				taskCtx, taskCancel := context.WithTimeout(context.Background(), taskTimeout)
				defer taskCancel()
				w.handleWithRetry(taskCtx, msg, msg.Subject, msg.Header, msg.Data)
			})
			if err != nil {
				w.logger.Error("Failed to submit task to ants pool", zap.Error(err))
				if nakErr := msg.NakWithDelay(5 * time.Second); nakErr != nil {
					w.logger.Error("Failed to NAK message after pool submission error", zap.Error(nakErr))
					observer.IncDlqAckFailure(eventType)
				}
				continue
			}
			observer.IncDlqTasksSubmitted(eventType)
		}
	}
}

func eventTypeLabel(data []byte) string {
	var payload model.DLQPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "unknown"
	}
	eventType, ok := model.MapToBaseEventType(payload.SourceSubject)
	if !ok {
		return "unknown"
	}
	return string(eventType)
}

// handleWithRetry re-routes one DLQ message. Success acks it; a retryable
// failure is redelivered with backoff until DLQMaxRetries deliveries, after
// which (or on any fatal failure) the event is parked as exhausted.
func (w *Worker) handleWithRetry(ctx context.Context, msg internal_js.Delivery, subject string, header nats.Header, data []byte) {
	startTime := time.Now()
	eventType := "unknown"
	defer func() {
		observer.ObserveDlqProcessingDuration(eventType, time.Since(startTime))
	}()

	meta, err := msg.Metadata()
	if err != nil {
		w.logger.Error("Failed to get message metadata", zap.Error(err), zap.String("subject", subject))
		if termErr := msg.Term(); termErr != nil {
			w.logger.Error("Failed to terminate message after metadata error", zap.Error(termErr))
		}
		observer.IncDlqAckFailure(eventType)
		return
	}

	var payload model.DLQPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Owner == "" {
		w.logger.Error("Malformed DLQ payload",
			zap.Error(err),
			zap.Uint64("sequence", meta.Sequence.Stream),
			zap.String("subject", subject),
		)
		if termErr := msg.Term(); termErr != nil {
			w.logger.Error("Failed to terminate malformed message", zap.Error(termErr))
		}
		observer.IncDlqAckFailure(eventType)
		return
	}
	if base, ok := model.MapToBaseEventType(payload.SourceSubject); ok {
		eventType = string(base)
	}

	if err := w.authorize(subject, header, payload); err != nil {
		w.logger.Warn("Rejecting DLQ message with unverified owner",
			zap.Error(err),
			zap.String("subject", subject),
			zap.String("claimed_owner", payload.Owner),
		)
		if termErr := msg.Term(); termErr != nil {
			w.logger.Error("Failed to terminate unverified message", zap.Error(termErr))
		}
		observer.IncDlqTasksDropped(eventType)
		return
	}

	log := w.logger.With(
		zap.String("source_subject", payload.SourceSubject),
		zap.String("owner_id", payload.Owner),
		zap.Uint64("num_delivered", meta.NumDelivered),
	)

	routerMetadata := &model.MessageMetadata{
		MessageSubject:   payload.SourceSubject,
		OwnerID:          payload.Owner,
		StreamSequence:   meta.Sequence.Stream,
		ConsumerSequence: meta.Sequence.Consumer,
		Timestamp:        meta.Timestamp,
		NumDelivered:     meta.NumDelivered,
		Stream:           meta.Stream,
		Consumer:         meta.Consumer,
		MessageID:        fmt.Sprintf("dlq-%d", meta.Sequence.Stream),
	}
	handlerCtx := logger.WithLogger(ctx, log)

	processingErr := w.router.Route(handlerCtx, routerMetadata, payload.OriginalPayload)
	if processingErr == nil {
		log.Info("Successfully processed event from DLQ")
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error("Failed to ACK successfully processed message", zap.Error(ackErr))
			observer.IncDlqAckFailure(eventType)
			return
		}
		observer.IncDlqAckSuccess(eventType)
		return
	}

	log.Warn("Failed to process event from DLQ", zap.Error(processingErr))

	if meta.NumDelivered >= uint64(w.cfg.NATS.DLQMaxRetries) || !apperrors.IsRetryable(processingErr) {
		w.exhaust(ctx, log, msg, payload, data, processingErr, eventType)
		return
	}

	delay := calculateBackoffDelay(int(meta.NumDelivered), w.cfg.NATS.DLQBaseDelayMinutes, w.cfg.NATS.DLQMaxDelayMinutes)
	log.Info("Retrying DLQ message with backoff", zap.Duration("delay", delay))
	if nakErr := msg.NakWithDelay(delay); nakErr != nil {
		log.Error("Failed to NAK message with delay", zap.Error(nakErr))
		observer.IncDlqAckFailure(eventType)
		return
	}
	observer.IncDlqTaskRetry(eventType)
}

// authorize requires the publisher token, the DLQ subject, the source subject
// and the payload to name the same owner.
func (w *Worker) authorize(subject string, header nats.Header, payload model.DLQPayload) error {
	dlqOwner, ok := strings.CutPrefix(subject, w.cfg.NATS.DLQSubject+".")
	if !ok || dlqOwner == "" || strings.Contains(dlqOwner, ".") {
		return fmt.Errorf("%w: subject %q is not a DLQ owner subject", apperrors.ErrUnauthenticated, subject)
	}
	sourceOwner, ok := model.OwnerFromSubject(payload.SourceSubject)
	if !ok {
		return fmt.Errorf("%w: source subject %q has no owner token", apperrors.ErrUnauthenticated, payload.SourceSubject)
	}

	var token string
	if header != nil {
		token = auth.BearerToken(header.Get(ingestion.HeaderAuthorization))
	}
	tokenOwner, err := w.verifier.VerifySignature(token)
	if err != nil {
		return err
	}

	if tokenOwner != payload.Owner || dlqOwner != payload.Owner || sourceOwner != payload.Owner {
		return fmt.Errorf("%w: owner mismatch (token %q, subject %q, source %q, payload %q)",
			apperrors.ErrUnauthenticated, tokenOwner, dlqOwner, sourceOwner, payload.Owner)
	}
	return nil
}

func (w *Worker) exhaust(ctx context.Context, log *zap.Logger, msg internal_js.Delivery, payload model.DLQPayload, data []byte, processingErr error, eventType string) {
	meta, _ := msg.Metadata()
	retryCount := int(payload.RetryCount)
	if meta != nil {
		retryCount += int(meta.NumDelivered)
	}

	event := model.ExhaustedEvent{
		OwnerID:         payload.Owner,
		SourceSubject:   payload.SourceSubject,
		LastError:       processingErr.Error(),
		RetryCount:      retryCount,
		EventTimestamp:  payload.Timestamp,
		DLQPayload:      datatypes.JSON(data),
		OriginalPayload: datatypes.JSON(payload.OriginalPayload),
	}
	if err := w.store.SaveExhaustedEvent(ctx, event); err != nil {
		log.Error("Failed to save exhausted event, terminating message anyway", zap.Error(err))
	}

	if termErr := msg.Term(); termErr != nil {
		log.Error("Failed to terminate exhausted message", zap.Error(termErr))
		observer.IncDlqAckFailure(eventType)
	}
	observer.IncDlqTasksDropped(eventType)
}

// calculateBackoffDelay calculates the delay based on retry count.
func calculateBackoffDelay(retryCount int, baseDelayMinutes, maxDelayMinutes int) time.Duration {
	baseDelay := time.Duration(baseDelayMinutes) * time.Minute
	maxDelay := time.Duration(maxDelayMinutes) * time.Minute

	if retryCount <= 0 {
		return baseDelay
	}

	delay := baseDelay * time.Duration(1<<uint(retryCount-1))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// --- Ants Logger Adapter ---

type antsLoggerAdapter struct {
	logger *zap.Logger
}

func newAntsLoggerAdapter(logger *zap.Logger) *antsLoggerAdapter {
	return &antsLoggerAdapter{logger: logger}
}

func (a *antsLoggerAdapter) Printf(format string, args ...interface{}) {
	a.logger.Info(fmt.Sprintf(format, args...))
}
