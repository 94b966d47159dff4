package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/nats-io/nats.go"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/apperrors"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/config"
	internal_js "github.com/linkedin-followup-tracker/followup-tracker/internal/jetstream"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/observer"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/utils"
)

const (
	jobTag        = "followup_reminder"
	runTimeout    = 5 * time.Minute
	digestMaxAge  = 7 * 24 * time.Hour
	// digestDedupe covers a whole calendar day so a second run for the same
	// date is dropped by the stream.
	digestDedupe  = 24 * time.Hour
	headerMsgID   = "Nats-Msg-Id"
	defaultWorker = 4
)

// Run outcomes recorded by observer.RecordReminderRun.
const (
	RunSuccess = "success"
	RunPartial = "partial"
	RunError   = "error"
)

// DigestSource yields one digest per owner with something due today.
type DigestSource interface {
	DueFollowupDigests(ctx context.Context) ([]model.FollowupDigest, error)
}

// Reminder publishes the daily follow-up digests. It only reads contacts.
type Reminder struct {
	cfg    *config.Config
	logger *zap.Logger
	js     internal_js.ClientInterface
	source DigestSource
	pool   *ants.Pool
	cron   *gocron.Scheduler
	runMu  sync.Mutex
}

// NewReminder builds the job. Call Setup before Start.
func NewReminder(cfg *config.Config, log *zap.Logger, js internal_js.ClientInterface, source DigestSource) (*Reminder, error) {
	workers := cfg.Followup.ReminderWorkers
	if workers <= 0 {
		workers = defaultWorker
	}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p interface{}) {
		log.Error("Reminder publish panic", zap.Any("panic", p), zap.Stack("stack"))
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create reminder pool: %w", err)
	}

	cron := gocron.NewScheduler(cfg.Followup.Location())
	cron.TagsUnique()

	return &Reminder{
		cfg:    cfg,
		logger: log.Named("reminder"),
		js:     js,
		source: source,
		pool:   pool,
		cron:   cron,
	}, nil
}

// Setup makes sure the digest stream exists.
func (r *Reminder) Setup(ctx context.Context) error {
	streamCfg := &nats.StreamConfig{
		Name:       r.cfg.NATS.ReminderStream,
		Subjects:   []string{r.cfg.NATS.ReminderSubject + ".*"},
		Storage:    nats.FileStorage,
		Retention:  nats.LimitsPolicy,
		MaxAge:     digestMaxAge,
		Duplicates: digestDedupe,
	}
	if err := r.js.SetupStream(logger.WithLogger(ctx, r.logger), streamCfg); err != nil {
		return fmt.Errorf("failed to setup reminder stream %s: %w", streamCfg.Name, err)
	}
	return nil
}

// Start schedules the job on the configured cron expression.
func (r *Reminder) Start() error {
	_, err := r.cron.Cron(r.cfg.Followup.ReminderCron).Tag(jobTag).Do(func() {
		if !r.runMu.TryLock() {
			r.logger.Warn("Previous reminder run still in progress, skipping")
			return
		}
		defer r.runMu.Unlock()
		ctx, cancel := context.WithTimeout(logger.WithLogger(context.Background(), r.logger), runTimeout)
		defer cancel()
		if err := utils.WrapWithContextRecovery(r.RunOnce)(ctx); err != nil {
			r.logger.Error("Reminder run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminder %q: %w", r.cfg.Followup.ReminderCron, err)
	}
	r.cron.StartAsync()
	r.logger.Info("Reminder scheduled",
		zap.String("cron", r.cfg.Followup.ReminderCron),
		zap.String("timezone", r.cfg.Followup.Location().String()),
	)
	return nil
}

// Stop halts the scheduler and releases the publish pool.
func (r *Reminder) Stop() {
	r.cron.Stop()
	r.pool.Release()
}

// RunOnce publishes every due digest. A failed publish does not stop the
// others; the run reports an error when any digest was not published.
func (r *Reminder) RunOnce(ctx context.Context) error {
	start := time.Now()
	ctx = logger.WithLogger(ctx, r.logger)

	digests, err := r.source.DueFollowupDigests(ctx)
	if err != nil {
		observer.RecordReminderRun(RunError, time.Since(start))
		return err
	}

	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)
	for _, digest := range digests {
		digest := digest
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := r.publish(digest); err != nil {
				failed.Add(1)
				observer.IncReminderPublishError()
				logger.FromContext(ctx).Warn("Failed to publish follow-up digest",
					zap.String("owner_id", digest.OwnerID),
					zap.Error(err),
				)
				return
			}
			observer.IncReminderDigestPublished()
		}
		if err := r.pool.Submit(task); err != nil {
			logger.FromContext(ctx).Warn("Reminder pool rejected task, publishing inline", zap.Error(err))
			task()
		}
	}
	wg.Wait()

	n := failed.Load()
	status := RunSuccess
	switch {
	case n > 0 && int(n) == len(digests):
		status = RunError
	case n > 0:
		status = RunPartial
	}
	observer.RecordReminderRun(status, time.Since(start))
	logger.FromContext(ctx).Info("Reminder run finished",
		zap.Int("owners", len(digests)),
		zap.Int64("failed", n),
		zap.String("status", status),
	)

	if n > 0 {
		return fmt.Errorf("%w: %d of %d follow-up digests not published", apperrors.ErrNATS, n, len(digests))
	}
	return nil
}

func (r *Reminder) publish(digest model.FollowupDigest) error {
	data, err := json.Marshal(digest)
	if err != nil {
		return fmt.Errorf("marshal digest: %w", err)
	}
	subject := r.cfg.NATS.ReminderSubject + "." + digest.OwnerID
	headers := map[string]string{
		headerMsgID: fmt.Sprintf("followups-%s-%s", digest.OwnerID, digest.Date),
	}
	return r.js.Publish(subject, data, headers)
}
