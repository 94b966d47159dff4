package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/auth"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/config"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/dlqworker"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/httpapi"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/jetstream"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/observer"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/scheduler"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/storage"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/usecase"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/utils"
)

const (
	shutdownTimeout = 30 * time.Second
	clientName      = "followup-tracker"
)

// component is something serve started and must stop on shutdown.
type component struct {
	name string
	stop func(ctx context.Context) error
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the JetStream consumers and the reminder job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRuntime(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	observer.InitMetrics(cfg.Metrics.Enabled)

	logger.Log.Info("Starting follow-up tracker",
		zap.String("environment", cfg.Environment),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
		zap.Bool("reminder_enabled", cfg.Followup.ReminderEnabled),
	)

	postgresRepo, err := storage.NewPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate)
	if err != nil {
		return fmt.Errorf("failed to initialize postgres repository: %w", err)
	}
	// Stopped last, after everything that writes through it.
	components := []component{{name: "postgres", stop: postgresRepo.Close}}

	service := usecase.NewContactService(
		storage.NewContactRepoAdapter(postgresRepo),
		storage.NewExhaustedEventRepoAdapter(postgresRepo),
		usecase.WithDefaultDelayDays(cfg.Followup.DefaultDelayDays),
		usecase.WithLocation(cfg.Followup.Location()),
	)

	verifier, err := auth.NewSessionVerifier(cfg.Auth)
	if err != nil {
		return err
	}

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()
	sigChan := make(chan os.Signal, 1)

	if cfg.NATS.Enabled {
		natsComponents, err := startMessaging(mainCtx, cfg, service, verifier, sigChan)
		components = append(components, natsComponents...)
		if err != nil {
			shutdown(components)
			return err
		}
	} else if cfg.Followup.ReminderEnabled {
		logger.Log.Warn("Reminder job needs NATS, not scheduling it")
	}

	deps := httpapi.Dependencies{
		Service:  service,
		Verifier: verifier,
		Health:   postgresRepo,
		Logger:   logger.Log,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = promhttp.Handler()
	}
	httpServer := httpapi.NewServer(cfg, deps)
	httpServer.Start()
	components = append(components, component{name: "http server", stop: httpServer.Stop})

	logger.Log.Info("HTTP endpoints available",
		zap.String("api", fmt.Sprintf("http://localhost:%d/api", cfg.Server.Port)),
		zap.String("health", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("readiness", fmt.Sprintf("http://localhost:%d/ready", cfg.Server.Port)),
	)

	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))
	mainCancel()

	shutdown(components)
	logger.Log.Info("Follow-up tracker shutdown complete")
	return nil
}

// startMessaging wires the JetStream consumer, the DLQ worker and the
// reminder job. A fatal DLQ worker error triggers a shutdown through sigChan.
func startMessaging(ctx context.Context, cfg *config.Config, service *usecase.ContactService, verifier *auth.SessionVerifier, sigChan chan os.Signal) ([]component, error) {
	jsClient, err := jetstream.NewClient(cfg.NATS.URL, clientName)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream client: %w", err)
	}
	components := []component{{name: "nats connection", stop: func(context.Context) error {
		jsClient.Close()
		return nil
	}}}

	processor := usecase.NewProcessor(service, jsClient, verifier, cfg)
	if err := processor.Setup(); err != nil {
		return components, err
	}

	dlqWorker, err := dlqworker.NewWorker(cfg, logger.Log, jsClient, processor.Router(), verifier, service)
	if err != nil {
		return components, fmt.Errorf("failed to initialize DLQ worker: %w", err)
	}

	if err := processor.Start(); err != nil {
		return components, err
	}
	components = append(components, component{name: "contact processor", stop: func(context.Context) error {
		processor.Stop()
		return nil
	}})

	go func() {
		if err := dlqWorker.Start(ctx); err != nil {
			logger.Log.Error("DLQ worker failed, initiating shutdown", zap.Error(err))
			select {
			case sigChan <- syscall.SIGTERM:
			default:
				logger.Log.Warn("Could not send SIGTERM to signal channel immediately")
			}
		}
	}()
	components = append(components, component{name: "dlq worker", stop: func(context.Context) error {
		dlqWorker.Stop()
		return nil
	}})

	if cfg.Followup.ReminderEnabled {
		reminder, err := scheduler.NewReminder(cfg, logger.Log, jsClient, service)
		if err != nil {
			return components, err
		}
		if err := reminder.Setup(ctx); err != nil {
			return components, err
		}
		if err := reminder.Start(); err != nil {
			return components, err
		}
		components = append(components, component{name: "reminder", stop: func(context.Context) error {
			reminder.Stop()
			return nil
		}})
	}

	return components, nil
}

// shutdown stops components in reverse start order and gives up after
// shutdownTimeout. The deferred wg.Done also runs when stop panics.
func shutdown(components []component) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", shutdownTimeout))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := len(components) - 1; i >= 0; i-- {
			c := components[i]
			var wg sync.WaitGroup
			wg.Add(1)
			utils.SafeGo(func() {
				defer wg.Done()
				start := time.Now()
				logger.Log.Info("[shutdown] Stopping " + c.name)
				if err := c.stop(ctx); err != nil {
					logger.Log.Error("[shutdown] Error stopping "+c.name, zap.Error(err))
					return
				}
				logger.Log.Info("[shutdown] Stopped "+c.name, zap.Duration("duration", time.Since(start)))
			}, func(r interface{}, stack []byte) {
				logger.Log.Error("[shutdown] Panic while stopping "+c.name,
					zap.Any("panic", r),
					zap.ByteString("stack", stack),
				)
			})
			wg.Wait()
		}
	}()

	select {
	case <-done:
		logger.Log.Info("[shutdown] All components stopped gracefully")
	case <-ctx.Done():
		logger.Log.Warn("[shutdown] Graceful shutdown timed out, forcing exit")
	}
}
