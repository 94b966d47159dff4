package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/config"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/jetstream"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/observer"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
)

type options struct {
	configPath  string
	natsURL     string
	owners      string
	rate        float64
	duration    time.Duration
	concurrency int
	profiles    int
	metricsPort int
	logLevel    string
}

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "loadgen",
		Short:         "Publish fake LinkedIn save events to JetStream",
		Long:          "Generates load for the follow-up tracker by publishing authenticated save events for a set of owners.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "directory containing default.yaml")
	f.StringVar(&opts.natsURL, "url", "", "NATS server URL (defaults to nats.url)")
	f.StringVar(&opts.owners, "owners", "owner-1,owner-2", "comma-separated owner ids")
	f.Float64Var(&opts.rate, "rate", 50, "target events per second (total)")
	f.DurationVar(&opts.duration, "duration", time.Minute, "load test duration")
	f.IntVar(&opts.concurrency, "concurrency", 10, "number of publishing workers")
	f.IntVar(&opts.profiles, "profiles", 200, "distinct profiles per owner")
	f.IntVar(&opts.metricsPort, "metrics-port", 9091, "port for the Prometheus metrics endpoint")
	f.StringVar(&opts.logLevel, "log-level", "", "log level (defaults to logLevel)")
	return cmd
}

func run(ctx context.Context, opts *options) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if opts.natsURL == "" {
		opts.natsURL = cfg.NATS.URL
	}
	if opts.logLevel == "" {
		opts.logLevel = cfg.LogLevel
	}
	if opts.rate <= 0 {
		return fmt.Errorf("rate must be positive, got %v", opts.rate)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwtSecret is required to mint session tokens")
	}

	if err := logger.Initialize(opts.logLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	observer.InitMetrics(true)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	metricsServer := startMetricsServer(opts.metricsPort)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Metrics server shutdown error", zap.Error(err))
		}
	}()

	natsClient, err := jetstream.NewClient(opts.natsURL, "followup-tracker-loadgen")
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", opts.natsURL, err)
	}
	defer natsClient.Close()

	owners := splitNonEmpty(opts.owners)
	gen, err := newGenerator(natsClient, cfg.Auth, owners, opts.profiles, opts.duration+time.Hour)
	if err != nil {
		return err
	}

	logger.Log.Info("Starting load generator",
		zap.String("nats_url", opts.natsURL),
		zap.Strings("owners", owners),
		zap.Float64("rate_per_sec", opts.rate),
		zap.Duration("duration", opts.duration),
		zap.Int("concurrency", opts.concurrency),
		zap.Int("profiles_per_owner", opts.profiles),
	)

	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(opts.concurrency, func(data interface{}) {
		defer wg.Done()
		publishTask(gen, data.(task))
	})
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	sent := runLoop(ctx, gen, pool, rate.NewLimiter(rate.Limit(opts.rate), 1), &wg)

	logger.Log.Info("Waiting for in-flight publishes")
	wg.Wait()
	logger.Log.Info("Load generator finished", zap.Int("submitted", sent))
	return nil
}

// runLoop paces task submission with the limiter until ctx ends.
func runLoop(ctx context.Context, gen *generator, pool *ants.PoolWithFunc, limiter *rate.Limiter, wg *sync.WaitGroup) int {
	sent := 0
	for {
		if err := limiter.Wait(ctx); err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				logger.Log.Warn("Rate limiter wait failed", zap.Error(err))
			}
			return sent
		}

		t := gen.next()
		label := subjectLabel(t.payload.Status)
		observer.IncLoadgenMessagesAttempted(label)

		wg.Add(1)
		if err := pool.Invoke(t); err != nil {
			wg.Done()
			logger.Log.Warn("Failed to invoke worker pool", zap.Error(err))
			observer.IncLoadgenPublishErrors(label)
			continue
		}
		sent++
	}
}

func publishTask(gen *generator, t task) {
	label := subjectLabel(t.payload.Status)
	subject, err := gen.publish(t)
	if err != nil {
		logger.Log.Error("Failed to publish save event", zap.String("subject", subject), zap.Error(err))
		observer.IncLoadgenPublishErrors(label)
		return
	}
	observer.IncLoadgenMessagesPublished(label)
}

// subjectLabel keeps metric cardinality independent of the owner count.
func subjectLabel(status string) string {
	if status == "" {
		return "save:default"
	}
	return "save:" + strings.ToLower(strings.ReplaceAll(status, " ", "_"))
}

func startMetricsServer(port int) *http.Server {
	logger.Log.Info("Starting Prometheus metrics server", zap.Int("port", port))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Error("Failed to start Prometheus metrics server", zap.Error(err))
		}
	}()
	return server
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
