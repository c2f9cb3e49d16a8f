// cmd/review-engine/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"poultry-review-engine/internal/audit"
	"poultry-review-engine/internal/common/aws"
	"poultry-review-engine/internal/common/config"
	"poultry-review-engine/internal/common/database"
	"poultry-review-engine/internal/common/logger"
	"poultry-review-engine/internal/common/observability"
	"poultry-review-engine/internal/directory"
	"poultry-review-engine/internal/engine"
	"poultry-review-engine/internal/notify"
	"poultry-review-engine/internal/queue"
	"poultry-review-engine/internal/scoring"
	"poultry-review-engine/internal/sla"
	"poultry-review-engine/internal/store"
	"poultry-review-engine/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting review engine...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	// Rebuild the logger with the configured level and format.
	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log = logger.NewZapAdapter(zapLog)

	obs := observability.New("review-engine")
	defer obs.Shutdown()

	if cfg.Observability.Tracing.Enabled {
		if err := obs.EnableTracing("review-engine", cfg.Observability.Tracing.JaegerEndpoint); err != nil {
			zapLog.Error("tracing setup failed, continuing without traces", zap.Error(err))
		} else {
			zapLog.Info("Tracing enabled", zap.String("endpoint", cfg.Observability.Tracing.JaegerEndpoint))
		}
	}

	ctx := context.Background()
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	pgStore := store.NewPostgresStore(pg.DB, log)
	if err := pgStore.Migrate(ctx); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}
	zapLog.Info("Database schema ready")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry (audit index mirror only) ---
	var esClient *database.ElasticsearchClient
	if cfg.Observability.AuditIndex.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			// Test the connection
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Load Track Registry ---
	reg, err := registry.Load(cfg.Tracks.RegistryPath)
	if err != nil {
		zapLog.Fatal("track registry load failed", zap.Error(err), zap.String("path", cfg.Tracks.RegistryPath))
	}
	zapLog.Info("Track registry loaded",
		zap.String("version", reg.Version),
		zap.Int("tracks", len(reg.Tracks())),
	)

	// --- Reviewer Directory ---
	var dir directory.Directory
	if cfg.Auth.Keycloak.URL != "" {
		dir = directory.NewKeycloakDirectory(cfg.Auth, log)
		zapLog.Info("Reviewer directory backed by Keycloak", zap.String("realm", cfg.Auth.Keycloak.Realm))
	} else {
		reviewers := reg.Reviewers()
		dir = directory.NewStaticDirectory(reviewers...)
		zapLog.Info("Reviewer directory seeded from registry", zap.Int("reviewers", len(reviewers)))
	}
	if ttl := config.GetDuration(cfg.Workflow.PoolCacheTTL); ttl > 0 {
		dir = directory.NewCachedDirectory(dir, redis, ttl, log)
	}

	// --- Queue Manager ---
	var loads queue.LoadSource = queue.LoadFunc(pgStore.CountAssigned)
	if ttl := config.GetDuration(cfg.Workflow.LoadCacheTTL); ttl > 0 {
		loads = directory.NewLoadCache(pgStore, redis, ttl, log)
	}
	queueManager := queue.NewManager(
		pgStore,
		queue.MinLoadBalancer{MaxPerReviewer: cfg.Workflow.MaxPerReviewer},
		loads,
		log,
	)

	// --- Notification Dispatcher ---
	var base notify.Notifier = notify.NoopNotifier{}
	if cfg.Integrations.AWS.SES.Enabled || cfg.Integrations.AWS.SNS.Enabled {
		var sesClient notify.SESService
		var snsClient notify.SNSService
		if cfg.Integrations.AWS.SES.Enabled {
			client, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
			if err != nil {
				zapLog.Fatal("ses client init failed", zap.Error(err))
			}
			sesClient = client
		}
		if cfg.Integrations.AWS.SNS.Enabled {
			client, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
			if err != nil {
				zapLog.Fatal("sns client init failed", zap.Error(err))
			}
			snsClient = client
		}
		base = notify.NewAWSNotifier(cfg.Notifications, sesClient, snsClient, log)
		zapLog.Info("AWS notification channels initialized",
			zap.Bool("ses", cfg.Integrations.AWS.SES.Enabled),
			zap.Bool("sns", cfg.Integrations.AWS.SNS.Enabled),
		)
	} else {
		zapLog.Info("Notification channels disabled, events will be dropped")
	}
	dispatcher := notify.NewDispatcher(base, cfg.Notifications, log)
	go dispatcher.Run(runCtx)

	// --- Audit Index Mirror ---
	var sink engine.ActionSink
	if cfg.Observability.AuditIndex.Enabled {
		indexer := audit.NewIndexer(esClient, cfg.Observability, log)
		go indexer.Run(runCtx)
		sink = indexer
		zapLog.Info("Audit index mirror enabled", zap.String("prefix", cfg.Observability.AuditIndex.Prefix))
	}

	// --- Review Engine ---
	eng := engine.New(engine.Params{
		Store:       pgStore,
		Queue:       queueManager,
		SLA:         sla.NewPolicy(cfg.Workflow),
		Dir:         dir,
		Tracks:      reg,
		Criteria:    reg,
		Notifier:    dispatcher,
		Audit:       sink,
		Weights:     scoring.PriorityWeightsFromConfig(cfg.Scoring.Priority),
		Eligibility: scoring.EligibilityFromConfig(cfg.Scoring.Eligibility),
		Workflow:    cfg.Workflow,
		Logger:      log,
		Obs:         obs,
	})
	zapLog.Info("Review engine assembled")

	// --- SLA Sweeper ---
	sweepEvery := config.GetDuration(cfg.Workflow.SweepInterval)
	if sweepEvery <= 0 {
		sweepEvery = 10 * time.Minute
	}
	sweeper := sla.NewSweeper(sweepEvery, func(ctx context.Context) (int, error) {
		flagged, err := eng.SweepOverdue(ctx, nil)
		return len(flagged), err
	}, log)
	go sweeper.Run(runCtx)

	// --- Health & Metrics Server ---
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.App.HTTPPort)}
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping review engine...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	zapLog.Info("Review engine stopped")
}
