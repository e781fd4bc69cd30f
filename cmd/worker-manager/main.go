// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"limn-workers/internal/common/camunda"
	"limn-workers/internal/common/config"
	"limn-workers/internal/common/database"
	"limn-workers/internal/common/logger"
	"limn-workers/internal/common/observability"
	"limn-workers/internal/runstate"
	"limn-workers/internal/workflow"

	pw "limn-workers/internal/workers/generation/prepare-workflow"
	rg "limn-workers/internal/workers/generation/record-generation"
	rrs "limn-workers/internal/workers/generation/record-run-state"
	sg "limn-workers/internal/workers/generation/submit-generation"
	sw "limn-workers/internal/workers/infrastructure/select-workflow"
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
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(cfg.Camunda)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL (generation history) ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis (run state) ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	runStates := runstate.NewManager(
		runstate.NewRedisStore(redis.Client, config.GetDuration(cfg.RunState.TTL)),
		cfg.RunState.KeyPrefix,
		log,
	)
	if name, err := runStates.MigrateLegacy(ctx); err != nil {
		zapLog.Warn("legacy run state migration failed", zap.Error(err))
	} else if name != "" {
		zapLog.Info("legacy run state migrated", zap.String("workflowName", name))
	}

	filler := workflow.NewFiller(log)

	// --- Workers ---
	var workers []worker.JobWorker
	start := func(taskType string, handler camunda.HandlerFunc) {
		w := camunda.StartWorker(zeebe.Zeebe(), taskType, config.GetWorkerConfig(cfg, taskType), handler, obs, log)
		if w != nil {
			workers = append(workers, w)
		}
	}

	if config.IsWorkerEnabled(cfg, sw.TaskType) {
		handler := sw.NewHandler(&sw.Config{
			SelectionRules:  cfg.Workflow.SelectionRules,
			DefaultWorkflow: cfg.Workflow.DefaultWorkflow,
			Timeout:         config.GetDuration(config.GetWorkerConfig(cfg, sw.TaskType).Timeout),
		}, log)
		start(sw.TaskType, handler.Handle)
	}

	if config.IsWorkerEnabled(cfg, pw.TaskType) {
		handler := pw.NewHandler(&pw.Config{
			RegistryPath: cfg.Workflow.RegistryPath,
			CacheTTL:     config.GetDuration(cfg.Workflow.CacheTTL),
			Timeout:      config.GetDuration(config.GetWorkerConfig(cfg, pw.TaskType).Timeout),
		}, filler, obs, log)
		start(pw.TaskType, handler.Handle)
	}

	if config.IsWorkerEnabled(cfg, sg.TaskType) {
		wcfg := config.GetWorkerConfig(cfg, sg.TaskType)
		handler := sg.NewHandler(&sg.Config{
			BaseURL:        cfg.Backend.BaseURL,
			APIKey:         cfg.Backend.APIKey,
			RequestTimeout: config.GetDuration(cfg.Backend.Timeout),
			MaxRetries:     cfg.Backend.MaxRetries,
			RetryDelay:     500 * time.Millisecond,
			Timeout:        config.GetDuration(wcfg.Timeout),
		}, log)
		start(sg.TaskType, handler.Handle)
	}

	if config.IsWorkerEnabled(cfg, rrs.TaskType) {
		rcfg := rrs.LoadConfig()
		rcfg.Timeout = config.GetDuration(config.GetWorkerConfig(cfg, rrs.TaskType).Timeout)
		handler := rrs.NewHandler(rcfg, runStates, log)
		start(rrs.TaskType, handler.Handle)
	}

	if config.IsWorkerEnabled(cfg, rg.TaskType) {
		handler := rg.NewHandler(&rg.Config{
			Timeout: config.GetDuration(config.GetWorkerConfig(cfg, rg.TaskType).Timeout),
		}, pg.DB, log)
		start(rg.TaskType, handler.Handle)
	}

	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		code := http.StatusOK
		for name, check := range map[string]func(context.Context) error{
			"zeebe":    zeebe.HealthCheck,
			"postgres": pg.Ping,
			"redis":    redis.Ping,
		} {
			checks[name] = "ok"
			if err := check(r.Context()); err != nil {
				checks[name] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		checks["time"] = time.Now().Format(time.RFC3339)
		writeStatus(w, code, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Close()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
