package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/photoscript/internal/api"
	"github.com/bobarin/photoscript/internal/assets"
	"github.com/bobarin/photoscript/internal/auth"
	"github.com/bobarin/photoscript/internal/blocks"
	"github.com/bobarin/photoscript/internal/config"
	"github.com/bobarin/photoscript/internal/db"
	"github.com/bobarin/photoscript/internal/logger"
	"github.com/bobarin/photoscript/internal/queue"
	"github.com/bobarin/photoscript/internal/services"
	"github.com/bobarin/photoscript/internal/store"
	"github.com/bobarin/photoscript/internal/store/memory"
	"github.com/bobarin/photoscript/internal/worker"
	"github.com/bobarin/photoscript/internal/workflow"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}

	os.Exit(exitCode(logg, run(cfg, logg)))
}

// exitCode logs err, flushes the logger and returns the process exit status.
func exitCode(logg *zap.Logger, err error) int {
	code := 0
	if err != nil {
		logg.Error("photoscript exited", zap.Error(err))
		code = 1
	}
	_ = logg.Sync()
	return code
}

func run(cfg *config.Config, logg *zap.Logger) error {
	logg.Info("starting photoscript API",
		zap.String("environment", cfg.Environment),
		zap.String("store", cfg.StoreDriver),
		zap.String("splitter", cfg.SplitterProvider),
	)

	st, closeStore, err := openStore(cfg, logg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Redis is optional; without it match/generate only run synchronously.
	var q *queue.Queue
	if cfg.AsyncEnabled() {
		q, err = queue.New(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to queue: %w", err)
		}
		defer q.Close()
		logg.Info("connected to redis queue")
	} else {
		logg.Warn("REDIS_URL not set, async jobs disabled")
	}

	timeout := time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
	splitter, err := newSplitter(cfg, timeout, logg)
	if err != nil {
		return err
	}
	if cfg.PexelsKey == "" {
		logg.Warn("PEXELS_API_KEY not set, media search returns no results")
	}
	pexels := services.NewPexelsClient(cfg.PexelsKey, timeout, logg)

	reconciler := assets.NewReconciler(logg)
	matcher := assets.NewMatcher(pexels, logg)
	blockSvc := blocks.NewService(st, reconciler, logg)

	var enqueuer workflow.Enqueuer
	if q != nil {
		enqueuer = q
	}
	wf := workflow.New(st, blockSvc, reconciler, matcher, splitter, enqueuer, workflow.Options{
		MaxScriptLength:       cfg.MaxScriptLength,
		DefaultMaxKeywords:    cfg.DefaultMaxKeywords,
		MaxCandidatesPerBlock: cfg.MaxCandidatesPerBlock,
		MatchConcurrency:      cfg.MatchConcurrency,
	}, logg)
	authSvc := auth.NewService(st, cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour, logg)

	handler := api.NewHandler(wf, blockSvc, authSvc, logg)
	router := api.NewRouter(handler, authSvc, api.RouterConfig{
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	}, logg)

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})
	if q != nil && cfg.WorkerEnabled {
		w := worker.New(st, q, wf, logg)
		go func() {
			defer close(workerDone)
			w.Start(workerCtx, cfg.WorkerConcurrency)
		}()
	} else {
		close(workerDone)
	}

	serverErr := make(chan error, 1)
	go func() {
		logg.Info("API server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logg.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		workerCancel()
		<-workerDone
		return fmt.Errorf("server error: %w", err)
	}

	workerCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	select {
	case <-workerDone:
	case <-ctx.Done():
		logg.Warn("worker did not stop before the shutdown deadline")
	}

	logg.Info("server exited")
	return nil
}

func openStore(cfg *config.Config, logg *zap.Logger) (store.Store, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logg.Warn("using in-memory store, data is lost on restart")
		return memory.New(), func() {}, nil
	}

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logg.Info("connected to database")
	return database, func() { database.Close() }, nil
}

func newSplitter(cfg *config.Config, timeout time.Duration, logg *zap.Logger) (services.ScriptSplitter, error) {
	switch cfg.SplitterProvider {
	case config.SplitterGemini:
		s, err := services.NewGeminiSplitter(context.Background(), cfg.GeminiKey, cfg.GeminiModel, logg, services.WithTimeout(timeout))
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini splitter: %w", err)
		}
		return s, nil
	case config.SplitterLocal:
		return services.NewLocalSplitter(cfg.MaxBlockLength, logg), nil
	default:
		return services.NewOpenAISplitter(cfg.OpenAIKey, cfg.OpenAIModel, logg, services.WithTimeout(timeout)), nil
	}
}
