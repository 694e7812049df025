package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/quizly-backend/internal/config"
	"github.com/stemsi/quizly-backend/internal/database"
	"github.com/stemsi/quizly-backend/internal/gemini"
	"github.com/stemsi/quizly-backend/internal/handler"
	"github.com/stemsi/quizly-backend/internal/logger"
	"github.com/stemsi/quizly-backend/internal/repository"
	"github.com/stemsi/quizly-backend/internal/router"
	"github.com/stemsi/quizly-backend/internal/service"
	"github.com/stemsi/quizly-backend/internal/validator"
	"github.com/stemsi/quizly-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Bool("revoke_on_logout", cfg.RevokeOnLogout).
		Msg("Starting Quizly Backend")

	if cfg.GeminiAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set, AI generation will fail")
	}

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	quizRepo := repository.NewQuizRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	quizCache := repository.NewQuizCache(rdb, cfg.QuizCacheTTL)
	attemptQueue := repository.NewAttemptQueue(rdb)
	blocklist := repository.NewTokenBlocklist(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	// The client timeout is a backstop; the service applies AITimeout per call.
	generator, err := gemini.NewClient(ctx, &http.Client{Timeout: cfg.AITimeout + 5*time.Second},
		cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	authService := service.NewAuthService(cfg, userRepo, blocklist, log)
	quizService := service.NewQuizService(quizRepo, quizCache, generator, cfg.AITimeout, log)
	attemptService := service.NewAttemptService(quizService, attemptQueue, attemptRepo, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		User: handler.NewUserHandler(authService, attemptService, cfg),
		Quiz: handler.NewQuizHandler(quizService, attemptService),
		Play: handler.NewPlayHandler(quizService, attemptService, log, cfg.AllowedOrigins),
		Health: handler.NewHealthHandler(log, attemptQueue.Len,
			handler.HealthCheck{Name: "postgres", Ping: pool.Ping},
			handler.HealthCheck{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	attemptWorker := worker.NewAttemptWorker(attemptQueue, attemptRepo, quizService, log)
	go func() {
		attemptWorker.Start(workerCtx)
		close(workerDone)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the attempt worker and wait for it to flush its batch.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Attempt worker did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
