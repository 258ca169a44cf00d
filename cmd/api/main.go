package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/justsurfingit/elevate-tracker/internal/auth"
	"github.com/justsurfingit/elevate-tracker/internal/backend"
	"github.com/justsurfingit/elevate-tracker/internal/config"
	"github.com/justsurfingit/elevate-tracker/internal/database"
	"github.com/justsurfingit/elevate-tracker/internal/handlers"
	"github.com/justsurfingit/elevate-tracker/internal/logging"
	"github.com/justsurfingit/elevate-tracker/internal/services"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	flag.Parse()

	// 1. Configuration (.env, YAML, environment)
	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	log := logging.New(cfg)
	if log.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage
	stores, err := database.Open(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open document store")
	}
	defer stores.Close()

	sessions, err := sessionStore(ctx, cfg, stores, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open session store")
	}

	// 3. Core services
	llmService, err := services.NewLLMService(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize LLM")
	}
	jobService := services.NewJobApplicationService(stores.Documents, log)
	verifier := auth.NewGoogleVerifier(cfg.Auth.GoogleClientID)

	// 4. Inbox watcher
	if cfg.Gmail.Enabled {
		startEmailWatcher(ctx, cfg, jobService, llmService, stores.SyncState, log)
	}

	// 5. Router
	deps := handlers.Deps{
		Config:   cfg,
		Log:      log,
		Store:    stores.Documents,
		Jobs:     jobService,
		LLM:      llmService,
		Backend:  backend.New(cfg),
		Sessions: sessions,
		Verifier: verifier,
	}
	if cfg.Auth.GoogleClientID != "" {
		deps.Provider = auth.NewGoogleProvider(cfg, verifier)
	} else {
		log.Warn("GOOGLE_CLIENT_ID is empty; sign-in routes are disabled")
	}
	r := handlers.NewRouter(deps)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}

func sessionStore(ctx context.Context, cfg *config.Config, stores *database.Stores, log logrus.FieldLogger) (auth.SessionStore, error) {
	if cfg.Auth.SessionStore != "redis" {
		log.Info("Sessions kept in memory")
		return auth.NewMemorySessionStore(), nil
	}
	client := stores.Redis
	if client == nil {
		client = database.NewRedisClient(cfg)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, err
		}
	}
	log.Info("Sessions kept in redis")
	return auth.NewRedisSessionStore(client, cfg.Redis.Prefix), nil
}

func startEmailWatcher(ctx context.Context, cfg *config.Config, jobs *services.JobApplicationService, llm *services.LLMService,
	state database.SyncStateStore, log logrus.FieldLogger) {
	if cfg.Gmail.UserEmail == "" {
		log.Warn("gmail.user_email is empty; inbox watcher disabled")
		return
	}
	if !llm.Enabled() {
		log.Warn("LLM is not configured; inbox watcher disabled")
		return
	}

	log.Info("Initializing Gmail client")
	// The token is only read from disk here; run the CLI once to authorize.
	httpClient, err := auth.GmailClient(ctx, cfg, nil, nil, log)
	if err != nil {
		log.WithError(err).Warn("Gmail client unavailable")
		return
	}
	gmailService, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		log.WithError(err).Warn("Failed to create Gmail service")
		return
	}
	log.Info("Gmail service connected")

	watcher := services.NewEmailService(jobs, llm, gmailService, services.NewMatcherService(), state,
		cfg.Gmail.UserEmail, cfg.Gmail.PollInterval, log)
	watcher.StartWatcher(ctx)
}
