package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dispute_triage/backend/internal/ai"
	"github.com/dispute_triage/backend/internal/config"
	"github.com/dispute_triage/backend/internal/db"
	httpapi "github.com/dispute_triage/backend/internal/http"
	"github.com/dispute_triage/backend/internal/metrics"
	"github.com/dispute_triage/backend/internal/notify"
	"github.com/dispute_triage/backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "dispute-triage").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	if cfg.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate db")
		}
	}

	m := metrics.New("dispute-triage")

	var agent *ai.Agent
	if provider, ok := ai.SelectProvider(cfg.Selection(nil)); ok {
		agent = ai.NewAgent(ai.NewGuard(provider, cfg.Guard()), logger, m)
		logger.Info().Str("provider", provider.Name()).Msg("llm provider selected")
	} else {
		agent = ai.NewAgent(nil, logger, m)
		logger.Info().Msg("no llm credentials, using heuristic classifier")
	}

	var notifier service.Notifier = notify.Noop{}
	if cfg.SlackBotToken != "" {
		notifier = notify.NewSlack(cfg.SlackBotToken, cfg.SlackOpsChannel, cfg.SlackAPIURL)
		logger.Info().Str("channel", cfg.SlackOpsChannel).Msg("slack notifications enabled")
	}

	triage := &service.TriageService{
		Store:      store,
		Classifier: agent,
		Router:     service.NewRouter(store),
		Notifier:   notifier,
		Logger:     logger,

		NotifyTimeout: cfg.SlackTimeout,
	}

	router := httpapi.Router(cfg, store, triage, agent, m, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: cfg.RequestTimeout,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
