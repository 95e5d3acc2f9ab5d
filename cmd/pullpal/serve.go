package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Paribesh01/pullpal/internal/llm"
	"github.com/Paribesh01/pullpal/internal/notifier"
	"github.com/Paribesh01/pullpal/internal/pipeline"
	"github.com/Paribesh01/pullpal/internal/review"
	"github.com/Paribesh01/pullpal/internal/server"
	"github.com/Paribesh01/pullpal/internal/storage"
	"github.com/Paribesh01/pullpal/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Info().Msg("Starting PullPal")

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	deliveries := storage.NewDeliveryStore(db)
	if cfg.Database.DeliveryRetentionDays > 0 {
		removed, err := deliveries.CleanupDeliveries(cmd.Context(), cfg.Database.DeliveryRetentionDays)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to clean up old deliveries")
		} else if removed > 0 {
			logger.Info().Int64("removed", removed).Msg("Old deliveries cleaned up")
		}
	}

	ghClient, err := newGitHubClient()
	if err != nil {
		return err
	}

	model, err := llm.New(cmd.Context(), llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		return err
	}
	logger.Info().Str("provider", cfg.LLM.Provider).Str("model", cfg.LLM.Model).Msg("Model backend configured")

	deps := pipeline.Deps{
		Repos:      storage.NewRepoStore(db),
		Users:      storage.NewUserStore(db),
		Reviews:    storage.NewReviewStore(db),
		Deliveries: deliveries,
		GitHub: func(token string) pipeline.GitHubAPI {
			return ghClient.Session(token)
		},
		Reviewer:       review.NewGenerator(model, review.WithRedaction(cfg.Review.RedactSecrets)),
		BatchThreshold: cfg.Review.BatchThreshold,
	}
	if cfg.Webhook.RateLimitPerMin > 0 {
		deps.Limiter = server.NewRateLimiter(cfg.Webhook.RateLimitPerMin)
	}

	if cfg.Telegram.Enabled() {
		n, err := notifier.NewTelegram(notifier.Options{
			Token:         cfg.Telegram.Token,
			ChatID:        cfg.Telegram.ChatID,
			NotifySuccess: cfg.Telegram.NotifySuccess,
		})
		if err != nil {
			// Reviews still work without notifications.
			logger.Warn().Err(err).Msg("Telegram notifications disabled")
		} else {
			deps.Notifier = n
		}
	}

	orch, err := pipeline.New(deps)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddress(),
		Handler:           server.NewRouter(orch, server.Options{IPRateLimitPerMin: cfg.Webhook.IPRateLimitPerMin}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("address", cfg.ServerAddress()).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down...")

	// In-flight reviews are given time to finish publishing.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("Shutdown complete")
	return nil
}
