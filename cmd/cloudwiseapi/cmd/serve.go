package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/cmd/cmdutil"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/apierr"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/auth"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/config"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/ingress"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/repository"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/server"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/services/identity"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/services/users"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/telemetry"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/upload"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/webhook"
)

const replayKeyPrefix = "cloudwise:webhook:replay:"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the CloudWise API server",
	Long:  `Starts the HTTP server. HTTP/2 cleartext is accepted for clients behind a TLS-terminating proxy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger := cmdutil.Logger(cfg)
		ctx := cmd.Context()

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				logger.WithError(err).Warn("telemetry shutdown failed")
			}
		}()

		db, err := cmdutil.OpenDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer cmdutil.CloseDB(db, logger)

		dbMetrics, err := telemetry.NewDatabaseMetrics()
		if err != nil {
			return fmt.Errorf("create database metrics: %w", err)
		}
		db.AddQueryHook(dbMetrics)
		logger.Info("connected to database")

		serverMetrics, err := telemetry.NewServerMetrics()
		if err != nil {
			return fmt.Errorf("create server metrics: %w", err)
		}
		authMetrics, err := telemetry.NewAuthMetrics()
		if err != nil {
			return fmt.Errorf("create auth metrics: %w", err)
		}
		webhookMetrics, err := telemetry.NewWebhookMetrics()
		if err != nil {
			return fmt.Errorf("create webhook metrics: %w", err)
		}

		keys := auth.NewRemoteKeySet(cfg.Auth.JWKSURL(), auth.RemoteKeySetOptions{
			CacheTTL:         cfg.Auth.JWKSCacheTTL,
			RefetchPerMinute: cfg.Auth.JWKSRefetchPerMinute,
			FetchTimeout:     cfg.Auth.JWKSFetchTimeout,
			FetchAttempts:    cfg.Auth.JWKSFetchAttempts,
			Logger:           logger,
		})
		verifier := auth.NewVerifier(auth.VerifierConfig{
			Issuer:   cfg.Auth.Issuer(),
			Audience: cfg.Auth.Audience,
			Leeway:   cfg.Auth.Leeway,
		}, keys)

		roles, err := auth.NewRoleAuthorizer()
		if err != nil {
			return fmt.Errorf("configure role authorizer: %w", err)
		}

		replay, closeReplay, err := newReplayGuard(ctx, cfg.Webhook, logger)
		if err != nil {
			return err
		}
		defer closeReplay()

		webhooks, err := webhook.NewVerifier(webhook.Options{
			Secret:    cfg.Webhook.StripeSecret,
			Tolerance: cfg.Webhook.Tolerance,
			Replay:    replay,
			Metrics:   webhookMetrics,
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("configure webhook verifier: %w", err)
		}

		userRepo := repository.NewBunUserRepository(db)
		resolver := identity.NewResolver(userRepo, logger, cfg.DBTimeout)
		translator := apierr.NewTranslator(logger, cfg.IsDevelopment())

		handler := server.NewH2CHandler(server.RouterOptions{
			Cfg:           cfg,
			Logger:        logger,
			Translator:    translator,
			Ingress:       ingress.New(cfg.MaxJSONBodyBytes, translator),
			Authenticator: identity.NewAuthenticator(verifier, resolver),
			Roles:         roles,
			Users:         users.NewService(db, logger),
			CloudAccounts: repository.NewBunCloudAccountRepository(db),
			Uploads:       upload.NewValidator(cfg.Upload.MaxBytes, cfg.Upload.AllowedTypes),
			Webhooks:      webhooks,
			ServerMetrics: serverMetrics,
			AuthMetrics:   authMetrics,
			HealthCheck: func(ctx context.Context) error {
				pingCtx, cancel := context.WithTimeout(ctx, cfg.DBTimeout)
				defer cancel()
				return db.PingContext(pingCtx)
			},
		})

		srv := &http.Server{
			Addr:              cfg.ServerAddr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ConnState: func(_ net.Conn, state http.ConnState) {
				switch state {
				case http.StateNew:
					serverMetrics.ConnectionOpened(context.Background())
				case http.StateClosed, http.StateHijacked:
					serverMetrics.ConnectionClosed(context.Background())
				}
			},
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.WithFields(log.Fields{
				"addr":        cfg.ServerAddr,
				"url":         cfg.ServerURL,
				"environment": cfg.Environment,
				"issuer":      cfg.Auth.Issuer(),
			}).Info("starting server")
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.WithField("signal", sig.String()).Info("shutting down gracefully")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			logger.Info("server stopped")
			return nil
		}
	},
}

// newReplayGuard shares replay protection through Redis when a URL is
// configured, so every replica rejects the same redelivery.
func newReplayGuard(ctx context.Context, cfg config.WebhookConfig, logger log.FieldLogger) (webhook.ReplayGuard, func(), error) {
	ttl := webhook.ReplayTTL(cfg.Tolerance)
	if cfg.RedisURL == "" {
		logger.Warn("webhook replay protection is per process (webhook.redis_url not set)")
		return webhook.NewMemoryReplayGuard(cfg.ReplayCacheSize, ttl), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse webhook.redis_url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.WithError(err).Warn("failed to close redis client")
		}
	}
	return webhook.NewRedisReplayGuard(client, replayKeyPrefix, ttl), closeFn, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
