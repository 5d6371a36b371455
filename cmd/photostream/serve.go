// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/photostream/photostream/internal/auth"
	authpg "github.com/photostream/photostream/internal/auth/postgres"
	"github.com/photostream/photostream/internal/cache"
	"github.com/photostream/photostream/internal/config"
	"github.com/photostream/photostream/internal/control"
	"github.com/photostream/photostream/internal/httpapi"
	"github.com/photostream/photostream/internal/logging"
	"github.com/photostream/photostream/internal/mail"
	"github.com/photostream/photostream/internal/observability"
	"github.com/photostream/photostream/internal/store"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand. Flag names mirror config
// keys so flags override the file and environment.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the PhotoStream API server along with its metrics and
control endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			autoMigrate, _ := cmd.Flags().GetBool("auto-migrate")
			return runServe(cmd.Context(), cfg, autoMigrate)
		},
	}

	cmd.Flags().String("http.addr", ":8000", "API listen address")
	cmd.Flags().String("metrics.addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("control.addr", "127.0.0.1:9001", "control gRPC listen address")
	cmd.Flags().String("log.format", "json", "log format (json or text)")
	cmd.Flags().String("log.level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().Bool("auto-migrate", true, "run pending database migrations on startup")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, autoMigrate bool) error {
	logging.SetDefault("photostream", version, cfg.Log.Format, cfg.Log.Level)
	logger := slog.Default()

	logger.Info("starting photostream",
		slog.String("http_addr", cfg.HTTP.Addr),
		slog.String("version", version))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := store.Connect(ctx, cfg.Database.URL, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if autoMigrate {
		if err := migrateUp(cfg.Database.URL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("database schema up to date")
	}

	sessionCache, err := cache.New(ctx, cache.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() {
		if closeErr := sessionCache.Close(); closeErr != nil {
			logger.Warn("error closing redis client", slog.Any("error", closeErr))
		}
	}()

	mailer, err := mail.NewClient(mail.Options{
		Host:       cfg.SMTP.Host,
		User:       cfg.SMTP.User,
		Password:   cfg.SMTP.Password,
		From:       cfg.SMTP.From,
		SkipVerify: cfg.SMTP.SkipVerify,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to set up mail client: %w", err)
	}

	codec, err := auth.NewTokenCodec([]byte(cfg.Auth.Secret),
		auth.WithAccessTTL(cfg.Auth.AccessTTL),
		auth.WithRefreshTTL(cfg.Auth.RefreshTTL),
		auth.WithActionTTL(cfg.Auth.ActionTTL),
	)
	if err != nil {
		return fmt.Errorf("failed to set up token codec: %w", err)
	}

	// Start observability server if configured
	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer pingCancel()
			return pool.Ping(pingCtx) == nil
		})
		metrics = obsServer.Metrics()

		obsErrCh, err := obsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		logger.Info("observability server started", slog.String("addr", obsServer.Addr()))
	}

	users := authpg.NewUserRepository(pool)
	hasher := auth.NewArgon2idHasher()
	resolverOpts := []auth.ServiceOption{
		auth.WithCacheTTL(cfg.Auth.CacheTTL),
		auth.WithLogger(logger),
	}
	if metrics != nil {
		resolverOpts = append(resolverOpts, auth.WithCacheObserver(func(result string) {
			metrics.SessionCacheTotal.WithLabelValues(result).Inc()
		}))
	}
	resolver := auth.NewService(users, sessionCache, codec, hasher, resolverOpts...)
	accounts := auth.NewAccountService(users, codec, hasher, logger)

	apiServer := httpapi.NewServer(
		httpapi.Options{Addr: cfg.HTTP.Addr, BaseURL: cfg.HTTP.BaseURL},
		resolver, accounts, users, mailer, metrics, logger,
	)
	apiErrCh, err := apiServer.Start()
	if err != nil {
		return fmt.Errorf("failed to start api server: %w", err)
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	controlServer, err := control.NewServer("api", logger)
	if err != nil {
		return fmt.Errorf("failed to create control server: %w", err)
	}
	controlErrCh, err := controlServer.Start(cfg.Control.Addr)
	if err != nil {
		return fmt.Errorf("failed to start control server: %w", err)
	}
	go monitorServerErrors(ctx, cancel, controlErrCh, "control")

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("photostream ready", slog.String("addr", apiServer.Addr()))

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	// Graceful shutdown
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", slog.Any("error", err))
	}
	if err := controlServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping control server", slog.Any("error", err))
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", slog.Any("error", err))
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// migrateUp applies pending migrations and closes the migrator.
func migrateUp(databaseURL string) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", slog.Any("error", closeErr))
		}
	}()
	return migrator.Up()
}

// monitorServerErrors cancels the context when a server fails so the
// whole process shuts down. It exits when an error arrives, the
// channel closes, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				slog.String("server", serverName),
				slog.Any("error", err))
			cancel()
		}
	case <-ctx.Done():
	}
}
