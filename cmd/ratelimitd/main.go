// Command ratelimitd runs the distributed rate-limit decision service:
// it loads configuration, constructs the Redis-backed Decision Engine, and
// serves the HTTP decision surface (spec §6, §4.5).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	decider "github.com/ratelimitd/decider"
	"github.com/ratelimitd/decider/httpapi"
	"github.com/ratelimitd/decider/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ratelimitd",
		Short: "Distributed rate-limit decision service",
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP decision surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("ratelimitd: load config: %w", err)
	}

	logger, err := newLogger(cfg.Environment)
	if err != nil {
		return fmt.Errorf("ratelimitd: build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("ratelimitd: parse redis_url: %w", err)
	}
	redisClient := redis.NewClient(opts)
	defer redisClient.Close()

	engine := decider.New(
		decider.WithRedis(redisClient),
		decider.WithKeyPrefix(cfg.KeyPrefix),
		decider.WithFailOpen(cfg.FailOpen),
		decider.WithLogger(logger),
	)
	defer engine.Close()

	handler := httpapi.Handler(engine, httpapi.Config{
		AppName:     cfg.AppName,
		Environment: cfg.Environment,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr), zap.String("app", cfg.AppName))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ratelimitd: shutdown: %w", err)
		}
	}
	return nil
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "prod" || environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
