package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/MikeSquared-Agency/chatlog/internal/api"
	"github.com/MikeSquared-Agency/chatlog/internal/config"
	"github.com/MikeSquared-Agency/chatlog/internal/hermes"
	"github.com/MikeSquared-Agency/chatlog/internal/observe"
	"github.com/MikeSquared-Agency/chatlog/internal/processor"
)

func newServeCmd(env config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the NATS log subscriber",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), env, slog.Default())
		},
	}
	cmd.Flags().IntVar(&env.Port, "port", env.Port, "HTTP listen port")
	cmd.Flags().StringVar(&env.ProfilePath, "profile", env.ProfilePath, "YAML parser profile")
	cmd.Flags().StringVar(&env.Timezone, "timezone", env.Timezone, "IANA zone the timestamps are in (default: local)")
	return cmd
}

func runServe(ctx context.Context, env config.Config, logger *slog.Logger) error {
	logger.Info("chatlog starting", "port", env.Port, "version", version)

	cfg, err := config.LoadProfile(env.ProfilePath)
	if err != nil {
		return err
	}
	loc, err := config.Location(env.Timezone)
	if err != nil {
		return err
	}

	// Metrics
	shutdownMetrics, err := observe.InitProvider(ctx, version)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownMetrics(flushCtx)
	}()
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("create instruments: %w", err)
	}

	opts := []processor.Option{
		processor.WithLocation(loc),
		processor.WithMetrics(metrics),
	}

	// NATS/Hermes is optional; without it only the HTTP surface runs.
	var hermesClient *hermes.Client
	if env.NatsURL != "" {
		hermesClient, err = hermes.NewClient(ctx, env.NatsURL, env.NatsToken, logger)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer hermesClient.Close()
		logger.Info("NATS connected", "url", env.NatsURL)
		opts = append(opts, processor.WithPublisher(hermesClient))
	} else {
		logger.Warn("NATS_URL not set, running without the event bus")
	}

	proc := processor.New(cfg, logger, opts...)

	if hermesClient != nil {
		if err := hermesClient.Subscribe(hermes.SubjectLogSubmitted, proc.HandleLogSubmitted); err != nil {
			return fmt.Errorf("subscribe to %s: %w", hermes.SubjectLogSubmitted, err)
		}
	}

	if env.APIToken == "" {
		logger.Warn("CHATLOG_API_TOKEN not set, report API is unauthenticated")
	}
	srv := api.NewServer(env.Port, env.APIToken, proc, metrics, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("chatlog ready", "port", env.Port)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	logger.Info("chatlog stopped")
	return nil
}
