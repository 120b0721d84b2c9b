package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/auditworks/auditapi/internal/app"
)

func main() {
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cmd := &cli.Command{
		Name:  "auditapi",
		Usage: "Compliance audit tracking API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: ":8080",
				Usage: "HTTP listen address",
			},
			&cli.StringFlag{
				Name:    "db-path",
				Value:   "./auditapi.sqlite",
				Sources: cli.EnvVars("AUDITAPI_DB_PATH"),
				Usage:   "SQLite file path",
			},
			&cli.StringFlag{
				Name:    "bootstrap-api-key",
				Sources: cli.EnvVars("AUDITAPI_BOOTSTRAP_API_KEY"),
				Usage:   "Optional API key to upsert at startup",
			},
			&cli.StringFlag{
				Name:    "bootstrap-actor-id",
				Value:   "bootstrap-owner",
				Sources: cli.EnvVars("AUDITAPI_BOOTSTRAP_ACTOR_ID"),
				Usage:   "Owner actor provisioned with the bootstrap API key",
			},
			&cli.StringFlag{
				Name:    "bootstrap-actor-name",
				Value:   "Bootstrap Owner",
				Sources: cli.EnvVars("AUDITAPI_BOOTSTRAP_ACTOR_NAME"),
				Usage:   "Display name for the bootstrap actor",
			},
			&cli.StringFlag{
				Name:    "bootstrap-company-id",
				Sources: cli.EnvVars("AUDITAPI_BOOTSTRAP_COMPANY_ID"),
				Usage:   "Optional company provisioned for the bootstrap actor",
			},
			&cli.StringFlag{
				Name:    "bootstrap-company-name",
				Sources: cli.EnvVars("AUDITAPI_BOOTSTRAP_COMPANY_NAME"),
				Usage:   "Display name for the bootstrap company",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars("AUDITAPI_WEBHOOK_URL"),
				Usage:   "Lifecycle event webhook target URL (enables push delivery)",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars("AUDITAPI_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for outbound webhook requests",
			},
			&cli.FloatFlag{
				Name:    "rec-high-threshold",
				Sources: cli.EnvVars("AUDITAPI_REC_HIGH_THRESHOLD"),
				Usage:   "Scores below this percentage get high priority recommendations (default 60)",
			},
			&cli.FloatFlag{
				Name:    "rec-medium-threshold",
				Sources: cli.EnvVars("AUDITAPI_REC_MEDIUM_THRESHOLD"),
				Usage:   "Scores below this percentage get medium priority recommendations (default 75)",
			},
			&cli.FloatFlag{
				Name:    "rec-low-threshold",
				Sources: cli.EnvVars("AUDITAPI_REC_LOW_THRESHOLD"),
				Usage:   "Scores below this percentage get low priority recommendations (default 85)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := app.Config{
				Addr:                 c.String("addr"),
				DBPath:               c.String("db-path"),
				BootstrapAPIKey:      c.String("bootstrap-api-key"),
				BootstrapActorID:     c.String("bootstrap-actor-id"),
				BootstrapActorName:   c.String("bootstrap-actor-name"),
				BootstrapCompanyID:   c.String("bootstrap-company-id"),
				BootstrapCompanyName: c.String("bootstrap-company-name"),
				WebhookURL:           c.String("webhook-url"),
				WebhookSecret:        c.String("webhook-secret"),
				RecHighThreshold:     c.Float("rec-high-threshold"),
				RecMediumThreshold:   c.Float("rec-medium-threshold"),
				RecLowThreshold:      c.Float("rec-low-threshold"),
			}

			server, closer, err := app.NewServer(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}
			defer func() {
				if closeErr := closer.Close(); closeErr != nil {
					log.Warn("close resources", zap.Error(closeErr))
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				log.Info("listening", zap.String("addr", cfg.Addr))
				errCh <- server.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case sig := <-sigCh:
				log.Info("received signal", zap.String("signal", sig.String()))
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal("run", zap.Error(err))
	}
}
