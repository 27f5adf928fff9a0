package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/agenthands/tabgraph/internal/config"
	"github.com/agenthands/tabgraph/internal/server"
)

const shutdownTimeout = 30 * time.Second

var configPath string

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using defaults")
	}

	root := &cobra.Command{
		Use:           "tabgraph",
		Short:         "Ingest tabular files into a property graph and search them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml (default $CONFIG_PATH or config/config.toml)")
	root.AddCommand(serveCmd(), resumeCmd(), ingestCmd(), searchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config/config.toml"
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// bootstrap loads config, installs the logger and opens the app. The
// returned cleanup closes both.
func bootstrap(ctx context.Context) (*config.Config, *server.App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, closeLog := config.SetupLogger(cfg.Log)
	slog.SetDefault(logger)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		closeLog()
		return nil, nil, nil, err
	}
	cleanup := func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.Close(sctx); err != nil {
			logger.Error("shutdown incomplete", "error", err)
		}
		closeLog()
	}
	return cfg, app, cleanup, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and relaunch unfinished uploads",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, app, cleanup, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if _, err := app.Server.Uploads.ResumeAll(ctx); err != nil {
				slog.Error("failed to resume uploads", "error", err)
			}

			srv := &http.Server{
				Addr:              ":" + cfg.Server.Port,
				Handler:           app.Server.SetupRouter(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				slog.Info("starting server", "port", cfg.Server.Port)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				slog.Info("shutting down")
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(sctx); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
