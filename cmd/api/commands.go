package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/2gPigeon/jig-intern-public/pkg/config"
	"github.com/2gPigeon/jig-intern-public/pkg/interceptors"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and import workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Observability)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := InitDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", slog.Any("error", err))
		return err
	}

	// Close whatever a previous process left in processing before serving.
	deps.Scheduler.SweepStaleJobs(ctx)
	if err := deps.Scheduler.Start(); err != nil {
		deps.Cleanup(context.Background())
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if cfg.Profiling.Enabled {
		go serveProfiling(cfg.Profiling.Port, logger)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error("http server failed", slog.Any("error", serveErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown incomplete", slog.Any("error", err))
	}
	<-deps.Scheduler.Stop().Done()
	deps.Cleanup(shutdownCtx)
	return serveErr
}

func serveProfiling(port int, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	addr := fmt.Sprintf("localhost:%d", port)
	logger.Info("pprof listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("pprof server failed", slog.Any("error", err))
	}
}

func newImportCommand() *cobra.Command {
	var userID string
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a statement file for a user and wait for the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runImport(cmd, cfg, userID, file)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "owner user ID (required)")
	cmd.Flags().StringVar(&file, "file", "", "CSV or XLSX statement (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runImport(cmd *cobra.Command, cfg *config.Config, userID, file string) error {
	logger := newLogger(cfg.Observability)
	ctx := cmd.Context()

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}

	deps, err := InitDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Cleanup(context.Background())

	job, err := deps.ImportService.Import(ctx, userID, filepath.Base(file), data)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "job %s: %s imported=%d skipped=%d unresolved=%d\n",
		job.JobID, job.Status, job.ImportedCount, job.SkippedCount, job.UnresolvedCount)
	return nil
}

func newTokenCommand() *cobra.Command {
	var userID string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			auth, err := interceptors.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.SessionSecret, newLogger(cfg.Observability))
			if err != nil {
				return err
			}
			token, err := auth.IssueToken(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user ID to embed as subject (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
