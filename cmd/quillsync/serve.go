package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quillsync/quillsync/internal/sync"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync API server",
		Long: `Start the HTTP API that streams synchronization progress to clients,
optionally together with the background scheduler that visits every
configured tenant on an interval.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().Bool("scheduler", true, "run the background scheduler")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("scheduler.enabled", cmd.Flags().Lookup("scheduler"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openTenantStore()
	if err != nil {
		return fmt.Errorf("failed to open tenant database: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate tenant database: %w", err)
	}

	opts, err := serviceOptions()
	if err != nil {
		return err
	}
	svc := sync.NewService(store, opts)

	mux := http.NewServeMux()
	sync.NewHandler(svc).Register(mux)

	server := &http.Server{
		Addr:              viper.GetString("server.addr"),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if viper.GetBool("scheduler.enabled") {
		interval := viper.GetDuration("scheduler.interval")
		scheduler := sync.NewScheduler(svc, store, interval)
		go func() {
			if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Scheduler stopped", "error", err)
			}
		}()
		slog.Info("Scheduler running", "interval", interval)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("Listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
