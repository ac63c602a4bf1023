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

	"github.com/spf13/cobra"

	"github.com/sallandpioneers/docflow/internal/api"
	"github.com/sallandpioneers/docflow/internal/config"
	"github.com/sallandpioneers/docflow/internal/queue"
	"github.com/sallandpioneers/docflow/internal/registry"
	"github.com/sallandpioneers/docflow/internal/results"
	"github.com/sallandpioneers/docflow/internal/schema"
	"github.com/sallandpioneers/docflow/internal/store"
)

func coordinatorCmd() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "coordinator",
		Short: "Run the coordinator HTTP server",
		Long: `Run the coordinator: the durable queue, worker registry, schema
registry and result store behind one HTTP API.

Example:
  docflow coordinator --listen :8000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoordinator(listenAddr)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides config)")

	return cmd
}

func runCoordinator(listenAddr string) error {
	cfg, err := config.LoadIfPresent(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logFilePath := logFile
	if logFilePath == "" {
		logFilePath = cfg.LogFile
	}
	logger, cleanup, err := setupLogger(logFilePath, verbose)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer cleanup()

	if listenAddr == "" {
		listenAddr = cfg.ListenAddr
	}

	rdb := store.NewClient(cfg.Redis)
	if err := store.Ping(context.Background(), rdb); err != nil {
		return fmt.Errorf("redis is unreachable at %s: %w", cfg.Redis.Addr, err)
	}

	var resultStore results.Store
	if cfg.Postgres.URI != "" {
		pg, err := results.OpenPostgres(cfg.Postgres.URI)
		if err != nil {
			return fmt.Errorf("failed to open result store: %w", err)
		}
		if err := pg.EnsureSchema(context.Background()); err != nil {
			return fmt.Errorf("failed to prepare result tables: %w", err)
		}
		resultStore = pg
	} else {
		logger.Println("POSTGRES_URI not set, keeping results in memory")
		resultStore = results.NewMemoryStore()
	}
	defer resultStore.Close()

	server := api.NewServer(
		queue.NewStore(rdb),
		registry.New(rdb, cfg.Queue.HeartbeatTimeout),
		schema.NewRegistry(rdb),
		resultStore,
		cfg.Queue.ClaimTimeout,
		logger,
	)

	httpSrv := &http.Server{
		Addr:              listenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Println("Received shutdown signal")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			logger.Printf("Shutdown failed: %v", err)
		}
	}()

	logger.Printf("Coordinator listening on %s", listenAddr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Println("Coordinator stopped")
	return nil
}
