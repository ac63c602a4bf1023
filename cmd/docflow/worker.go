package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sallandpioneers/docflow/internal/config"
	"github.com/sallandpioneers/docflow/internal/extractor"
	"github.com/sallandpioneers/docflow/internal/registry"
	"github.com/sallandpioneers/docflow/internal/retry"
	"github.com/sallandpioneers/docflow/internal/schema"
	"github.com/sallandpioneers/docflow/internal/store"
	"github.com/sallandpioneers/docflow/internal/worker"
)

func workerCmd() *cobra.Command {
	var (
		coordinator string
		name        string
		apiURL      string
		modelName   string
		apiKey      string
		workerID    string
		schemaDir   string
		redisAddr   string
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run an extraction worker",
		Long: `Run a worker that claims documents from the coordinator, extracts
structured data through a vision model and reports the results.

Pass --worker-id to resume an existing registration instead of creating
a new one.

Example:
  docflow worker --api-url https://api.openai.com/v1 --model gpt-4o
  docflow worker --worker-id 4f1c... --api-url https://api.openai.com/v1 --model gpt-4o`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				return fmt.Errorf("--api-url is required")
			}
			if modelName == "" {
				return fmt.Errorf("--model is required")
			}
			return runWorker(coordinator, name, apiURL, modelName, apiKey, workerID, schemaDir, redisAddr)
		},
	}

	cmd.Flags().StringVar(&coordinator, "coordinator", "", "Coordinator base URL (overrides config)")
	cmd.Flags().StringVar(&name, "name", "", "Worker name (default: worker-<random>)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "Vision API base URL")
	cmd.Flags().StringVar(&modelName, "model", "", "Model name for extraction")
	cmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("OPENAI_API_KEY"), "API key for the vision endpoint")
	cmd.Flags().StringVar(&workerID, "worker-id", "", "Resume an existing worker registration")
	cmd.Flags().StringVar(&schemaDir, "schema-dir", "", "Local schema directory fallback (overrides config)")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Registry store address for direct status writes on interrupt")

	return cmd
}

func runWorker(coordinator, name, apiURL, modelName, apiKey, workerID, schemaDir, redisAddr string) error {
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

	if coordinator == "" {
		coordinator = cfg.Worker.Coordinator
	}
	if name == "" {
		name = "worker-" + uuid.NewString()[:8]
	}
	if schemaDir == "" {
		schemaDir = cfg.Worker.SchemaDir
	}

	client := worker.NewClient(coordinator)

	retryOpts := retry.DefaultOptions(cfg.Retry)
	retryOpts.Classifier = retry.ClassifyTransient

	opts := worker.Options{
		Client: client,
		Extractor: extractor.New(extractor.Config{
			APIURL: apiURL,
			Model:  modelName,
			APIKey: apiKey,
		}),
		Resolver: schema.NewResolver(client, schemaDir),
		Logger:   logger,

		Name:      name,
		APIURL:    apiURL,
		Model:     modelName,
		APIKey:    apiKey,
		ProcessID: fmt.Sprintf("%d", os.Getpid()),
		WorkerID:  workerID,

		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
		IdleSleep:         cfg.Worker.IdleSleep,
		ErrorSleep:        cfg.Worker.ErrorSleep,
		Retry:             retryOpts,
	}

	// Optional second channel for the interrupt status write
	if redisAddr != "" {
		redisCfg := cfg.Redis
		redisCfg.Addr = redisAddr
		opts.StatusWriter = registry.New(store.NewClient(redisCfg), cfg.Queue.HeartbeatTimeout)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			logger.Println("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	return worker.New(opts).Run(ctx)
}
