package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sallandpioneers/docflow/internal/config"
	"github.com/sallandpioneers/docflow/internal/worker"
)

func enqueueCmd() *cobra.Command {
	var (
		coordinator string
		filePath    string
		folderPath  string
		schemaName  string
	)

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Enqueue a document or a folder of documents",
		Long: `Enqueue work on the coordinator. Exactly one of --file or --folder
must be given. A folder is enqueued all-or-nothing.

Example:
  docflow enqueue --file ./invoices/inv-001.jpg --schema invoice
  docflow enqueue --folder ./invoices --schema invoice`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (filePath == "") == (folderPath == "") {
				return fmt.Errorf("exactly one of --file or --folder is required")
			}
			return runEnqueue(coordinator, filePath, folderPath, schemaName)
		},
	}

	cmd.Flags().StringVar(&coordinator, "coordinator", "", "Coordinator base URL (overrides config)")
	cmd.Flags().StringVar(&filePath, "file", "", "Document file path")
	cmd.Flags().StringVar(&folderPath, "folder", "", "Folder of documents")
	cmd.Flags().StringVar(&schemaName, "schema", "", "Schema name for extraction")

	return cmd
}

func runEnqueue(coordinator, filePath, folderPath, schemaName string) error {
	cfg, err := config.LoadIfPresent(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if coordinator == "" {
		coordinator = cfg.Worker.Coordinator
	}

	client := worker.NewClient(coordinator)
	ctx := context.Background()

	if filePath != "" {
		res, err := client.EnqueueFile(ctx, filePath, schemaName)
		if err != nil {
			return fmt.Errorf("enqueue failed: %w", err)
		}
		fmt.Printf("Enqueued %s as %s (position %d, schema %s)\n", filePath, res.DocumentID, res.QueuePosition, res.Schema)
		return nil
	}

	res, err := client.EnqueueFolder(ctx, folderPath, schemaName)
	if err != nil {
		return fmt.Errorf("folder enqueue failed: %w", err)
	}
	fmt.Printf("Enqueued %d documents from %s (schema %s)\n", res.Count, res.Folder, res.Schema)
	return nil
}
