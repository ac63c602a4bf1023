package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sallandpioneers/docflow/internal/config"
	"github.com/sallandpioneers/docflow/internal/worker"
)

func statusCmd() *cobra.Command {
	var coordinator string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue depths and worker status",
		Long: `Show the coordinator's queue counters and the registered workers.

Example:
  docflow status --coordinator http://localhost:8000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(coordinator)
		},
	}

	cmd.Flags().StringVar(&coordinator, "coordinator", "", "Coordinator base URL (overrides config)")

	return cmd
}

func showStatus(coordinator string) error {
	cfg, err := config.LoadIfPresent(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if coordinator == "" {
		coordinator = cfg.Worker.Coordinator
	}

	client := worker.NewClient(coordinator)
	status, err := client.SystemStatus(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get system status: %w", err)
	}

	fmt.Printf("Queue: %d pending, %d processing, %d processed, %d errors\n",
		status.Queue.Pending, status.Queue.Processing, status.Queue.Processed, status.Queue.Errors)
	fmt.Println()

	if len(status.Workers) == 0 {
		fmt.Println("No workers registered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tMODEL\tPROCESSED\tERRORS\tSTALE")
	fmt.Fprintln(w, "--\t----\t------\t-----\t---------\t------\t-----")

	for _, ws := range status.Workers {
		id := ws.ID
		if len(id) > 8 {
			id = id[:8]
		}
		stale := ""
		if ws.Stale {
			stale = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			id, ws.Name, ws.Status, ws.Model, ws.ProcessedDocuments, ws.Errors, stale)
	}

	w.Flush()
	return nil
}
