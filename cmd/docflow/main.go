package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	logFile    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "docflow",
		Short: "Distributed document processing over Redis and LLM workers",
		Long: `Docflow runs a coordinator and a fleet of extraction workers.

The coordinator keeps a durable document queue in Redis and hands out
work over HTTP. Workers claim documents one at a time, run them through
a vision model, and report structured results back.`,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file path (in addition to stdout)")

	rootCmd.AddCommand(coordinatorCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(enqueueCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("docflow v0.1.0")
		},
	}
}

// setupLogger builds a logger writing to stdout and, when logPath is
// set, to a file as well. An unusable log path falls back to
// stdout-only rather than failing the command.
func setupLogger(logPath string, verbose bool) (*log.Logger, func(), error) {
	writers := []io.Writer{os.Stdout}
	cleanup := func() {}

	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "warning: cannot create log directory for %s: %v\n", logPath, err)
		} else {
			f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: cannot open log file %s: %v\n", logPath, err)
			} else {
				writers = append(writers, f)
				cleanup = func() { f.Close() }
			}
		}
	}

	flags := log.LstdFlags
	if verbose {
		flags |= log.Lmicroseconds | log.Lshortfile
	}

	return log.New(io.MultiWriter(writers...), "", flags), cleanup, nil
}
