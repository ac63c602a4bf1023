package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupLogger_StdoutOnly(t *testing.T) {
	logger, cleanup, err := setupLogger("", false)
	if err != nil {
		t.Fatalf("setupLogger returned error: %v", err)
	}
	defer cleanup()

	if logger == nil {
		t.Fatal("setupLogger returned nil logger")
	}
	logger.Println("test message")
}

func TestSetupLogger_WritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "docflow.log")

	logger, cleanup, err := setupLogger(logPath, false)
	if err != nil {
		t.Fatalf("setupLogger returned error: %v", err)
	}

	logger.Println("claimed document abc")
	cleanup()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "claimed document abc") {
		t.Errorf("log file does not contain the message, got: %s", content)
	}

	// cleanup must release the handle
	if err := os.Remove(logPath); err != nil {
		t.Errorf("failed to remove log file after cleanup: %v", err)
	}
}

func TestSetupLogger_CreatesParentDirectories(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "logs", "docflow.log")

	logger, cleanup, err := setupLogger(logPath, true)
	if err != nil {
		t.Fatalf("setupLogger returned error: %v", err)
	}
	defer cleanup()

	logger.Println("test message")
	if _, err := os.Stat(filepath.Dir(logPath)); os.IsNotExist(err) {
		t.Errorf("parent directory was not created")
	}
}

func TestSetupLogger_UnusablePathFallsBack(t *testing.T) {
	logger, cleanup, err := setupLogger("/dev/null/invalid/docflow.log", false)
	if err != nil {
		t.Fatalf("setupLogger should fall back to stdout, got error: %v", err)
	}
	defer cleanup()

	if logger == nil {
		t.Fatal("setupLogger returned nil logger")
	}
	logger.Println("test message")
}
