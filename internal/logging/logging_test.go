package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(Config{
		Level:  "debug",
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	// An invalid level falls back to info instead of failing
	logger, err := NewLogger(Config{
		Level:  "not-a-level",
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}
}

func TestLoggerFileOutput(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	logger, err := NewLogger(Config{
		Level:  "info",
		Format: "json",
		Output: logPath,
	})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.WithJobID("job-1").Info("hello from test")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "hello from test") {
		t.Errorf("Log file should contain message, got: %s", content)
	}
	if !strings.Contains(content, "job-1") {
		t.Errorf("Log file should contain job id, got: %s", content)
	}
}

func TestNewDefaultLogger(t *testing.T) {
	logger, err := NewDefaultLogger()
	if err != nil {
		t.Fatalf("NewDefaultLogger failed: %v", err)
	}
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}
}
