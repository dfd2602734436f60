package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	err := Init(Config{Level: "info", Format: "json", Output: "file", FilePath: path})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	Info(context.Background(), "file output works", "service", "notifier")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file written: %v", err)
	}
	if !strings.Contains(string(data), "file output works") {
		t.Errorf("Log file missing message, got: %s", data)
	}
	if !strings.Contains(string(data), `"service"`) {
		t.Errorf("Expected structured attributes, got: %s", data)
	}
}

func TestInitLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := Init(Config{Level: "error", Format: "json", Output: "file", FilePath: path}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	ctx := context.Background()
	Debug(ctx, "suppressed debug line")
	Info(ctx, "suppressed info line")
	Error(ctx, "emitted error line")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file written: %v", err)
	}
	if strings.Contains(string(data), "suppressed") {
		t.Errorf("Lines below the configured level must be filtered, got: %s", data)
	}
	if !strings.Contains(string(data), "emitted error line") {
		t.Errorf("Error line missing, got: %s", data)
	}
}

func TestInitUnknownLevelDefaultsToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := Init(Config{Level: "verbose", Format: "text", Output: "file", FilePath: path}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	ctx := context.Background()
	Debug(ctx, "debug below default level")
	Info(ctx, "info at default level")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file written: %v", err)
	}
	if strings.Contains(string(data), "debug below default level") {
		t.Errorf("Unknown level must fall back to info, got: %s", data)
	}
	if !strings.Contains(string(data), "info at default level") {
		t.Errorf("Info line missing, got: %s", data)
	}
}
