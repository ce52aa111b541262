package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesRunLogFile(t *testing.T) {
	dir := t.TempDir()
	logger, closer, err := New(dir, slog.LevelInfo)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("deployment started", "host", "203.0.113.5")
	if err := closer.Close(); err != nil {
		t.Fatalf("close log file: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read log dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one log file, found %d", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "deployment started") {
		t.Fatalf("log file missing entry: %q", string(data))
	}
}

func TestNewRejectsEmptyDir(t *testing.T) {
	if _, _, err := New("", slog.LevelInfo); err == nil {
		t.Fatalf("expected error for empty log directory")
	}
}
