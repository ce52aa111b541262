// Package logging builds the run logger: everything a deployment prints is
// mirrored to stderr and appended to a timestamped log file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger that tees to stderr and a run log file under dir,
// plus a closer for the file. The file name carries the run start time so
// successive runs never clobber each other.
func New(dir string, level slog.Level) (*slog.Logger, io.Closer, error) {
	if dir == "" {
		return nil, nil, fmt.Errorf("log directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	file := &lumberjack.Logger{
		Filename:   filepath.Join(dir, fmt.Sprintf("deploy-%s.log", time.Now().Format("20060102-150405"))),
		MaxSize:    50, // MB
		MaxBackups: 3,
	}
	h := slog.NewTextHandler(io.MultiWriter(os.Stderr, file), &slog.HandlerOptions{Level: level})
	return slog.New(h), file, nil
}
