package config

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds a text slog logger writing to stdout and a rotated file.
// An empty LogPath logs to stdout only.
func NewLogger(c Config) *slog.Logger {
	var w io.Writer = os.Stdout
	if p := strings.TrimSpace(c.LogPath); p != "" {
		if filepath.Ext(p) == "" {
			p = filepath.Join(p, "labeld.log")
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
		} else {
			w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
				Filename:   p,
				MaxSize:    100, // MB
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			})
		}
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}))

	// chi's request logger writes through the standard log package
	log.SetOutput(w)
	log.SetFlags(log.LstdFlags)
	return logger
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}
