package config

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger writes human-readable lines to stderr and JSON lines to a rotated file.
func SetupLogger(cfg Config) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	var out io.Writer = console
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err == nil {
			file := &lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    50, // MB
				MaxBackups: 5,
				MaxAge:     30, // days
				Compress:   true,
			}
			out = zerolog.MultiLevelWriter(console, file)
		}
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}
