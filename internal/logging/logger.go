package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/agenthands/contactsync/internal/config"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds a logger from the [logging] section writing to stderr. When a
// log file is configured, JSON lines are also written to it with size-based
// rotation; the returned closer releases the file.
func New(cfg config.LoggingConfig) (zerolog.Logger, io.Closer) {
	if cfg.File == "" {
		return NewWithWriter(cfg, os.Stderr), nopCloser{}
	}

	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	logger := zerolog.New(zerolog.MultiLevelWriter(consoleWriter(cfg, os.Stderr), file)).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
	return logger, file
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func consoleWriter(cfg config.LoggingConfig, w io.Writer) io.Writer {
	switch strings.ToLower(cfg.Format) {
	case "console", "pretty", "":
		return zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.Kitchen,
			NoColor:    os.Getenv("NO_COLOR") != "",
		}
	}
	return w
}

// NewWithWriter builds a logger writing to w.
func NewWithWriter(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	level := parseLevel(cfg.Level)

	logger := zerolog.New(consoleWriter(cfg, w)).
		Level(level).
		With().
		Timestamp().
		Logger()

	if level <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}
	return logger
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "warning":
		return zerolog.WarnLevel
	case "none", "off":
		return zerolog.Disabled
	case "":
		return zerolog.InfoLevel
	}
	if l, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
		return l
	}
	return zerolog.InfoLevel
}
