package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/contre95/soullyrics/src/features/config"
)

// SetupLogger builds the slog logger backed by charmbracelet/log.
func SetupLogger(cfg *config.Manager) *slog.Logger {
	loggerCfg := cfg.Get().Logger

	var formatter log.Formatter
	switch loggerCfg.Format {
	case "json":
		formatter = log.JSONFormatter
	case "text":
		formatter = log.TextFormatter
	default:
		formatter = log.LogfmtFormatter
	}

	var out io.Writer = os.Stderr
	if !loggerCfg.Enabled {
		out = io.Discard
	}

	handler := log.NewWithOptions(out, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "Soullyrics",
		Formatter:       formatter,
		Level:           ParseLevel(loggerCfg.Level),
	})

	logger := slog.New(handler)
	logger.Info("Logger initialized", "time", time.Now().Format(time.RFC3339))
	return logger
}

// ParseLevel maps the config level name, defaulting to info.
func ParseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
