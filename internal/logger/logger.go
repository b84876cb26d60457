package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Format "json" gives structured
// production output; "console" (or empty) gives the human-readable
// development encoder. Logs always go to stderr so that reports printed
// on stdout stay clean.
func NewLogger(level string, format string) (*zap.Logger, error) {
	logLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "json":
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	case "", "console":
		cfg = zap.NewDevelopmentConfig()
		// Skipped rows and retries warn routinely; keep traces for errors.
		cfg.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("unknown log format %q, want json or console", format)
	}

	cfg.Level = zap.NewAtomicLevelAt(logLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	return cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}
