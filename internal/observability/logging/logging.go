package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects where and how log lines are written.
type Options struct {
	// Component is attached to every line as "component".
	Component string
	Level     string
	// Format is "json" or "console".
	Format string
	Output string
	// Sample drops repeated lines after the first 100 per second.
	Sample bool
}

// ServiceOptions are the defaults for the HTTP service: sampled JSON on stdout.
// LOG_LEVEL and LOG_FORMAT override level and format.
func ServiceOptions() Options {
	return fromEnv(Options{Component: "charging-kpi", Format: "json", Output: "stdout", Sample: true})
}

// CLIOptions are the defaults for command line tools: unsampled console lines on
// stderr, so report output on stdout stays clean.
func CLIOptions() Options {
	return fromEnv(Options{Component: "kpireport", Level: "warn", Format: "console", Output: "stderr"})
}

// NewLogger builds the service logger.
func NewLogger() (*zap.Logger, error) {
	return New(ServiceOptions())
}

// NewCLILogger builds the command line logger.
func NewCLILogger() (*zap.Logger, error) {
	return New(CLIOptions())
}

// New builds a zap logger from opts.
func New(opts Options) (*zap.Logger, error) {
	output := opts.Output
	if output == "" {
		output = "stderr"
	}
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(opts.Level)),
		Encoding:         encoding(opts.Format),
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	if cfg.Encoding == "console" {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.DisableCaller = true
	}
	if opts.Sample {
		cfg.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	}
	if opts.Component != "" {
		cfg.InitialFields = map[string]any{"component": opts.Component}
	}
	return cfg.Build()
}

// OrNop returns logger, or a no-op logger when nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func fromEnv(opts Options) Options {
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		opts.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_FORMAT")); v != "" {
		opts.Format = v
	}
	return opts
}

func encoding(format string) string {
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		return "console"
	}
	return "json"
}

func parseLevel(value string) zapcore.Level {
	var level zapcore.Level
	if err := level.Set(strings.ToLower(strings.TrimSpace(value))); err != nil {
		return zapcore.InfoLevel
	}
	return level
}
