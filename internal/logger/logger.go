// Package logger builds the zap logger shared by the server and the CLI.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Level   string // debug | info | warn | error, empty means info
	Format  string // json | console, empty means json
	Service string
	// Output is a zap sink path. json defaults to stdout, console to stderr
	// so CLI output stays clean.
	Output string
}

func New(opts Options) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var cfg zap.Config
	output := opts.Output
	switch opts.Format {
	case "", "json":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if output == "" {
			output = "stdout"
		}
	case "console":
		cfg = zap.NewDevelopmentConfig()
		if output == "" {
			output = "stderr"
		}
	default:
		return nil, fmt.Errorf("log format %q: want json or console", opts.Format)
	}
	cfg.Level = level
	cfg.OutputPaths = []string{output}
	cfg.ErrorOutputPaths = []string{"stderr"}

	fields := map[string]any{}
	if opts.Service != "" {
		fields["service_name"] = opts.Service
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		fields["hostname"] = hostname
	}
	cfg.InitialFields = fields

	return cfg.Build()
}
