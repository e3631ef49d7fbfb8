package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/casualjim/parley"
)

const (
	envFanout      = "PARLEY_FANOUT"
	envMetricsAddr = "PARLEY_METRICS_ADDR"
	envLogLevel    = "PARLEY_LOG_LEVEL"
)

type config struct {
	Fanout      parley.FanoutKind
	MetricsAddr string
	LogLevel    slog.Level
}

// loadConfig reads the demo settings from the environment. A .env file in
// the working directory is loaded first.
func loadConfig() (config, error) {
	cfg := config{
		Fanout:   parley.DirectFanout,
		LogLevel: slog.LevelWarn,
	}

	if v := os.Getenv(envFanout); v != "" {
		kind, err := parley.ParseFanoutKind(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", envFanout, err)
		}
		cfg.Fanout = kind
	}
	if v := os.Getenv(envLogLevel); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return cfg, fmt.Errorf("%s: %w", envLogLevel, err)
		}
	}
	cfg.MetricsAddr = os.Getenv(envMetricsAddr)
	return cfg, nil
}
