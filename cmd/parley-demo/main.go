// Command parley-demo runs the broker through its basic scenarios and prints
// a report. Settings come from the environment or a .env file:
//
//	PARLEY_FANOUT        direct, stream or nats
//	NATS_URL             server for the nats fan-out
//	PARLEY_METRICS_ADDR  serve Prometheus metrics on this address
//	PARLEY_LOG_LEVEL     debug, info, warn or error
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/casualjim/parley"
	"github.com/casualjim/parley/lifecycle"
	"github.com/casualjim/parley/metrics"
	"github.com/casualjim/parley/pkg/natsx"
	"github.com/casualjim/parley/pkg/slogx"
	"github.com/fogfish/opts"
	"github.com/phsym/zeroslog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func setupLogging(level slog.Level) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log := zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: level}),
	))
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		setupLogging(slog.LevelError)
		slog.Error("invalid configuration", slogx.Error(err))
		os.Exit(2)
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg))
}

func run(ctx context.Context, cfg config) int {
	log := slog.Default().With(slogx.LoggerName("parley-demo"))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.MustNew(reg, "parley")

	options := []opts.Option[parley.Options]{
		parley.WithFanout(cfg.Fanout),
		parley.WithMetrics(m),
		parley.WithLogger(log),
	}
	if cfg.Fanout == parley.NATSFanout {
		nc, err := natsx.NewClient()
		if err != nil {
			log.Error("failed to connect to nats", slog.String("url", natsx.URL()), slogx.Error(err))
			return 1
		}
		defer nc.Drain() //nolint:errcheck
		options = append(options, parley.WithNATS(nc, "parley.demo"))
	}

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server stopped", slogx.Error(err))
			}
		}()
		defer srv.Close()
		log.Info("serving metrics", slog.String("addr", cfg.MetricsAddr))
	}

	host := lifecycle.New(ctx, lifecycle.WithLogger(log))
	if err := host.Init(ctx); err != nil {
		log.Error("failed to initialize host", slogx.Error(err))
		return 1
	}

	outcomes := runScenarios(ctx, host, options)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := host.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", slogx.Error(err))
	}

	if printReport(os.Stdout, cfg.Fanout, outcomes) > 0 {
		return 1
	}
	return 0
}
