// Package util holds the setup steps shared by the commands.
package util

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // by design
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgx-contrib/pgxtrace"
	"github.com/spf13/cobra"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/config"
	"github.com/mpapenbr/racesim-engine/pkg/db/postgres"
	"github.com/mpapenbr/racesim-engine/pkg/utils"
)

// AddLogFlags registers the logging flags on cmd.
func AddLogFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.SQLLogLevel,
		"sql-log-level",
		"debug",
		"controls the log level for sql methods")
	cmd.Flags().StringVar(&config.LogFormat,
		"log-format",
		"text",
		"controls the log output format (json, text)")
	cmd.Flags().StringVar(&config.LogConfig,
		"log-config",
		"",
		"path to a yaml log config file (level, format, filter)")
}

// AddTelemetryFlags registers the telemetry and profiling flags on cmd.
func AddTelemetryFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data (use 'stdout' for console output)")
	cmd.Flags().IntVar(&config.ProfilingPort,
		"profiling-port",
		0,
		"port to use for providing profiling data")
}

func ParseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger creates the default logger from the log flags and the optional log config
// file. The returned logger is used for sql tracing.
func SetupLogger() (logger, sqlLogger *log.Logger, err error) {
	level, format, filter := config.LogLevel, config.LogFormat, ""
	if config.LogConfig != "" {
		fc, err := log.LoadFileConfig(config.LogConfig)
		if err != nil {
			return nil, nil, err
		}
		if fc.Level != "" {
			level = fc.Level
		}
		if fc.Format != "" {
			format = fc.Format
		}
		filter = fc.Filter
	}
	filterOpt, err := log.WithFilter(filter)
	if err != nil {
		return nil, nil, err
	}
	switch format {
	case "json":
		logger = log.New(
			os.Stderr,
			ParseLogLevel(level, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1),
			filterOpt)
		sqlLogger = log.New(
			os.Stderr,
			ParseLogLevel(config.SQLLogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(
			os.Stderr,
			ParseLogLevel(level, log.DebugLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1),
			filterOpt)
		sqlLogger = log.DevLogger(
			os.Stderr,
			ParseLogLevel(config.SQLLogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	log.ResetDefault(logger)
	return logger, sqlLogger, nil
}

// SetupTelemetry starts telemetry and profiling if enabled. The returned function shuts
// telemetry down and is never nil.
func SetupTelemetry(ctx context.Context) (shutdown func()) {
	if config.ProfilingPort > 0 {
		log.Info("Starting profiling server on port", log.Int("port", config.ProfilingPort))
		go func() {
			//nolint:gosec // by design
			err := http.ListenAndServe(
				fmt.Sprintf("localhost:%d", config.ProfilingPort),
				nil)
			if err != nil {
				log.Error("Profiling server stopped", log.ErrorField(err))
			}
		}()
	}
	if !config.EnableTelemetry {
		return func() {}
	}
	log.Info("Enabling telemetry")
	telemetry, err := config.SetupTelemetry(ctx)
	if err != nil {
		log.Warn("Could not setup telemetry", log.ErrorField(err))
		return func() {}
	}
	err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
	if err != nil {
		log.Warn("Could not start runtime metrics", log.ErrorField(err))
	}
	return telemetry.Shutdown
}

// InitPool connects to the database with query logging and, if telemetry is enabled,
// otel tracing.
func InitPool(ctx context.Context, sqlLogger *log.Logger) (*pgxpool.Pool, error) {
	tracers := pgxtrace.CompositeQueryTracer{
		postgres.NewMyTracer(sqlLogger, log.DebugLevel),
	}
	if config.EnableTelemetry {
		tracers = append(tracers, postgres.NewOtlpTracer())
	}
	return postgres.InitWithURL(ctx, config.DB, postgres.WithTracer(tracers))
}

// WaitForRequiredServices blocks until the database and the NATS server (if configured)
// accept connections.
func WaitForRequiredServices(ctx context.Context, withDB bool) error {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}

	var addrs []string
	if withDB {
		if addr := utils.ExtractFromDBURL(config.DB); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	if config.NatsURL != "" {
		if addr := utils.ExtractFromNatsURL(config.NatsURL); addr != "" {
			addrs = append(addrs, addr)
		}
	}

	wg := sync.WaitGroup{}
	errs := make(chan error, len(addrs))
	for _, addr := range addrs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := utils.WaitForTCP(ctx, addr, timeout); err != nil {
				errs <- fmt.Errorf("service at %s not ready: %w", addr, err)
			}
		}()
	}
	log.Debug("Waiting for connection checks to return")
	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return err
	}
	log.Debug("Required services are available")
	return nil
}

// ParseDuration parses value and falls back to def with a warning.
func ParseDuration(name, value string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn("Invalid duration value, using default",
			log.String("flag", name), log.Duration("default", def), log.ErrorField(err))
		return def
	}
	return d
}
