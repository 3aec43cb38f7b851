package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/cerebot/internal/channels"
	"github.com/haasonsaas/cerebot/internal/channels/discord"
	"github.com/haasonsaas/cerebot/internal/config"
	"github.com/haasonsaas/cerebot/internal/observability"
)

// runServe loads the configuration, wires logging, metrics and tracing, and
// runs the Discord bridge until a signal arrives or reconnecting gives up.
func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, closeLog := observability.NewLogger(logConfig(cfg.Logging))
	defer func() { _ = closeLog() }()
	if debug {
		observability.SetDebug(true)
	}
	slog.SetDefault(logger)

	logger.Info("starting cerebot",
		"version", version,
		"commit", commit,
		"config", configPath,
		"debug", observability.DebugEnabled(),
		"fake_connect", cfg.Discord.FakeConnect)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	var tracer *observability.Tracer
	if cfg.Tracing.Enabled {
		var shutdownTracer func(context.Context) error
		tracer, shutdownTracer = observability.NewTracer(traceConfig(cfg.Tracing))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(shutdownCtx); err != nil {
				logger.Warn("tracer shutdown failed", "error", err)
			}
		}()
	}

	manager, err := discord.NewManager(discordConfig(cfg, logger, metrics, tracer))
	if err != nil {
		return fmt.Errorf("failed to initialize discord bridge: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.Enabled {
		server, err := startHTTPServer(cfg.Metrics, registry, manager, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http server shutdown failed", "error", err)
			}
		}()
	}

	go func() {
		err := config.Watch(ctx, configPath, logger, func(updated *config.Config) {
			manager.UpdateConfig(updated.Discord.Admins, updated.Discord.CommandPeriod, updated.Discord.CommandLimit)
		})
		if err != nil {
			logger.Warn("config watch disabled", "error", err)
		}
	}()

	err = manager.Run(ctx)
	manager.Disconnect(true)

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("discord bridge stopped: %w", err)
	}
	logger.Info("cerebot stopped")
	return nil
}

// runConfigValidate loads a configuration file and reports the result.
func runConfigValidate(out io.Writer, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	mode := "live"
	if cfg.Discord.FakeConnect {
		mode = "fake connect"
	}
	_, err = fmt.Fprintf(out, "%s: ok (%s, %d admins, %d commands per %s)\n",
		configPath, mode, len(cfg.Discord.Admins), cfg.Discord.CommandLimit, cfg.Discord.CommandPeriod)
	return err
}

func logConfig(cfg config.LoggingConfig) observability.LogConfig {
	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}
	return observability.LogConfig{
		Level:          cfg.Level,
		Format:         cfg.Format,
		Output:         out,
		File:           cfg.File,
		MaxSizeMB:      cfg.MaxSizeMB,
		MaxBackups:     cfg.MaxBackups,
		AddSource:      cfg.AddSource,
		RedactPatterns: cfg.RedactPatterns,
	}
}

func traceConfig(cfg config.TracingConfig) observability.TraceConfig {
	serviceVersion := cfg.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}
	return observability.TraceConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: serviceVersion,
		Endpoint:       cfg.Endpoint,
		SamplingRate:   cfg.SamplingRate,
		Attributes:     cfg.Attributes,
		EnableInsecure: cfg.Insecure,
	}
}

func discordConfig(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, tracer *observability.Tracer) discord.Config {
	jitter := cfg.Reconnect.Jitter == nil || *cfg.Reconnect.Jitter
	return discord.Config{
		Token:         cfg.Discord.Token,
		Admins:        cfg.Discord.Admins,
		CommandPeriod: cfg.Discord.CommandPeriod,
		CommandLimit:  cfg.Discord.CommandLimit,
		FakeConnect:   cfg.Discord.FakeConnect,
		BotRole:       cfg.Discord.BotRole,
		PingInterval:  cfg.Discord.PingInterval,
		CommandPrefix: cfg.Discord.CommandPrefix,
		SingleUser:    cfg.Discord.SingleUser,
		Version:       version,
		Reconnect: channels.ReconnectConfig{
			MaxAttempts:  cfg.Reconnect.MaxAttempts,
			InitialDelay: cfg.Reconnect.InitialDelay,
			MaxDelay:     cfg.Reconnect.MaxDelay,
			Factor:       2,
			Jitter:       jitter,
			StableAfter:  cfg.Reconnect.StableAfter,
		},
		Logger:  logger,
		Metrics: metrics,
		Tracer:  tracer,
	}
}

// startHTTPServer serves Prometheus metrics and a JSON health endpoint.
func startHTTPServer(cfg config.MetricsConfig, registry *prometheus.Registry, bridge channels.Bridge, logger *slog.Logger) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	mux.HandleFunc("/healthz", healthHandler(bridge))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("http listen: %w", err)
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	logger.Info("starting http server", "addr", listener.Addr().String(), "metrics_path", cfg.Path)
	return server, nil
}

// healthHandler reports the bridge connection status. It answers 503 while
// the bridge is not connected.
func healthHandler(bridge channels.Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := bridge.Status()
		w.Header().Set("Content-Type", "application/json")
		if !status.Connected() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	}
}
