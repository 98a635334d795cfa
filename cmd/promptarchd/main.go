// promptarchd serves the tool-selection and plan-synthesis pipeline over
// HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/cexll/promptarch/pkg/architect"
	"github.com/cexll/promptarch/pkg/catalog"
	"github.com/cexll/promptarch/pkg/config"
	"github.com/cexll/promptarch/pkg/gate"
	"github.com/cexll/promptarch/pkg/model"
	"github.com/cexll/promptarch/pkg/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "promptarchd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	listen := flag.String("listen", "", "listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Endpoint != "" {
		shutdown, err := setupTracing(ctx, cfg.Tracing)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	cat, err := catalog.Load()
	if err != nil {
		return err
	}
	logger.Info("catalog loaded", "tools", cat.Len())

	gateway := model.NewGateway(
		model.WithAttemptTimeout(cfg.Gateway.AttemptTimeout),
		model.WithLogger(logger),
	)
	if err := registerRoutes(ctx, gateway, cfg, logger); err != nil {
		return err
	}
	gateway.SetTunables(cfg.Gateway.AttemptTimeout, stageTemperatures(cfg.Gateway.Temperatures))

	admission := gate.New(
		gate.WithLimits(cfg.Gate.Limit, cfg.Gate.Window),
		gate.WithMaxClients(cfg.Gate.MaxClients),
	)

	sessions := architect.NewSessionStore(cfg.Session.TTL)
	defer sessions.Close()

	orchestrator := architect.New(cat, admission, gateway, sessions, architect.WithLogger(logger))
	handler := server.New(orchestrator, server.WithLogger(logger)).Router()

	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath,
			config.OnChange(func(next config.Config) {
				admission.SetLimits(next.Gate.Limit, next.Gate.Window)
				gateway.SetTunables(next.Gateway.AttemptTimeout, stageTemperatures(next.Gateway.Temperatures))
				logger.Info("config reloaded",
					"gate_limit", next.Gate.Limit,
					"gate_window", next.Gate.Window.String(),
					"attempt_timeout", next.Gateway.AttemptTimeout.String(),
				)
			}),
			config.OnError(func(err error) {
				logger.Error("config reload failed", "error", err)
			}),
		)
		if err != nil {
			return err
		}
		if _, err := watcher.Start(); err != nil {
			return err
		}
		defer watcher.Close()
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func setupTracing(ctx context.Context, cfg config.TracingConfig) (func(), error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}, nil
}

func stageTemperatures(temps map[string]float64) map[model.Stage]float64 {
	out := make(map[model.Stage]float64, len(temps))
	for name, temp := range temps {
		out[model.Stage(name)] = temp
	}
	return out
}

// registerRoutes builds every provider that has credentials and wires the
// configured fallback routes. A stage whose route resolves to zero
// providers is a startup error: better to fail fast than 502 every call.
func registerRoutes(ctx context.Context, gateway *model.Gateway, cfg config.Config, logger *slog.Logger) error {
	providers := buildProviders(ctx, cfg.Providers, logger)
	if len(providers) == 0 {
		return errors.New("no model providers configured; set at least one API key")
	}

	stages := map[string]model.Stage{
		"chat":      model.StageChat,
		"selection": model.StageSelection,
		"planning":  model.StagePlanning,
	}
	for name, stage := range stages {
		route := cfg.Gateway.Routes[name]
		wired := 0
		for _, providerName := range route {
			provider, ok := providers[providerName]
			if !ok {
				logger.Warn("provider in route has no credentials, skipping",
					"stage", name, "provider", providerName)
				continue
			}
			gateway.Register(stage, provider)
			wired++
		}
		if wired == 0 {
			return fmt.Errorf("stage %q has no usable providers in its route", name)
		}
	}
	return nil
}

func buildProviders(ctx context.Context, cfg config.ProvidersConfig, logger *slog.Logger) map[string]model.Provider {
	providers := make(map[string]model.Provider)
	add := func(name string, p model.Provider, err error) {
		if err != nil {
			logger.Warn("provider unavailable", "provider", name, "error", err)
			return
		}
		providers[name] = p
	}

	if cfg.Anthropic.APIKey != "" {
		p, err := model.NewAnthropic(model.AnthropicConfig{APIKey: cfg.Anthropic.APIKey, Model: cfg.Anthropic.Model})
		add("anthropic", p, err)
	}
	if cfg.OpenAI.APIKey != "" {
		p, err := model.NewOpenAICompat(model.OpenAICompatConfig{APIKey: cfg.OpenAI.APIKey, Model: cfg.OpenAI.Model})
		add("openai", p, err)
	}
	if cfg.Groq.APIKey != "" {
		p, err := model.NewGroq(cfg.Groq.APIKey, cfg.Groq.Model)
		add("groq", p, err)
	}
	if cfg.OpenRouter.APIKey != "" {
		p, err := model.NewOpenRouter(cfg.OpenRouter.APIKey, cfg.OpenRouter.Model)
		add("openrouter", p, err)
	}
	if cfg.Google.APIKey != "" {
		p, err := model.NewGoogle(ctx, model.GoogleConfig{APIKey: cfg.Google.APIKey, Model: cfg.Google.Model})
		add("google", p, err)
	}
	return providers
}
