package model

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Stage identifies which pipeline stage a generation request serves. Each
// stage owns its own provider route and temperature default.
type Stage string

const (
	StageChat      Stage = "chat"
	StageSelection Stage = "selection"
	StagePlanning  Stage = "planning"
)

// DefaultAttemptTimeout bounds a single provider call.
const DefaultAttemptTimeout = 30 * time.Second

// DefaultTemperatures are the stage defaults: near-deterministic for
// selection scoring, slightly warmer for plan drafting, warmer still for
// conversation. All are tunable via SetTunables.
var DefaultTemperatures = map[Stage]float64{
	StageSelection: 0.1,
	StagePlanning:  0.2,
	StageChat:      0.3,
}

// Gateway routes generation requests to an ordered provider list per stage.
type Gateway struct {
	mu      sync.RWMutex
	routes  map[Stage][]Provider
	timeout time.Duration
	temps   map[Stage]float64

	logger *slog.Logger
	tracer trace.Tracer
}

// GatewayOption configures a Gateway at construction time.
type GatewayOption func(*Gateway)

// WithAttemptTimeout overrides the per-attempt timeout.
func WithAttemptTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithTemperature overrides one stage's temperature default.
func WithTemperature(stage Stage, temp float64) GatewayOption {
	return func(g *Gateway) { g.temps[stage] = temp }
}

// NewGateway builds an empty gateway; stages are populated via Register.
func NewGateway(opts ...GatewayOption) *Gateway {
	g := &Gateway{
		routes:  make(map[Stage][]Provider),
		timeout: DefaultAttemptTimeout,
		temps:   make(map[Stage]float64, len(DefaultTemperatures)),
		logger:  slog.Default(),
		tracer:  otel.Tracer("promptarch/model"),
	}
	for stage, temp := range DefaultTemperatures {
		g.temps[stage] = temp
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register appends providers to a stage's fallback route, in order.
func (g *Gateway) Register(stage Stage, providers ...Provider) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes[stage] = append(g.routes[stage], providers...)
}

// SetTunables swaps the attempt timeout and stage temperatures at runtime.
// Zero values leave the current setting untouched.
func (g *Gateway) SetTunables(timeout time.Duration, temps map[Stage]float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if timeout > 0 {
		g.timeout = timeout
	}
	for stage, temp := range temps {
		if temp >= 0 {
			g.temps[stage] = temp
		}
	}
}

// Generate walks the stage's provider route in order. Each attempt runs
// under its own deadline; timeout, transport error and empty content all
// advance to the next provider. The fallback is strictly sequential so
// provider usage stays deterministic and un-duplicated.
func (g *Gateway) Generate(ctx context.Context, stage Stage, req Request) (Response, error) {
	g.mu.RLock()
	providers := g.routes[stage]
	timeout := g.timeout
	stageTemp := g.temps[stage]
	g.mu.RUnlock()

	if len(providers) == 0 {
		return Response{}, &ExhaustedError{Stage: stage, Attempts: 0, Last: errNoProviders}
	}
	if req.Temperature == nil {
		req.Temperature = &stageTemp
	}

	var lastErr error
	for _, provider := range providers {
		if err := ctx.Err(); err != nil {
			// Caller cancelled; do not burn the remaining providers.
			return Response{}, err
		}

		resp, err := g.attempt(ctx, stage, provider, req, timeout)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		g.logger.Warn("model: provider attempt failed",
			"stage", string(stage),
			"provider", provider.Name(),
			"error", err,
		)
	}
	return Response{}, &ExhaustedError{Stage: stage, Attempts: len(providers), Last: lastErr}
}

func (g *Gateway) attempt(ctx context.Context, stage Stage, provider Provider, req Request, timeout time.Duration) (Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attemptCtx, span := g.tracer.Start(attemptCtx, "model.generate",
		trace.WithAttributes(
			attribute.String("stage", string(stage)),
			attribute.String("provider", provider.Name()),
		),
	)
	defer span.End()

	resp, err := provider.Generate(attemptCtx, req)
	if err != nil {
		span.RecordError(err)
		return Response{}, err
	}
	if resp.Content == "" {
		span.RecordError(ErrEmptyContent)
		return Response{}, ErrEmptyContent
	}
	span.SetAttributes(attribute.Int("output_tokens", resp.Usage.OutputTokens))
	return resp, nil
}

var errNoProviders = errors.New("model: no providers configured for stage")
