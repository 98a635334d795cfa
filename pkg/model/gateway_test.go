package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name  string
	fn    func(ctx context.Context, req Request) (Response, error)
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Generate(ctx context.Context, req Request) (Response, error) {
	s.calls++
	return s.fn(ctx, req)
}

func okProvider(name, content string) *stubProvider {
	return &stubProvider{name: name, fn: func(context.Context, Request) (Response, error) {
		return Response{Content: content, Model: name}, nil
	}}
}

func failProvider(name string, err error) *stubProvider {
	return &stubProvider{name: name, fn: func(context.Context, Request) (Response, error) {
		return Response{}, err
	}}
}

func TestGatewayFirstSuccessWins(t *testing.T) {
	first := okProvider("primary", "from primary")
	second := okProvider("secondary", "from secondary")

	g := NewGateway()
	g.Register(StageSelection, first, second)

	resp, err := g.Generate(context.Background(), StageSelection, Request{})
	require.NoError(t, err)
	require.Equal(t, "from primary", resp.Content)
	require.Equal(t, 1, first.calls)
	require.Zero(t, second.calls, "fallback must not run after a success")
}

func TestGatewayFallsBackOnError(t *testing.T) {
	first := failProvider("primary", errors.New("quota"))
	second := okProvider("secondary", "recovered")

	g := NewGateway()
	g.Register(StageSelection, first, second)

	resp, err := g.Generate(context.Background(), StageSelection, Request{})
	require.NoError(t, err)
	require.Equal(t, "recovered", resp.Content)
	require.Equal(t, 1, first.calls)
	require.Equal(t, 1, second.calls)
}

func TestGatewayFallsBackOnEmptyContent(t *testing.T) {
	first := okProvider("primary", "")
	second := okProvider("secondary", "non-empty")

	g := NewGateway()
	g.Register(StagePlanning, first, second)

	resp, err := g.Generate(context.Background(), StagePlanning, Request{})
	require.NoError(t, err)
	require.Equal(t, "non-empty", resp.Content)
}

func TestGatewayExhaustion(t *testing.T) {
	last := errors.New("still down")
	g := NewGateway()
	g.Register(StageSelection,
		failProvider("a", errors.New("down")),
		failProvider("b", last),
	)

	_, err := g.Generate(context.Background(), StageSelection, Request{})
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, StageSelection, exhausted.Stage)
	require.Equal(t, 2, exhausted.Attempts)
	require.ErrorIs(t, err, last)
}

func TestGatewayNoProvidersForStage(t *testing.T) {
	g := NewGateway()

	_, err := g.Generate(context.Background(), StageChat, Request{})
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Zero(t, exhausted.Attempts)
}

func TestGatewayStageTemperatureDefault(t *testing.T) {
	var seen *float64
	capture := &stubProvider{name: "capture", fn: func(_ context.Context, req Request) (Response, error) {
		seen = req.Temperature
		return Response{Content: "ok"}, nil
	}}

	g := NewGateway()
	g.Register(StageSelection, capture)

	_, err := g.Generate(context.Background(), StageSelection, Request{})
	require.NoError(t, err)
	require.NotNil(t, seen)
	require.Equal(t, DefaultTemperatures[StageSelection], *seen)

	// An explicit temperature is never overridden.
	explicit := 0.9
	_, err = g.Generate(context.Background(), StageSelection, Request{Temperature: &explicit})
	require.NoError(t, err)
	require.Equal(t, 0.9, *seen)
}

func TestGatewayAttemptTimeout(t *testing.T) {
	slow := &stubProvider{name: "slow", fn: func(ctx context.Context, _ Request) (Response, error) {
		<-ctx.Done()
		return Response{}, ctx.Err()
	}}
	fast := okProvider("fast", "made it")

	g := NewGateway(WithAttemptTimeout(10 * time.Millisecond))
	g.Register(StagePlanning, slow, fast)

	start := time.Now()
	resp, err := g.Generate(context.Background(), StagePlanning, Request{})
	require.NoError(t, err)
	require.Equal(t, "made it", resp.Content)
	require.Less(t, time.Since(start), time.Second, "the slow provider must be cut off, not waited out")
}

func TestGatewayCallerCancellation(t *testing.T) {
	first := failProvider("a", errors.New("down"))
	second := okProvider("b", "should not run")

	ctx, cancel := context.WithCancel(context.Background())
	g := NewGateway()
	g.Register(StageSelection,
		&stubProvider{name: "canceller", fn: func(context.Context, Request) (Response, error) {
			cancel()
			return Response{}, errors.New("interrupted")
		}},
		first, second,
	)

	_, err := g.Generate(ctx, StageSelection, Request{})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, first.calls)
	require.Zero(t, second.calls)
}

func TestGatewaySetTunables(t *testing.T) {
	var seen *float64
	capture := &stubProvider{name: "capture", fn: func(_ context.Context, req Request) (Response, error) {
		seen = req.Temperature
		return Response{Content: "ok"}, nil
	}}

	g := NewGateway()
	g.Register(StageChat, capture)
	g.SetTunables(5*time.Second, map[Stage]float64{StageChat: 0.7})

	_, err := g.Generate(context.Background(), StageChat, Request{})
	require.NoError(t, err)
	require.Equal(t, 0.7, *seen)
}
