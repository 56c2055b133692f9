package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/solidguard/internal/config"
)

type scriptedCompleter struct {
	calls int
	err   error
	reply string
}

func (s *scriptedCompleter) Complete(_ context.Context, _ *CompletionRequest) (string, error) {
	s.calls++
	return s.reply, s.err
}

func TestWrapResilientCompleterDisabled(t *testing.T) {
	c := &scriptedCompleter{}
	require.Same(t, c, WrapResilientCompleter(c, "x", config.ResilienceConfig{}))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	c := &scriptedCompleter{err: errors.New("503")}
	wrapped := WrapResilientCompleter(c, "test", config.ResilienceConfig{BreakerFailures: 2, BreakerOpenSeconds: 60})
	for i := 0; i < 2; i++ {
		_, err := wrapped.Complete(context.Background(), &CompletionRequest{})
		require.EqualError(t, err, "503")
	}
	_, err := wrapped.Complete(context.Background(), &CompletionRequest{})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.Equal(t, 2, c.calls)
}

func TestRateLimiterHonoursContext(t *testing.T) {
	c := &scriptedCompleter{reply: "ok"}
	wrapped := WrapResilientCompleter(c, "test", config.ResilienceConfig{RequestsPerMinute: 1, Burst: 1})
	out, err := wrapped.Complete(context.Background(), &CompletionRequest{})
	require.NoError(t, err)
	require.Equal(t, "ok", out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = wrapped.Complete(ctx, &CompletionRequest{})
	require.Error(t, err)
	require.Equal(t, 1, c.calls)
}

type staticEmbedder struct{}

func (staticEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

func (staticEmbedder) ModelName() string { return "static" }

func TestWrapResilientEmbedder(t *testing.T) {
	e := WrapResilientEmbedder(staticEmbedder{}, "emb", config.ResilienceConfig{BreakerFailures: 1})
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	require.Equal(t, "static", e.ModelName())
}
