package ai

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/solidguard/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type guard struct {
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func newGuard(name string, cfg config.ResilienceConfig) *guard {
	g := &guard{}
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)
	}
	if cfg.BreakerFailures > 0 {
		openFor := time.Duration(cfg.BreakerOpenSeconds) * time.Second
		if openFor <= 0 {
			openFor = 60 * time.Second
		}
		failures := uint32(cfg.BreakerFailures)
		g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: openFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logutil.GetLogger(context.Background()).Warn("circuit breaker state changed",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}
	return g
}

func (g *guard) do(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if g.breaker == nil {
		return fn()
	}
	return g.breaker.Execute(fn)
}

func WrapResilientCompleter(c ICompleter, name string, cfg config.ResilienceConfig) ICompleter {
	if c == nil || !cfg.Enabled() {
		return c
	}
	return &resilientCompleter{next: c, guard: newGuard(name, cfg)}
}

type resilientCompleter struct {
	next  ICompleter
	guard *guard
}

func (r *resilientCompleter) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	res, err := r.guard.do(ctx, func() (interface{}, error) {
		return r.next.Complete(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func WrapResilientEmbedder(e IEmbedder, name string, cfg config.ResilienceConfig) IEmbedder {
	if e == nil || !cfg.Enabled() {
		return e
	}
	return &resilientEmbedder{next: e, guard: newGuard(name, cfg)}
}

type resilientEmbedder struct {
	next  IEmbedder
	guard *guard
}

func (r *resilientEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	res, err := r.guard.do(ctx, func() (interface{}, error) {
		return r.next.Embed(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return res.([][]float32), nil
}

func (r *resilientEmbedder) ModelName() string {
	return r.next.ModelName()
}
