package adapter

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"

	"github.com/kagent-dev/agentcheck/pkg/client"
	"github.com/kagent-dev/agentcheck/pkg/normalize"
)

// RetryConfig bounds caller-side retries.
type RetryConfig struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig suits tests against agents that are still starting up.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Retry sends req until it succeeds, fails permanently, or attempts run out.
// Only transient transport failures (refused connections, timeouts, 5xx and
// 429 answers) are retried. Adapters never retry on their own.
func Retry(ctx context.Context, a Adapter, req *Request, cfg RetryConfig) (*normalize.AgentResponse, error) {
	log := logr.FromContextOrDiscard(ctx)

	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}
	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	operation := func() (*normalize.AgentResponse, error) {
		resp, err := a.Send(ctx, req)
		if err != nil && !client.IsTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Info("Retrying agent call", "mode", a.Mode(), "error", err.Error(), "next", next)
		}),
	)
}
