package adapter

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kagent-dev/agentcheck/pkg/normalize"
)

// Call is one independent agent call in a fan-out.
type Call struct {
	Name    string
	Adapter Adapter
	Request *Request
}

// Result is the outcome of one Call.
type Result struct {
	Call     Call
	Response *normalize.AgentResponse
	Err      error
	Duration time.Duration
}

// FanOut runs the calls in parallel, at most limit at a time (no limit when
// limit <= 0). A failed call does not cancel the others. Results are returned
// in input order.
func FanOut(ctx context.Context, calls []Call, limit int) []Result {
	results := make([]Result, len(calls))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, call := range calls {
		g.Go(func() error {
			start := time.Now()
			resp, err := call.Adapter.Send(ctx, call.Request)
			results[i] = Result{Call: call, Response: resp, Err: err, Duration: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
