package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/kagent-dev/agentcheck/pkg/client"
	"github.com/kagent-dev/agentcheck/pkg/client/api"
	"github.com/kagent-dev/agentcheck/pkg/normalize"
	"github.com/kagent-dev/agentcheck/pkg/telemetry"
)

// Standalone talks to an agent that is its own A2A endpoint.
type Standalone struct {
	client *client.StandaloneClient
	opts   options
}

var _ Adapter = (*Standalone)(nil)

// NewStandalone wraps a standalone client.
func NewStandalone(c *client.StandaloneClient, opts ...Option) *Standalone {
	return &Standalone{client: c, opts: newOptions(opts)}
}

func (a *Standalone) Mode() normalize.SourceMode {
	return normalize.SourceStandalone
}

// Send posts the message with the session id inline.
func (a *Standalone) Send(ctx context.Context, req *Request) (resp *normalize.AgentResponse, err error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "agentcheck.standalone.send", map[string]string{
		"agent.url":  a.client.BaseURL(),
		"session.id": req.Session.SessionID,
	})
	defer func() {
		telemetry.EndSpan(span, err)
		a.opts.observe(a.Mode(), start, err)
	}()

	if err := req.Session.Valid(); err != nil {
		return nil, fmt.Errorf("invalid session context: %w", err)
	}

	wireContext := make(map[string]string, len(req.Context)+1)
	for k, v := range req.Context {
		wireContext[k] = v
	}
	wireContext["user_id"] = req.Session.UserID

	answer, raw, err := a.client.Run(ctx, &api.A2ARunRequest{
		Message:   req.Message,
		Context:   wireContext,
		SessionID: req.Session.SessionID,
	})
	if err != nil {
		logr.FromContextOrDiscard(ctx).V(1).Info("Standalone call failed", "url", a.client.BaseURL(), "outcome", OutcomeOf(err))
		return nil, err
	}
	return normalize.FromStandalone(answer, raw), nil
}
