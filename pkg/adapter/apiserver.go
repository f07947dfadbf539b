package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/kagent-dev/agentcheck/pkg/client"
	"github.com/kagent-dev/agentcheck/pkg/client/api"
	"github.com/kagent-dev/agentcheck/pkg/normalize"
	"github.com/kagent-dev/agentcheck/pkg/session"
	"github.com/kagent-dev/agentcheck/pkg/telemetry"
)

// APIServer talks to one app behind a shared API server. Sessions are
// registered on first use and remembered, so concurrent sends into a
// registered session go straight to the run endpoint.
type APIServer struct {
	client  *client.APIServerClient
	appName string
	opts    options

	mu         sync.Mutex
	registered map[string]struct{}
}

var _ Adapter = (*APIServer)(nil)

// NewAPIServer wraps an API-server client for the given app.
func NewAPIServer(c *client.APIServerClient, appName string, opts ...Option) *APIServer {
	return &APIServer{
		client:     c,
		appName:    appName,
		opts:       newOptions(opts),
		registered: make(map[string]struct{}),
	}
}

func (a *APIServer) Mode() normalize.SourceMode {
	return normalize.SourceAPIServer
}

// AppName returns the app the adapter targets.
func (a *APIServer) AppName() string {
	return a.appName
}

func registrationKey(sc session.Context) string {
	return sc.UserID + "/" + sc.SessionID
}

// EnsureSession registers the session with the server unless this adapter
// already did. It is safe to call repeatedly and concurrently.
func (a *APIServer) EnsureSession(ctx context.Context, sc session.Context) error {
	key := registrationKey(sc)
	a.mu.Lock()
	_, done := a.registered[key]
	a.mu.Unlock()
	if done {
		return nil
	}

	if err := a.client.EnsureSession(ctx, a.appName, sc); err != nil {
		return err
	}

	a.mu.Lock()
	a.registered[key] = struct{}{}
	a.mu.Unlock()
	return nil
}

// Forget drops the session from the registered set, e.g. after deleting it.
func (a *APIServer) Forget(sc session.Context) {
	a.mu.Lock()
	delete(a.registered, registrationKey(sc))
	a.mu.Unlock()
}

// Send registers the session if needed, runs the app and normalizes the
// event sequence.
func (a *APIServer) Send(ctx context.Context, req *Request) (resp *normalize.AgentResponse, err error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "agentcheck.apiserver.send", map[string]string{
		"agent.url":  a.client.BaseURL(),
		"app.name":   a.appName,
		"session.id": req.Session.SessionID,
	})
	defer func() {
		telemetry.EndSpan(span, err)
		a.opts.observe(a.Mode(), start, err)
	}()

	log := logr.FromContextOrDiscard(ctx)

	if err := req.Session.Valid(); err != nil {
		return nil, fmt.Errorf("invalid session context: %w", err)
	}
	if !a.opts.skipRegistration {
		if err := a.EnsureSession(ctx, req.Session); err != nil {
			return nil, err
		}
	}

	wire := api.NewRunAgentRequest(a.appName, req.Session.UserID, req.Session.SessionID, req.Message)
	var (
		events []api.Event
		raw    []byte
	)
	if a.opts.streaming {
		events, raw, err = a.client.RunSSE(ctx, wire, nil)
	} else {
		events, raw, err = a.client.Run(ctx, wire)
	}
	if err != nil {
		log.V(1).Info("API server call failed", "app", a.appName, "outcome", OutcomeOf(err))
		return nil, err
	}

	resp = normalize.FromEvents(events, raw, normalize.Options{
		Precedence: a.opts.precedence,
		Registry:   a.opts.registry,
	})
	log.V(1).Info("API server call normalized", "app", a.appName, "events", len(events), "rules", resp.Rules)
	return resp, nil
}
