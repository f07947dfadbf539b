// Package adapter hides the two agent protocols behind one capability: send a
// message within a session and get a normalized response back.
package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/kagent-dev/agentcheck/pkg/client"
	"github.com/kagent-dev/agentcheck/pkg/extract"
	"github.com/kagent-dev/agentcheck/pkg/normalize"
	"github.com/kagent-dev/agentcheck/pkg/session"
)

// Request is one logical message to an agent.
type Request struct {
	Message string
	Session session.Context
	// Context carries extra key/values for protocols that accept them. The
	// session's user id is always added.
	Context map[string]string
}

// NewRequest builds a request for the session.
func NewRequest(sc session.Context, message string) *Request {
	return &Request{Message: message, Session: sc}
}

// Adapter sends requests over one wire protocol.
type Adapter interface {
	Mode() normalize.SourceMode
	Send(ctx context.Context, req *Request) (*normalize.AgentResponse, error)
}

// Recorder observes finished calls.
type Recorder interface {
	ObserveCall(mode string, outcome string, duration time.Duration)
}

// Outcome labels recorded for calls that did not fail in transport.
const (
	OutcomeSuccess    = "success"
	OutcomeSchemaErr  = "schema_error"
	OutcomeAgentErr   = "agent_error"
	OutcomeInvalidReq = "invalid_request"
)

// OutcomeOf classifies a call result for metrics and reports.
func OutcomeOf(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	if kind := client.KindOf(err); kind != "" {
		return string(kind)
	}
	var (
		se *client.SchemaError
		ae *client.AgentError
	)
	switch {
	case errors.As(err, &se):
		return OutcomeSchemaErr
	case errors.As(err, &ae):
		return OutcomeAgentErr
	default:
		return OutcomeInvalidReq
	}
}

type options struct {
	recorder         Recorder
	precedence       normalize.Precedence
	registry         *extract.Registry
	streaming        bool
	skipRegistration bool
}

// Option configures an adapter.
type Option func(*options)

// WithRecorder reports every call to r.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithPrecedence sets which API-server source supplies the message.
func WithPrecedence(p normalize.Precedence) Option {
	return func(o *options) {
		o.precedence = p
	}
}

// WithRegistry replaces the built-in extraction table.
func WithRegistry(r *extract.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithStreaming makes the API-server adapter use the SSE endpoint.
func WithStreaming(streaming bool) Option {
	return func(o *options) {
		o.streaming = streaming
	}
}

// WithoutSessionRegistration skips EnsureSession before API-server runs. What
// the server does with an unregistered session is undefined.
func WithoutSessionRegistration() Option {
	return func(o *options) {
		o.skipRegistration = true
	}
}

func newOptions(opts []Option) options {
	o := options{precedence: normalize.PrecedenceFunctionResponse}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = extract.Default()
	}
	return o
}

func (o options) observe(mode normalize.SourceMode, start time.Time, err error) {
	if o.recorder != nil {
		o.recorder.ObserveCall(string(mode), OutcomeOf(err), time.Since(start))
	}
}
