package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-logr/logr"

	"github.com/kagent-dev/agentcheck/pkg/client/api"
	"github.com/kagent-dev/agentcheck/pkg/session"
	"github.com/kagent-dev/agentcheck/pkg/sse"
)

const (
	runSSEPath   = "/run_sse"
	listAppsPath = "/list-apps"
)

// APIServerClient speaks the session-oriented protocol of a shared API server
// fronting several agents (apps).
type APIServerClient struct {
	client *BaseClient
}

// NewAPIServerClient creates a client for the API server at baseURL.
func NewAPIServerClient(baseURL string, options ...ClientOption) *APIServerClient {
	return &APIServerClient{client: NewBaseClient(baseURL, options...)}
}

// BaseURL returns the API server's base URL.
func (c *APIServerClient) BaseURL() string {
	return c.client.BaseURL
}

func sessionPath(appName, userID, sessionID string) string {
	return fmt.Sprintf("/apps/%s/users/%s/sessions/%s",
		url.PathEscape(appName), url.PathEscape(userID), url.PathEscape(sessionID))
}

// GetSession retrieves a session. A missing session is reported as nil without error.
func (c *APIServerClient) GetSession(ctx context.Context, appName, userID, sessionID string) (*api.Session, error) {
	log := logr.FromContextOrDiscard(ctx)
	log.V(1).Info("Getting session", "appName", appName, "userID", userID, "sessionID", sessionID)

	path := sessionPath(appName, userID, sessionID)
	data, err := c.client.Get(ctx, path)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) && te.Kind == KindHTTPStatus && te.StatusCode == http.StatusNotFound {
			log.V(1).Info("Session not found", "sessionID", sessionID, "userID", userID)
			return nil, nil
		}
		return nil, err
	}

	var s api.Session
	if err := c.client.DecodeResponse(http.MethodGet, path, data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSession registers a session with the given id and initial state.
func (c *APIServerClient) CreateSession(ctx context.Context, appName, userID, sessionID string, state map[string]any) (*api.Session, error) {
	log := logr.FromContextOrDiscard(ctx)
	log.V(1).Info("Creating session", "appName", appName, "userID", userID, "sessionID", sessionID)

	if state == nil {
		state = map[string]any{}
	}
	path := sessionPath(appName, userID, sessionID)
	data, err := c.client.Post(ctx, path, state)
	if err != nil {
		return nil, err
	}

	var s api.Session
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := c.client.DecodeResponse(http.MethodPost, path, data, &s); err != nil {
			return nil, err
		}
	}
	if s.ID == "" {
		s.ID, s.AppName, s.UserID, s.State = sessionID, appName, userID, state
	}

	log.V(1).Info("Session created successfully", "sessionID", s.ID, "userID", s.UserID)
	return &s, nil
}

// EnsureSession makes sure the session in sc exists on the server. It is
// idempotent: an existing session, or a creation rejected because the session
// already exists, is success.
func (c *APIServerClient) EnsureSession(ctx context.Context, appName string, sc session.Context) error {
	if err := sc.Valid(); err != nil {
		return fmt.Errorf("invalid session context: %w", err)
	}

	existing, err := c.GetSession(ctx, appName, sc.UserID, sc.SessionID)
	if err != nil {
		var te *TransportError
		// Some servers do not expose GET on sessions; fall through to create.
		if !errors.As(err, &te) || te.Kind != KindHTTPStatus || te.StatusCode != http.StatusMethodNotAllowed {
			return fmt.Errorf("failed to look up session: %w", err)
		}
	}
	if existing != nil {
		return nil
	}

	_, err = c.CreateSession(ctx, appName, sc.UserID, sc.SessionID, nil)
	if err != nil {
		if isAlreadyExists(err) {
			logr.FromContextOrDiscard(ctx).V(1).Info("Session already exists", "sessionID", sc.SessionID)
			return nil
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func isAlreadyExists(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) || te.Kind != KindHTTPStatus {
		return false
	}
	if te.StatusCode != http.StatusBadRequest && te.StatusCode != http.StatusConflict {
		return false
	}
	return te.StatusCode == http.StatusConflict || strings.Contains(strings.ToLower(te.Body), "already exists")
}

// DeleteSession deletes a session
func (c *APIServerClient) DeleteSession(ctx context.Context, appName, userID, sessionID string) error {
	logr.FromContextOrDiscard(ctx).V(1).Info("Deleting session", "appName", appName, "userID", userID, "sessionID", sessionID)
	_, err := c.client.Delete(ctx, sessionPath(appName, userID, sessionID))
	return err
}

// ListApps lists the apps (agents) the server fronts.
func (c *APIServerClient) ListApps(ctx context.Context) ([]string, error) {
	data, err := c.client.Get(ctx, listAppsPath)
	if err != nil {
		return nil, err
	}
	var apps []string
	if err := c.client.DecodeResponse(http.MethodGet, listAppsPath, data, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// Run posts one message and returns the full event sequence the run produced.
func (c *APIServerClient) Run(ctx context.Context, request *api.RunAgentRequest) ([]api.Event, []byte, error) {
	log := logr.FromContextOrDiscard(ctx)
	log.V(1).Info("Running agent", "appName", request.AppName, "sessionID", request.SessionID)

	data, err := c.client.Post(ctx, runPath, request)
	if err != nil {
		return nil, []byte(RawBody(err)), err
	}

	var raw any
	if err := c.client.DecodeResponse(http.MethodPost, runPath, data, &raw); err != nil {
		return nil, data, err
	}
	if _, ok := raw.([]any); !ok {
		return nil, data, &SchemaError{URL: c.client.buildURL(runPath), Reason: "expected a JSON array of events", Body: string(data)}
	}

	var events []api.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, data, &SchemaError{URL: c.client.buildURL(runPath), Reason: err.Error(), Body: string(data)}
	}

	log.V(1).Info("Run completed", "appName", request.AppName, "events", len(events))
	return events, data, nil
}

// sseError is the payload the server streams when the run fails mid-way.
type sseError struct {
	Error string `json:"error"`
}

// RunSSE posts one message to the streaming endpoint and collects the events
// as they arrive. onEvent, if not nil, observes each event in order. The raw
// return value is the newline-joined sequence of event payloads.
func (c *APIServerClient) RunSSE(ctx context.Context, request *api.RunAgentRequest, onEvent func(api.Event)) ([]api.Event, []byte, error) {
	log := logr.FromContextOrDiscard(ctx)
	log.V(1).Info("Streaming agent run", "appName", request.AppName, "sessionID", request.SessionID)

	streamed := *request
	streamed.Streaming = true

	resp, cancel, err := c.client.startRequest(ctx, http.MethodPost, runSSEPath, &streamed, "text/event-stream")
	if err != nil {
		return nil, []byte(RawBody(err)), err
	}
	defer cancel()
	defer resp.Body.Close()

	streamURL := c.client.buildURL(runSSEPath)
	var (
		events []api.Event
		raw    []byte
	)
	err = sse.Read(resp.Body, func(e *sse.Event) error {
		raw = append(raw, e.Data...)
		raw = append(raw, '\n')

		var failure sseError
		if json.Unmarshal(e.Data, &failure) == nil && failure.Error != "" {
			return &AgentError{URL: streamURL, Message: failure.Error, Body: string(e.Data)}
		}

		var event api.Event
		if err := json.Unmarshal(e.Data, &event); err != nil {
			return &TransportError{Kind: KindMalformedBody, Method: http.MethodPost, URL: streamURL, Body: string(e.Data), Err: err}
		}
		events = append(events, event)
		if onEvent != nil {
			onEvent(event)
		}
		return nil
	})
	if err != nil {
		var (
			ae *AgentError
			te *TransportError
		)
		if !errors.As(err, &ae) && !errors.As(err, &te) {
			err = newTransportError(http.MethodPost, streamURL, err)
		}
		return nil, raw, err
	}

	log.V(1).Info("Stream completed", "appName", request.AppName, "events", len(events))
	return events, raw, nil
}
