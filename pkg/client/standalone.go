package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/go-logr/logr"

	"github.com/kagent-dev/agentcheck/pkg/client/api"
)

const (
	runPath       = "/run"
	healthPath    = "/health"
	agentCardPath = "/.well-known/agent.json"
)

// StandaloneClient speaks the stateless A2A protocol of an agent that is its
// own HTTP endpoint. The session id travels inline with every call.
type StandaloneClient struct {
	client *BaseClient
}

// NewStandaloneClient creates a client for the agent served at baseURL.
func NewStandaloneClient(baseURL string, options ...ClientOption) *StandaloneClient {
	return &StandaloneClient{client: NewBaseClient(baseURL, options...)}
}

// BaseURL returns the agent's base URL.
func (c *StandaloneClient) BaseURL() string {
	return c.client.BaseURL
}

// Run posts one message to the agent and decodes its answer. The raw body is
// returned alongside the decoded response, and alongside errors whenever a
// body was received.
func (c *StandaloneClient) Run(ctx context.Context, request *api.A2ARunRequest) (*api.A2ARunResponse, []byte, error) {
	log := logr.FromContextOrDiscard(ctx)
	log.V(1).Info("Running standalone agent", "url", c.client.BaseURL, "sessionID", request.SessionID)

	data, err := c.client.Post(ctx, runPath, request)
	if err != nil {
		return nil, []byte(RawBody(err)), err
	}

	response, err := c.decodeRunResponse(data)
	if err != nil {
		return nil, data, err
	}

	log.V(1).Info("Standalone agent answered", "url", c.client.BaseURL, "messageLength", len(response.Message), "dataKeys", len(response.Data))
	return response, data, nil
}

func (c *StandaloneClient) decodeRunResponse(data []byte) (*api.A2ARunResponse, error) {
	url := c.client.buildURL(runPath)

	var raw any
	if err := c.client.DecodeResponse(http.MethodPost, runPath, data, &raw); err != nil {
		return nil, err
	}
	if _, ok := raw.(map[string]any); !ok {
		return nil, &SchemaError{URL: url, Reason: "response is not a JSON object", Body: string(data)}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &SchemaError{URL: url, Reason: err.Error(), Body: string(data)}
	}

	var response api.A2ARunResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, &SchemaError{URL: url, Reason: err.Error(), Body: string(data)}
	}

	// An agent-side failure is reported even when the success fields are absent.
	if response.Error != "" || response.Status == api.StatusError {
		message := response.Error
		if message == "" {
			message = response.Message
		}
		errorType, _ := response.Data["error_type"].(string)
		return nil, &AgentError{URL: url, Message: message, ErrorType: errorType, Body: string(data)}
	}

	var missing []string
	if _, ok := fields["message"]; !ok {
		missing = append(missing, "message")
	}
	if _, ok := fields["data"]; !ok {
		missing = append(missing, "data")
	}
	if len(missing) > 0 {
		return nil, &SchemaError{URL: url, Missing: missing, Body: string(data)}
	}

	return &response, nil
}

// AgentCard fetches the agent's A2A card from the well-known location.
func (c *StandaloneClient) AgentCard(ctx context.Context) (*a2a.AgentCard, error) {
	data, err := c.client.Get(ctx, agentCardPath)
	if err != nil {
		return nil, err
	}
	var card a2a.AgentCard
	if err := c.client.DecodeResponse(http.MethodGet, agentCardPath, data, &card); err != nil {
		return nil, err
	}
	if card.Name == "" {
		return nil, &SchemaError{URL: c.client.buildURL(agentCardPath), Missing: []string{"name"}, Body: string(data)}
	}
	return &card, nil
}

// Health checks if the agent is reachable
func (c *StandaloneClient) Health(ctx context.Context) error {
	if _, err := c.client.Get(ctx, healthPath); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
