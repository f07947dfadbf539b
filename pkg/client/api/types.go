package api

import (
	"strings"

	"google.golang.org/genai"
)

// Standalone (A2A) wire types

// A2ARunRequest is the body POSTed to a standalone agent's /run endpoint.
type A2ARunRequest struct {
	Message   string            `json:"message"`
	Context   map[string]string `json:"context"`
	SessionID string            `json:"session_id"`
}

// A2ARunResponse is the single JSON object a standalone agent answers with.
type A2ARunResponse struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
	Error   string         `json:"error,omitempty"`
	Status  string         `json:"status,omitempty"`
}

// Status values reported by standalone agents.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// API-Server wire types

// RunAgentRequest is the body POSTed to the API server's /run and /run_sse endpoints.
type RunAgentRequest struct {
	AppName    string         `json:"app_name"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	NewMessage *genai.Content `json:"new_message"`
	Streaming  bool           `json:"streaming,omitempty"`
}

// NewRunAgentRequest wraps a user message as a single text part.
func NewRunAgentRequest(appName, userID, sessionID, message string) *RunAgentRequest {
	return &RunAgentRequest{
		AppName:    appName,
		UserID:     userID,
		SessionID:  sessionID,
		NewMessage: genai.NewContentFromText(message, genai.RoleUser),
	}
}

// Event is one element of the event sequence returned by the API server.
type Event struct {
	ID           string         `json:"id,omitempty"`
	InvocationID string         `json:"invocationId,omitempty"`
	Author       string         `json:"author,omitempty"`
	Content      *genai.Content `json:"content,omitempty"`
	Partial      bool           `json:"partial,omitempty"`
	TurnComplete bool           `json:"turnComplete,omitempty"`
	ErrorCode    string         `json:"errorCode,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	Timestamp    float64        `json:"timestamp,omitempty"`
}

// Role returns the content role, or "" for events without content.
func (e *Event) Role() string {
	if e == nil || e.Content == nil {
		return ""
	}
	return e.Content.Role
}

// Text concatenates the non-thought text parts of the event.
func (e *Event) Text() string {
	if e == nil || e.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range e.Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// FunctionResponses returns the function responses carried by the event in part order.
func (e *Event) FunctionResponses() []*genai.FunctionResponse {
	if e == nil || e.Content == nil {
		return nil
	}
	var out []*genai.FunctionResponse
	for _, part := range e.Content.Parts {
		if part != nil && part.FunctionResponse != nil {
			out = append(out, part.FunctionResponse)
		}
	}
	return out
}

// Session is the API server's session resource.
type Session struct {
	ID             string         `json:"id"`
	AppName        string         `json:"appName"`
	UserID         string         `json:"userId"`
	State          map[string]any `json:"state,omitempty"`
	Events         []Event        `json:"events,omitempty"`
	LastUpdateTime float64        `json:"lastUpdateTime,omitempty"`
}

// APIError is the error body FastAPI-style servers answer with.
type APIError struct {
	Detail string `json:"detail"`
}

// Roles used in event content.
const (
	RoleUser  = "user"
	RoleModel = "model"
)
