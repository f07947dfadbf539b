// Package normalize reduces the answers of both agent protocols to one
// canonical AgentResponse.
package normalize

import (
	"fmt"
	"strings"

	"github.com/kagent-dev/agentcheck/pkg/client/api"
	"github.com/kagent-dev/agentcheck/pkg/extract"
)

// SourceMode tells which protocol produced a response.
type SourceMode string

const (
	SourceAPIServer  SourceMode = "api_server"
	SourceStandalone SourceMode = "standalone"
)

// Precedence decides which source supplies the message when an API-server run
// yields both a tool result and model text.
type Precedence string

const (
	PrecedenceFunctionResponse Precedence = "function_response"
	PrecedenceModelText        Precedence = "model_text"
)

// ParsePrecedence accepts the config spellings of a Precedence. The empty
// string selects the default.
func ParsePrecedence(s string) (Precedence, error) {
	switch Precedence(strings.ToLower(strings.TrimSpace(s))) {
	case "", PrecedenceFunctionResponse:
		return PrecedenceFunctionResponse, nil
	case PrecedenceModelText:
		return PrecedenceModelText, nil
	default:
		return "", fmt.Errorf("unknown precedence %q (expected %s or %s)", s, PrecedenceFunctionResponse, PrecedenceModelText)
	}
}

// AgentResponse is the canonical answer of an agent. Data is never nil.
type AgentResponse struct {
	Message    string         `json:"message"`
	Data       map[string]any `json:"data"`
	SourceMode SourceMode     `json:"source_mode"`

	// Rules lists the extraction rules that fired, in event order.
	Rules []string `json:"rules,omitempty"`
	// Raw is the undecoded wire payload, kept for diagnostics.
	Raw []byte `json:"-"`
}

// Options configures FromEvents.
type Options struct {
	Precedence Precedence
	// Registry defaults to extract.Default().
	Registry *extract.Registry
}

// FromStandalone passes a standalone answer through unchanged.
func FromStandalone(resp *api.A2ARunResponse, raw []byte) *AgentResponse {
	out := &AgentResponse{
		Data:       map[string]any{},
		SourceMode: SourceStandalone,
		Raw:        raw,
	}
	if resp == nil {
		return out
	}
	out.Message = resp.Message
	for k, v := range resp.Data {
		out.Data[k] = v
	}
	return out
}

// FromEvents reduces an API-server event sequence. The model message is the
// text of the last complete model event; tool results and agent reports are
// run through the extraction table. An empty sequence yields an empty
// message and empty data.
func FromEvents(events []api.Event, raw []byte, opts Options) *AgentResponse {
	registry := opts.Registry
	if registry == nil {
		registry = extract.Default()
	}
	out := &AgentResponse{
		Data:       map[string]any{},
		SourceMode: SourceAPIServer,
		Raw:        raw,
	}

	var (
		modelText   string
		toolMessage string
		toolData    = map[string]any{}
		authorData  = map[string]any{}
	)
	for i := range events {
		event := &events[i]
		for _, fr := range event.FunctionResponses() {
			ex, ok := registry.Function(fr.Name, fr.Response)
			if !ok {
				continue
			}
			out.Rules = append(out.Rules, "function:"+extract.Normalize(fr.Name))
			merge(toolData, ex.Data)
			if ex.Message != "" {
				toolMessage = ex.Message
			}
		}

		if event.Partial || event.Role() != api.RoleModel {
			continue
		}
		text := event.Text()
		if text == "" {
			continue
		}
		modelText = text
		if ex, ok := registry.Author(event.Author, text); ok {
			out.Rules = append(out.Rules, "author:"+extract.Normalize(event.Author))
			merge(authorData, ex.Data)
		}
	}

	switch opts.Precedence {
	case PrecedenceModelText:
		merge(out.Data, toolData)
		merge(out.Data, authorData)
		out.Message = firstNonEmpty(modelText, toolMessage)
	default:
		merge(out.Data, authorData)
		merge(out.Data, toolData)
		out.Message = firstNonEmpty(toolMessage, modelText)
	}
	return out
}

func merge(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
