// Package extract mines structured data out of the events an API server
// returns. Rules are kept in an enumerable table keyed by tool name (for
// function responses) or by agent name (for model text), so supporting a new
// agent means adding a table entry.
package extract

import (
	"sort"
	"strings"

	"github.com/stoewer/go-strcase"
)

// Extraction is what a rule recovered from one source.
type Extraction struct {
	// Data is merged into the normalized response's data.
	Data map[string]any
	// Message, if not empty, is a candidate for the normalized message.
	Message string
}

// FunctionRule extracts from the response payload of a tool call.
type FunctionRule func(response map[string]any) (Extraction, bool)

// TextRule extracts from the text of a model event.
type TextRule func(text string) (Extraction, bool)

// Registry maps tool names and agent names to rules. The zero value is not
// usable; use NewRegistry or Default. A Registry must not be mutated while it
// is used concurrently.
type Registry struct {
	functions map[string]FunctionRule
	authors   map[string]TextRule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		functions: make(map[string]FunctionRule),
		authors:   make(map[string]TextRule),
	}
}

// Default returns a registry holding the built-in rules.
func Default() *Registry {
	r := NewRegistry()
	r.RegisterFunction("text_to_speech", TextToSpeech)
	r.RegisterFunction("analyze_sentiment", AnalyzeSentiment)
	r.RegisterAuthor("sentiment_analyzer_agent", SentimentReport)
	return r
}

// Normalize maps tool and agent names to the form used as table keys, so
// "TextToSpeech", "text-to-speech" and "text_to_speech" share one entry.
func Normalize(name string) string {
	return strcase.SnakeCase(strings.TrimSpace(name))
}

// RegisterFunction adds or replaces the rule for a tool.
func (r *Registry) RegisterFunction(name string, rule FunctionRule) {
	r.functions[Normalize(name)] = rule
}

// RegisterAuthor adds or replaces the rule for an agent's model text.
func (r *Registry) RegisterAuthor(author string, rule TextRule) {
	r.authors[Normalize(author)] = rule
}

// Function applies the rule registered for the tool. ok is false when no rule
// is registered or the rule found nothing; a miss is never an error.
func (r *Registry) Function(name string, response map[string]any) (Extraction, bool) {
	rule, found := r.functions[Normalize(name)]
	if !found {
		return Extraction{}, false
	}
	return rule(response)
}

// Author applies the text rule registered for the agent.
func (r *Registry) Author(author, text string) (Extraction, bool) {
	rule, found := r.authors[Normalize(author)]
	if !found || strings.TrimSpace(text) == "" {
		return Extraction{}, false
	}
	return rule(text)
}

// Functions lists the registered tool names in order.
func (r *Registry) Functions() []string {
	return sortedKeys(r.functions)
}

// Authors lists the registered agent names in order.
func (r *Registry) Authors() []string {
	return sortedKeys(r.authors)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Strings returns every string found in v, depth first, map keys in sorted
// order. Tool results embed their log lines at varying depths.
func Strings(v any) []string {
	var out []string
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case []any:
			for _, item := range t {
				walk(item)
			}
		case map[string]any:
			for _, k := range sortedKeys(t) {
				walk(t[k])
			}
		}
	}
	walk(v)
	return out
}
