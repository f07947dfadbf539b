package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"sigs.k8s.io/yaml"
)

// Built-in expectation kinds.
const (
	KindSentiment  = "sentiment"
	KindSpeaker    = "speaker"
	KindSummarizer = "summarizer"
	KindGeneric    = "generic"
)

// Sentiments are the labels a sentiment agent may report.
var Sentiments = []string{"positive", "negative", "neutral"}

var builtins = map[string]Expectations{
	KindSentiment: {
		Kind:           KindSentiment,
		RequireMessage: true,
		Roots:          []string{"", "sentiment_analysis"},
		Fields: []FieldRule{
			{Path: "sentiment", Required: true, Type: TypeString, Enum: Sentiments},
			{Path: "confidence", Required: true, Type: TypeConfidence},
			{Path: "key_markers", Type: TypeList},
			{Path: "analysis", Type: TypeString},
		},
	},
	KindSpeaker: {
		Kind:           KindSpeaker,
		RequireMessage: true,
		Fields: []FieldRule{
			{Path: "audio_url", Required: true, Type: TypeLocation, Prefixes: []string{"http://", "https://", "file://", "/"}},
		},
	},
	KindSummarizer: {Kind: KindSummarizer, RequireMessage: true},
	KindGeneric:    {Kind: KindGeneric, RequireMessage: true},
}

// Builtin returns the built-in expectations for an agent kind.
func Builtin(kind string) (Expectations, error) {
	exp, ok := builtins[strings.ToLower(strings.TrimSpace(kind))]
	if !ok {
		return Expectations{}, fmt.Errorf("no built-in expectations for kind %q (known: %s)", kind, strings.Join(Kinds(), ", "))
	}
	return exp, nil
}

// Kinds lists the built-in expectation kinds.
func Kinds() []string {
	kinds := make([]string, 0, len(builtins))
	for k := range builtins {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// LoadExpectations reads expectations from a YAML or JSON file.
func LoadExpectations(path string) (Expectations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Expectations{}, fmt.Errorf("failed to read expectations: %w", err)
	}
	return ParseExpectations(data)
}

// ParseExpectations decodes YAML or JSON expectations.
func ParseExpectations(data []byte) (Expectations, error) {
	var exp Expectations
	if err := yaml.UnmarshalStrict(data, &exp); err != nil {
		return Expectations{}, fmt.Errorf("failed to parse expectations: %w", err)
	}
	if exp.Kind == "" {
		return Expectations{}, fmt.Errorf("expectations must name a kind")
	}
	for i, f := range exp.Fields {
		if f.Path == "" {
			return Expectations{}, fmt.Errorf("field %d has no path", i)
		}
		switch f.Type {
		case TypeAny, TypeString, TypeNumber, TypeList, TypeObject, TypeConfidence, TypeLocation:
		default:
			return Expectations{}, fmt.Errorf("field %s: unknown type %q", f.Path, f.Type)
		}
	}
	return exp, nil
}

// ParseConfidence reads a confidence as a number in [0,1] (range is checked
// separately). Accepted forms are a JSON number, a numeric string such as
// "0.95", or a percentage string such as "95%" which is divided by 100.
func ParseConfidence(v any) (float64, error) {
	if n, ok := toNumber(v); ok {
		return n, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("expected confidence number or percentage, got %T", v)
	}
	s = strings.TrimSpace(s)
	if pct, found := strings.CutSuffix(s, "%"); found {
		n, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("expected confidence percentage, got %q", s)
		}
		return n / 100, nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("expected confidence number or percentage, got %q", s)
	}
	return n, nil
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
