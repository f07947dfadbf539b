// Package validate checks normalized agent responses against per-agent
// expectations and reports every mismatch in one pass.
package validate

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/kagent-dev/agentcheck/pkg/client"
	"github.com/kagent-dev/agentcheck/pkg/normalize"
)

// FieldType is the expected shape of a data field.
type FieldType string

const (
	TypeAny        FieldType = ""
	TypeString     FieldType = "string"
	TypeNumber     FieldType = "number"
	TypeList       FieldType = "list"
	TypeObject     FieldType = "object"
	TypeConfidence FieldType = "confidence"
	TypeLocation   FieldType = "location"
)

// FieldRule describes one field under data, addressed by a dotted path.
type FieldRule struct {
	Path     string    `json:"path"`
	Required bool      `json:"required,omitempty"`
	Type     FieldType `json:"type,omitempty"`
	// Enum lists the allowed values of a string field, compared case-insensitively.
	Enum []string `json:"enum,omitempty"`
	// Min and Max bound number fields.
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
	// Prefixes lists the allowed prefixes of a location field.
	Prefixes []string `json:"prefixes,omitempty"`
}

// Expectations are what a response from one kind of agent must satisfy.
type Expectations struct {
	Kind           string `json:"kind"`
	RequireMessage bool   `json:"requireMessage,omitempty"`
	// Roots are alternative dotted prefixes under data where the fields may
	// sit. The first root holding the first field wins; "" is data itself.
	Roots  []string    `json:"roots,omitempty"`
	Fields []FieldRule `json:"fields,omitempty"`
}

// FailureKind classifies a failure.
type FailureKind string

const (
	FailureMissing      FailureKind = "missing"
	FailureTypeMismatch FailureKind = "type_mismatch"
	FailureNotAllowed   FailureKind = "not_allowed"
	FailureOutOfRange   FailureKind = "out_of_range"
	FailureTransport    FailureKind = "transport"
	FailureSchema       FailureKind = "schema"
	FailureAgent        FailureKind = "agent"
)

// Structural reports whether the failure concerns the response's shape
// rather than its values.
func (k FailureKind) Structural() bool {
	switch k {
	case FailureNotAllowed, FailureOutOfRange:
		return false
	default:
		return true
	}
}

// Failure is one mismatch.
type Failure struct {
	Kind   FailureKind `json:"kind"`
	Field  string      `json:"field,omitempty"`
	Detail string      `json:"detail"`
}

func (f Failure) String() string {
	if f.Field == "" {
		return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", f.Field, f.Kind, f.Detail)
}

// Result is the outcome of a validation. Failures are ordered: structural
// failures precede value failures.
type Result struct {
	Kind     string    `json:"kind"`
	Pass     bool      `json:"pass"`
	Failures []Failure `json:"failures,omitempty"`
}

// Messages renders the failures as strings.
func (r Result) Messages() []string {
	out := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		out[i] = f.String()
	}
	return out
}

// FirstStructural returns the first failure about the response's shape.
func (r Result) FirstStructural() (Failure, bool) {
	for _, f := range r.Failures {
		if f.Kind.Structural() {
			return f, true
		}
	}
	return Failure{}, false
}

// Err joins the failures, or returns nil when the result passed.
func (r Result) Err() error {
	var result *multierror.Error
	for _, f := range r.Failures {
		result = multierror.Append(result, errors.New(f.String()))
	}
	return result.ErrorOrNil()
}

type checker struct {
	failures []Failure
	skip     map[string]bool
}

func (c *checker) fail(kind FailureKind, field, format string, args ...any) {
	c.failures = append(c.failures, Failure{Kind: kind, Field: field, Detail: fmt.Sprintf(format, args...)})
	if field != "" {
		c.skip[field] = true
	}
}

// Validate checks resp against exp. Mismatches are never errors; they are
// collected in the result. A missing field is reported once and its value
// checks are skipped.
func Validate(resp *normalize.AgentResponse, exp Expectations) Result {
	c := &checker{skip: map[string]bool{}}
	if resp == nil {
		c.fail(FailureMissing, "", "no response")
		return c.result(exp)
	}

	if exp.RequireMessage && strings.TrimSpace(resp.Message) == "" {
		c.fail(FailureMissing, "message", "message is missing or empty")
	}
	if resp.Data == nil {
		c.fail(FailureMissing, "data", "data is missing")
		return c.result(exp)
	}

	root := selectRoot(resp.Data, exp)
	values := make(map[string]any, len(exp.Fields))
	rules := make(map[string]FieldRule, len(exp.Fields))
	for _, rule := range exp.Fields {
		rules[fieldName(root, rule.Path)] = rule
	}

	// presence, parents before children
	for _, rule := range byDepth(exp.Fields) {
		name := fieldName(root, rule.Path)
		if c.parentFailed(name, rules, values) {
			c.skip[name] = true
			continue
		}
		v, ok := lookup(resp.Data, joinPath(root, rule.Path))
		if !ok || v == nil {
			if rule.Required {
				c.fail(FailureMissing, name, "required field is missing")
			} else {
				c.skip[name] = true
			}
			continue
		}
		values[name] = v
	}

	// types
	numbers := make(map[string]float64)
	for _, rule := range exp.Fields {
		name := fieldName(root, rule.Path)
		if c.skip[name] {
			continue
		}
		if n, ok := checkType(c, name, rule.Type, values[name]); ok {
			numbers[name] = n
		}
	}

	// values
	for _, rule := range exp.Fields {
		name := fieldName(root, rule.Path)
		if c.skip[name] {
			continue
		}
		checkValue(c, name, rule, values[name], numbers[name])
	}

	return c.result(exp)
}

// parentFailed reports whether an enclosing field of name is already skipped
// or is declared as an object but holds something else. Its own failure covers
// the children.
func (c *checker) parentFailed(name string, rules map[string]FieldRule, values map[string]any) bool {
	for parent := name; ; {
		i := strings.LastIndex(parent, ".")
		if i < 0 {
			return false
		}
		parent = parent[:i]
		if c.skip[parent] {
			return true
		}
		rule, ok := rules[parent]
		if !ok || rule.Type != TypeObject {
			continue
		}
		if v, ok := values[parent]; ok {
			if _, isObject := v.(map[string]any); !isObject {
				return true
			}
		}
	}
}

func byDepth(fields []FieldRule) []FieldRule {
	out := slices.Clone(fields)
	slices.SortStableFunc(out, func(a, b FieldRule) int {
		return strings.Count(a.Path, ".") - strings.Count(b.Path, ".")
	})
	return out
}

func (c *checker) result(exp Expectations) Result {
	return Result{Kind: exp.Kind, Pass: len(c.failures) == 0, Failures: c.failures}
}

// checkType reports a type mismatch for v and returns its numeric value for
// number and confidence fields.
func checkType(c *checker, name string, t FieldType, v any) (float64, bool) {
	switch t {
	case TypeString:
		if _, ok := v.(string); !ok {
			c.fail(FailureTypeMismatch, name, "expected string, got %T", v)
		}
	case TypeLocation:
		if s, ok := v.(string); !ok || strings.TrimSpace(s) == "" {
			c.fail(FailureTypeMismatch, name, "expected non-empty location string, got %#v", v)
		}
	case TypeList:
		if _, ok := v.([]any); !ok {
			if _, ok := v.([]string); !ok {
				c.fail(FailureTypeMismatch, name, "expected list, got %T", v)
			}
		}
	case TypeObject:
		if _, ok := v.(map[string]any); !ok {
			c.fail(FailureTypeMismatch, name, "expected object, got %T", v)
		}
	case TypeNumber:
		n, ok := toNumber(v)
		if !ok {
			c.fail(FailureTypeMismatch, name, "expected number, got %#v", v)
			return 0, false
		}
		return n, true
	case TypeConfidence:
		n, err := ParseConfidence(v)
		if err != nil {
			c.fail(FailureTypeMismatch, name, "%v", err)
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func checkValue(c *checker, name string, rule FieldRule, v any, n float64) {
	if len(rule.Enum) > 0 {
		s := fmt.Sprint(v)
		allowed := false
		for _, e := range rule.Enum {
			if strings.EqualFold(strings.TrimSpace(s), e) {
				allowed = true
				break
			}
		}
		if !allowed {
			c.fail(FailureNotAllowed, name, "%q is not one of %s", s, strings.Join(rule.Enum, ", "))
		}
	}

	if rule.Type == TypeNumber || rule.Type == TypeConfidence {
		lo, hi := math.Inf(-1), math.Inf(1)
		if rule.Type == TypeConfidence {
			lo, hi = 0, 1
		}
		if rule.Min != nil {
			lo = *rule.Min
		}
		if rule.Max != nil {
			hi = *rule.Max
		}
		if n < lo || n > hi {
			c.fail(FailureOutOfRange, name, "%v is outside [%v, %v]", v, lo, hi)
		}
	}

	if len(rule.Prefixes) > 0 {
		s, _ := v.(string)
		allowed := false
		for _, p := range rule.Prefixes {
			if strings.HasPrefix(strings.ToLower(s), strings.ToLower(p)) {
				allowed = true
				break
			}
		}
		if !allowed {
			c.fail(FailureNotAllowed, name, "%q does not start with one of %s", s, strings.Join(rule.Prefixes, ", "))
		}
	}
}

// ValidateCall validates the outcome of an adapter call. A call error becomes
// structural failures: one per missing top-level field for schema errors, a
// single failure naming the kind for transport errors.
func ValidateCall(resp *normalize.AgentResponse, err error, exp Expectations) Result {
	if err == nil {
		return Validate(resp, exp)
	}

	c := &checker{skip: map[string]bool{}}
	var (
		te *client.TransportError
		se *client.SchemaError
		ae *client.AgentError
	)
	switch {
	case errors.As(err, &te):
		c.fail(FailureTransport, "", "%s: %v", te.Kind, err)
	case errors.As(err, &se):
		if len(se.Missing) == 0 {
			c.fail(FailureSchema, "", "%s", se.Reason)
		}
		for _, field := range se.Missing {
			c.fail(FailureMissing, field, "required top-level field is missing")
		}
	case errors.As(err, &ae):
		c.fail(FailureAgent, "", "%v", err)
	default:
		c.fail(FailureAgent, "", "call failed: %v", err)
	}
	return c.result(exp)
}

func selectRoot(data map[string]any, exp Expectations) string {
	if len(exp.Roots) == 0 || len(exp.Fields) == 0 {
		return ""
	}
	anchor := exp.Fields[0].Path
	for _, root := range exp.Roots {
		if v, ok := lookup(data, joinPath(root, anchor)); ok && v != nil {
			return root
		}
	}
	return exp.Roots[0]
}

func joinPath(root, path string) string {
	if root == "" {
		return path
	}
	return root + "." + path
}

func fieldName(root, path string) string {
	return "data." + joinPath(root, path)
}

func lookup(data map[string]any, path string) (any, bool) {
	var cur any = data
	for _, segment := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[segment]; !ok {
			return nil, false
		}
	}
	return cur, true
}
