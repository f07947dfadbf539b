package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// ErrorKind classifies transport failures.
type ErrorKind string

const (
	KindConnectionRefused ErrorKind = "connection_refused"
	KindTimeout           ErrorKind = "timeout"
	KindHTTPStatus        ErrorKind = "http_status"
	KindMalformedBody     ErrorKind = "malformed_body"
	KindNetwork           ErrorKind = "network"
)

// TransportError means the agent could not be reached or answered with
// something that is not a usable response.
type TransportError struct {
	Kind       ErrorKind
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		if e.Body != "" {
			return fmt.Sprintf("%s %s: HTTP %d - %s", e.Method, e.URL, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
	case KindMalformedBody:
		return fmt.Sprintf("%s %s: malformed response body: %v", e.Method, e.URL, e.Err)
	default:
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.URL, e.Kind, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SchemaError means the body parsed as JSON but violates the wire contract.
type SchemaError struct {
	URL     string
	Missing []string
	Reason  string
	Body    string
}

func (e *SchemaError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: response is missing required fields: %s", e.URL, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s: response violates contract: %s", e.URL, e.Reason)
}

// AgentError means the agent answered well-formed JSON that reports its own failure.
type AgentError struct {
	URL       string
	Message   string
	ErrorType string
	Body      string
}

func (e *AgentError) Error() string {
	if e.ErrorType != "" {
		return fmt.Sprintf("%s: agent reported %s: %s", e.URL, e.ErrorType, e.Message)
	}
	return fmt.Sprintf("%s: agent reported error: %s", e.URL, e.Message)
}

// newTransportError classifies an error returned by http.Client.Do or while reading the body.
func newTransportError(method, url string, err error) *TransportError {
	return &TransportError{
		Kind:   classify(err),
		Method: method,
		URL:    url,
		Err:    err,
	}
}

func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindConnectionRefused
	}
	return KindNetwork
}

// KindOf returns the transport kind of err, or "" if err is not a TransportError.
func KindOf(err error) ErrorKind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// IsTransient reports whether a caller-side retry could plausibly succeed.
func IsTransient(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	switch te.Kind {
	case KindConnectionRefused, KindTimeout, KindNetwork:
		return true
	case KindHTTPStatus:
		return te.StatusCode >= http.StatusInternalServerError || te.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}

// RawBody returns the diagnostic body carried by any client error.
func RawBody(err error) string {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Body
	}
	var se *SchemaError
	if errors.As(err, &se) {
		return se.Body
	}
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Body
	}
	return ""
}
