package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/agentcheck/pkg/adapter"
)

var _ adapter.Recorder = (*Metrics)(nil)

func TestObserveCall(t *testing.T) {
	m := New()
	m.ObserveCall("standalone", adapter.OutcomeSuccess, 120*time.Millisecond)
	m.ObserveCall("standalone", adapter.OutcomeSuccess, 80*time.Millisecond)
	m.ObserveCall("api_server", "timeout", 30*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.calls.WithLabelValues("standalone", adapter.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("api_server", "timeout")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))

	expected := `
# HELP agentcheck_agent_calls_total Agent calls by protocol mode and outcome.
# TYPE agentcheck_agent_calls_total counter
agentcheck_agent_calls_total{mode="api_server",outcome="timeout"} 1
agentcheck_agent_calls_total{mode="standalone",outcome="success"} 2
`
	require.NoError(t, testutil.CollectAndCompare(m.calls, strings.NewReader(expected)))
}

func TestObserveValidation(t *testing.T) {
	m := New()
	m.ObserveValidation("sentiment", true)
	m.ObserveValidation("sentiment", false)
	m.ObserveValidation("sentiment", false)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.validations.WithLabelValues("sentiment", "fail")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveCall("standalone", adapter.OutcomeSuccess, time.Second)

	path := filepath.Join(t.TempDir(), "agentcheck.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "agentcheck_build_info")
	assert.Contains(t, string(data), `agentcheck_agent_calls_total{mode="standalone",outcome="success"} 1`)
}
