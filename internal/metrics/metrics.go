// Package metrics provides process-level counters for the connection core.
// Counters are atomic so transports, the probe and the orchestrator can
// record from any goroutine.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics holds application metrics using atomic counters for thread safety.
type Metrics struct {
	// Agent RPC metrics
	agentCallsTotal   atomic.Int64
	agentErrorsTotal  atomic.Int64
	agentLatencyNanos atomic.Int64
	agentRejections   atomic.Int64

	// Connection metrics
	connectAttempts atomic.Int64
	connectFailures atomic.Int64
	disconnects     atomic.Int64
	chainSwitches   atomic.Int64
	invalidations   atomic.Int64

	// Sign-in metrics
	signAttempts atomic.Int64
	signFailures atomic.Int64

	// Probe metrics
	probeRuns      atomic.Int64
	probeAvailable atomic.Int64
}

// Global is the global metrics instance.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// RecordAgentCall records one request to the signing agent.
// rejected is true when the agent reported a user rejection.
func (m *Metrics) RecordAgentCall(duration time.Duration, err error, rejected bool) {
	m.agentCallsTotal.Add(1)
	m.agentLatencyNanos.Add(duration.Nanoseconds())

	if err != nil {
		m.agentErrorsTotal.Add(1)
	}
	if rejected {
		m.agentRejections.Add(1)
	}
}

// RecordConnect records a connect attempt and its outcome.
func (m *Metrics) RecordConnect(err error) {
	m.connectAttempts.Add(1)
	if err != nil {
		m.connectFailures.Add(1)
	}
}

// RecordDisconnect records a disconnect.
func (m *Metrics) RecordDisconnect() {
	m.disconnects.Add(1)
}

// RecordChainSwitch records a switch-network request issued to the agent.
func (m *Metrics) RecordChainSwitch() {
	m.chainSwitches.Add(1)
}

// RecordInvalidation records a session-invalidated notification.
func (m *Metrics) RecordInvalidation() {
	m.invalidations.Add(1)
}

// RecordSign records a sign-in attempt and its outcome.
func (m *Metrics) RecordSign(err error) {
	m.signAttempts.Add(1)
	if err != nil {
		m.signFailures.Add(1)
	}
}

// RecordProbe records one availability probe.
func (m *Metrics) RecordProbe(available bool) {
	m.probeRuns.Add(1)
	if available {
		m.probeAvailable.Add(1)
	}
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	AgentCallsTotal   int64 `json:"agent_calls_total"`
	AgentErrorsTotal  int64 `json:"agent_errors_total"`
	AgentLatencyNanos int64 `json:"agent_latency_nanos"`
	AgentRejections   int64 `json:"agent_rejections"`
	ConnectAttempts   int64 `json:"connect_attempts"`
	ConnectFailures   int64 `json:"connect_failures"`
	Disconnects       int64 `json:"disconnects"`
	ChainSwitches     int64 `json:"chain_switches"`
	Invalidations     int64 `json:"invalidations"`
	SignAttempts      int64 `json:"sign_attempts"`
	SignFailures      int64 `json:"sign_failures"`
	ProbeRuns         int64 `json:"probe_runs"`
	ProbeAvailable    int64 `json:"probe_available"`
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		AgentCallsTotal:   m.agentCallsTotal.Load(),
		AgentErrorsTotal:  m.agentErrorsTotal.Load(),
		AgentLatencyNanos: m.agentLatencyNanos.Load(),
		AgentRejections:   m.agentRejections.Load(),
		ConnectAttempts:   m.connectAttempts.Load(),
		ConnectFailures:   m.connectFailures.Load(),
		Disconnects:       m.disconnects.Load(),
		ChainSwitches:     m.chainSwitches.Load(),
		Invalidations:     m.invalidations.Load(),
		SignAttempts:      m.signAttempts.Load(),
		SignFailures:      m.signFailures.Load(),
		ProbeRuns:         m.probeRuns.Load(),
		ProbeAvailable:    m.probeAvailable.Load(),
	}
}

// AgentCallsTotal returns the total number of agent requests made.
func (m *Metrics) AgentCallsTotal() int64 {
	return m.agentCallsTotal.Load()
}

// AgentLatencyAvgMs returns the average agent latency in milliseconds.
// Returns 0 if no calls have been made.
func (m *Metrics) AgentLatencyAvgMs() float64 {
	calls := m.agentCallsTotal.Load()
	if calls == 0 {
		return 0
	}
	return float64(m.agentLatencyNanos.Load()) / float64(calls) / 1e6
}

// ConnectSuccessRate returns the share of successful connects as a
// percentage (0-100). Returns 0 if nothing was attempted.
func (m *Metrics) ConnectSuccessRate() float64 {
	attempts := m.connectAttempts.Load()
	if attempts == 0 {
		return 0
	}
	return float64(attempts-m.connectFailures.Load()) / float64(attempts) * 100
}

// Reset resets all metrics to zero.
// Useful for testing.
func (m *Metrics) Reset() {
	m.agentCallsTotal.Store(0)
	m.agentErrorsTotal.Store(0)
	m.agentLatencyNanos.Store(0)
	m.agentRejections.Store(0)
	m.connectAttempts.Store(0)
	m.connectFailures.Store(0)
	m.disconnects.Store(0)
	m.chainSwitches.Store(0)
	m.invalidations.Store(0)
	m.signAttempts.Store(0)
	m.signFailures.Store(0)
	m.probeRuns.Store(0)
	m.probeAvailable.Store(0)
}
