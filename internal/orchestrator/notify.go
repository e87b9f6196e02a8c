package orchestrator

import (
	"time"
)

// Reason says why a session was invalidated.
type Reason string

// Invalidation reasons.
const (
	ReasonConnected    Reason = "connected"
	ReasonDisconnected Reason = "disconnected"
)

// Invalidation tells the shell that every reader depending on the session
// must re-fetch. The shell decides what that means.
type Invalidation struct {
	SessionID string    `json:"session_id"`
	Previous  string    `json:"previous_session_id"`
	Reason    Reason    `json:"reason"`
	At        time.Time `json:"at"`
}

// Notifier receives session invalidations.
type Notifier interface {
	SessionInvalidated(inv Invalidation)
}

// Alerter shows a blocking message to the user.
type Alerter interface {
	Alert(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Invalidation)

// SessionInvalidated calls f.
func (f NotifierFunc) SessionInvalidated(inv Invalidation) { f(inv) }

// AlerterFunc adapts a function to Alerter.
type AlerterFunc func(string)

// Alert calls f.
func (f AlerterFunc) Alert(message string) { f(message) }
