package session

// Phase is the connection orchestrator's position in its state machine.
type Phase int

// Orchestrator phases. There is no terminal phase.
const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseConnected
	PhaseFailed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Obligation identifies one sign-in requirement.
type Obligation struct {
	Domain  Domain
	ChainID uint64
}

// Panel is a transient UI surface the core may close.
type Panel int

// Panels.
const (
	PanelConnect Panel = iota + 1
	PanelNetworks
)

// Panels records which transient surfaces are open.
type Panels struct {
	Connect  bool `json:"connect"`
	Networks bool `json:"networks"`
}

// State is the whole session as seen by the shell.
type State struct {
	ID            string  `json:"id"`
	Phase         Phase   `json:"phase"`
	FailureReason string  `json:"failure_reason,omitempty"`
	ConnectorID   string  `json:"connector_id,omitempty"`
	Account       Account `json:"account"`
	Panels        Panels  `json:"panels"`

	// In-flight guards.
	Connecting         bool            `json:"connecting"`
	HasAttemptedSwitch bool            `json:"has_attempted_switch"`
	Signing            map[Domain]bool `json:"-"`

	// Satisfied holds evaluated obligations; a missing entry is unsatisfied.
	Satisfied map[Obligation]bool `json:"-"`
	// Prompts holds the sign-in prompts currently shown.
	Prompts map[Domain]bool `json:"-"`
}

// NewState returns the initial state of a session.
func NewState(id string) State {
	return State{
		ID:        id,
		Phase:     PhaseIdle,
		Account:   Disconnected(),
		Signing:   map[Domain]bool{},
		Satisfied: map[Obligation]bool{},
		Prompts:   map[Domain]bool{},
	}
}

// NeedsSignIn reports whether the domain still requires a sign-in on chainID.
func (s State) NeedsSignIn(d Domain, chainID uint64) bool {
	return !s.Satisfied[Obligation{Domain: d, ChainID: chainID}]
}

// IsSigning reports whether a sign request for the domain is in flight.
func (s State) IsSigning(d Domain) bool {
	return s.Signing[d]
}

// VisiblePrompts returns the domains whose sign-in prompt is shown, in prompt order.
func (s State) VisiblePrompts() []Domain {
	var out []Domain
	for _, d := range Domains() {
		if s.Prompts[d] {
			out = append(out, d)
		}
	}
	return out
}

func (s State) clone() State {
	c := s
	c.Signing = make(map[Domain]bool, len(s.Signing))
	for k, v := range s.Signing {
		c.Signing[k] = v
	}
	c.Satisfied = make(map[Obligation]bool, len(s.Satisfied))
	for k, v := range s.Satisfied {
		c.Satisfied[k] = v
	}
	c.Prompts = make(map[Domain]bool, len(s.Prompts))
	for k, v := range s.Prompts {
		c.Prompts[k] = v
	}
	return c
}
