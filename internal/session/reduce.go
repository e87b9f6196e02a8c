package session

// Event is one input to the session transition function.
type Event interface {
	apply(s State) State
}

// Reduce returns the state that follows s after e. s is never modified.
func Reduce(s State, e Event) State {
	return e.apply(s.clone())
}

// ConnectStarted claims the connecting guard. It is ignored while a connect
// is already in flight.
type ConnectStarted struct {
	ConnectorID string
}

func (e ConnectStarted) apply(s State) State {
	if s.Connecting {
		return s
	}
	s.Connecting = true
	s.Phase = PhaseConnecting
	s.FailureReason = ""
	s.ConnectorID = e.ConnectorID
	return s
}

// ConnectSucceeded marks the negotiation as complete.
type ConnectSucceeded struct{}

func (ConnectSucceeded) apply(s State) State {
	s.Phase = PhaseConnected
	s.Panels.Connect = false
	return s
}

// ConnectFailed records a failed negotiation.
type ConnectFailed struct {
	Reason string
}

func (e ConnectFailed) apply(s State) State {
	s.Phase = PhaseFailed
	s.FailureReason = e.Reason
	return s
}

// ConnectFinished releases the connecting guard.
type ConnectFinished struct{}

func (ConnectFinished) apply(s State) State {
	s.Connecting = false
	return s
}

// SwitchAttempted records that the one chain switch of this session was issued.
type SwitchAttempted struct{}

func (SwitchAttempted) apply(s State) State {
	s.HasAttemptedSwitch = true
	return s
}

// AccountChanged applies an agent-reported account.
type AccountChanged struct {
	Account Account
}

func (e AccountChanged) apply(s State) State {
	prev := s.Account
	s.Account = e.Account

	switch e.Account.Status {
	case StatusDisconnected:
		s.HasAttemptedSwitch = false
		s.Satisfied = map[Obligation]bool{}
		s.Prompts = map[Domain]bool{}
		if !s.Connecting {
			s.Phase = PhaseIdle
		}

	case StatusConnected:
		if prev.Status == StatusConnected && prev.ChainID != e.Account.ChainID {
			s.Satisfied = map[Obligation]bool{}
			s.Prompts = map[Domain]bool{}
		}
		if prev.Address != e.Account.Address {
			s.Satisfied = map[Obligation]bool{}
			s.Prompts = map[Domain]bool{}
		}
		if !s.Connecting {
			s.Phase = PhaseConnected
		}
		s.Panels.Connect = false

	case StatusConnecting:
	}

	return s
}

// DisconnectRequested resets everything the user can see. The session ends
// Idle whatever the agent answers.
type DisconnectRequested struct{}

func (DisconnectRequested) apply(s State) State {
	s.Phase = PhaseIdle
	s.FailureReason = ""
	s.ConnectorID = ""
	s.Account = Disconnected()
	s.HasAttemptedSwitch = false
	s.Satisfied = map[Obligation]bool{}
	s.Prompts = map[Domain]bool{}
	s.Panels = Panels{}
	return s
}

// Invalidated starts a fresh session id after the shell was told to re-fetch.
type Invalidated struct {
	ID string
}

func (e Invalidated) apply(s State) State {
	s.ID = e.ID
	return s
}

// SignStarted claims the signing guard of a domain. It is ignored while a
// sign request for the same domain is in flight.
type SignStarted struct {
	Domain Domain
}

func (e SignStarted) apply(s State) State {
	if s.Signing[e.Domain] {
		return s
	}
	s.Signing[e.Domain] = true
	return s
}

// SignFinished releases the signing guard of a domain.
type SignFinished struct {
	Domain Domain
}

func (e SignFinished) apply(s State) State {
	delete(s.Signing, e.Domain)
	return s
}

// ObligationsEvaluated records freshly computed obligations for a chain.
// Results for a chain that is no longer the connected one are dropped.
type ObligationsEvaluated struct {
	ChainID   uint64
	Satisfied map[Domain]bool
}

func (e ObligationsEvaluated) apply(s State) State {
	if !s.Account.Connected() || s.Account.ChainID != e.ChainID {
		return s
	}
	for _, d := range Domains() {
		ok := e.Satisfied[d]
		s.Satisfied[Obligation{Domain: d, ChainID: e.ChainID}] = ok
		s.Prompts[d] = !ok
	}
	return s
}

// ObligationSatisfied records a successful sign-in.
type ObligationSatisfied struct {
	Domain  Domain
	ChainID uint64
}

func (e ObligationSatisfied) apply(s State) State {
	if s.Account.ChainID != e.ChainID {
		return s
	}
	s.Satisfied[Obligation{Domain: e.Domain, ChainID: e.ChainID}] = true
	s.Prompts[e.Domain] = false
	return s
}

// ObligationsReset marks both obligations of a chain unsatisfied and hides
// the prompts.
type ObligationsReset struct {
	ChainID uint64
}

func (e ObligationsReset) apply(s State) State {
	for _, d := range Domains() {
		delete(s.Satisfied, Obligation{Domain: d, ChainID: e.ChainID})
	}
	s.Prompts = map[Domain]bool{}
	return s
}

// PanelToggled opens or closes a transient panel. The connect picker cannot
// be opened while a connect is in flight.
type PanelToggled struct {
	Panel Panel
	Open  bool
}

func (e PanelToggled) apply(s State) State {
	switch e.Panel {
	case PanelConnect:
		if e.Open && s.Connecting {
			return s
		}
		s.Panels.Connect = e.Open
	case PanelNetworks:
		s.Panels.Networks = e.Open && s.Account.Connected()
	}
	return s
}
