package session

import "sync"

// Store serializes transitions of one session and publishes every new state.
// The lock is never held while subscribers run.
type Store struct {
	mu    sync.Mutex
	state State
	subs  []func(State)
}

// NewStore creates a store holding the initial state of a session.
func NewStore(id string) *Store {
	return &Store{state: NewState(id)}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn to receive every state produced by Dispatch.
func (s *Store) Subscribe(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Dispatch applies e and returns the states before and after it.
func (s *Store) Dispatch(e Event) (prev, next State) {
	s.mu.Lock()
	prev = s.state
	s.state = Reduce(prev, e)
	next = s.state.clone()
	subs := append([]func(State){}, s.subs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return prev, next
}

// BeginConnect claims the connecting guard and reports whether it was free.
func (s *Store) BeginConnect(connectorID string) bool {
	prev, next := s.Dispatch(ConnectStarted{ConnectorID: connectorID})
	return !prev.Connecting && next.Connecting
}

// EndConnect releases the connecting guard.
func (s *Store) EndConnect() {
	s.Dispatch(ConnectFinished{})
}

// BeginSign claims the signing guard of d and reports whether it was free.
func (s *Store) BeginSign(d Domain) bool {
	prev, next := s.Dispatch(SignStarted{Domain: d})
	return !prev.Signing[d] && next.Signing[d]
}

// EndSign releases the signing guard of d.
func (s *Store) EndSign(d Domain) {
	s.Dispatch(SignFinished{Domain: d})
}

// TryMarkSwitchAttempted sets hasAttemptedSwitch and reports whether this
// call was the one that set it.
func (s *Store) TryMarkSwitchAttempted() bool {
	prev, _ := s.Dispatch(SwitchAttempted{})
	return !prev.HasAttemptedSwitch
}
