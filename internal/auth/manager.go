package auth

import (
	"context"
	"encoding/json"

	"github.com/mrz1836/sigilgate/internal/agent"
	"github.com/mrz1836/sigilgate/internal/metrics"
	"github.com/mrz1836/sigilgate/internal/session"
	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

// Result is the outcome of a sign request.
type Result struct {
	Domain  session.Domain `json:"domain"`
	ChainID uint64         `json:"chain_id"`
	// Skipped is true when a sign request for the domain was already in flight.
	Skipped bool   `json:"skipped"`
	Proof   *Proof `json:"proof,omitempty"`
}

// Manager tracks sign-in obligations of the live account. Obligations live
// in the session store; proofs are persisted in the flag store.
type Manager struct {
	store   *session.Store
	flags   FlagStore
	signer  SigningDomain
	logger  agent.Logger
	metrics *metrics.Metrics
}

// NewManager creates a manager.
func NewManager(store *session.Store, flags FlagStore, signer SigningDomain, logger agent.Logger) *Manager {
	return &Manager{
		store:   store,
		flags:   flags,
		signer:  signer,
		logger:  logger,
		metrics: metrics.Global,
	}
}

// NeedsSignIn reports whether domain d still requires a sign-in on chainID.
func (m *Manager) NeedsSignIn(d session.Domain, chainID uint64) bool {
	return m.store.Snapshot().NeedsSignIn(d, chainID)
}

// Prompts returns the domains whose sign-in prompt is shown.
func (m *Manager) Prompts() []session.Domain {
	return m.store.Snapshot().VisiblePrompts()
}

// Refresh recomputes both obligations for the live account from persisted
// proofs. Proofs that no longer hold are removed.
func (m *Manager) Refresh(ctx context.Context) {
	acct := m.store.Snapshot().Account
	if !acct.Connected() || !acct.HasAddress() {
		return
	}

	satisfied := make(map[session.Domain]bool, 2)
	for _, d := range session.Domains() {
		req := Request{Domain: d, Address: acct.Address, ChainID: acct.ChainID}
		proof, err := m.load(ctx, d.FlagKey(acct.ChainID))
		if err != nil {
			m.logger.Warn("auth: reading %s: %v", d.FlagKey(acct.ChainID), err)
		}

		ok := m.signer.Authorized(ctx, req, proof)
		if proof != nil && !ok {
			if err := m.flags.Delete(ctx, d.FlagKey(acct.ChainID)); err != nil {
				m.logger.Warn("auth: dropping stale %s: %v", d.FlagKey(acct.ChainID), err)
			}
		}
		satisfied[d] = ok
	}

	m.store.Dispatch(session.ObligationsEvaluated{ChainID: acct.ChainID, Satisfied: satisfied})
}

// Sign obtains a proof for domain d on the live account. A second call for
// the same domain while one is pending returns a skipped result. Failures
// leave the obligation unsatisfied.
func (m *Manager) Sign(ctx context.Context, d session.Domain) (Result, error) {
	acct := m.store.Snapshot().Account
	if !acct.Connected() {
		return Result{}, gateerr.ErrNotConnected
	}
	res := Result{Domain: d, ChainID: acct.ChainID}

	if !m.store.BeginSign(d) {
		res.Skipped = true
		return res, nil
	}
	defer m.store.EndSign(d)

	proof, err := m.signer.Sign(ctx, Request{Domain: d, Address: acct.Address, ChainID: acct.ChainID})
	m.metrics.RecordSign(err)
	if err != nil {
		m.logger.Error("auth: sign-in for %s on chain %d: %v", d, acct.ChainID, err)
		if gateerr.Is(err, gateerr.ErrSignInFailed) {
			return res, err
		}
		return res, gateerr.WithCause(gateerr.ErrSignInFailed, err)
	}

	data, err := json.Marshal(proof)
	if err == nil {
		err = m.flags.Put(ctx, d.FlagKey(acct.ChainID), data)
	}
	if err != nil {
		m.logger.Warn("auth: persisting %s: %v", d.FlagKey(acct.ChainID), err)
	}

	m.store.Dispatch(session.ObligationSatisfied{Domain: d, ChainID: acct.ChainID})
	res.Proof = proof
	return res, nil
}

// Invalidate marks both obligations of chainID unsatisfied and drops their
// persisted proofs.
func (m *Manager) Invalidate(ctx context.Context, chainID uint64) {
	m.store.Dispatch(session.ObligationsReset{ChainID: chainID})
	if err := m.ClearFlags(ctx, chainID); err != nil {
		m.logger.Warn("auth: clearing flags for chain %d: %v", chainID, err)
	}
}

// ClearFlags drops the persisted proofs of chainID.
func (m *Manager) ClearFlags(ctx context.Context, chainID uint64) error {
	if chainID == 0 {
		return nil
	}
	keys := make([]string, 0, 2)
	for _, d := range session.Domains() {
		keys = append(keys, d.FlagKey(chainID))
	}
	return m.flags.Delete(ctx, keys...)
}

func (m *Manager) load(ctx context.Context, key string) (*Proof, error) {
	data, ok, err := m.flags.Get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	var p Proof
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
