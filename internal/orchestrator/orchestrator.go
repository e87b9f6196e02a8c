// Package orchestrator drives the connect and disconnect lifecycle of a
// signing agent session and keeps the agent on the required network.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/mrz1836/sigilgate/internal/agent"
	"github.com/mrz1836/sigilgate/internal/chain"
	"github.com/mrz1836/sigilgate/internal/classify"
	"github.com/mrz1836/sigilgate/internal/config"
	"github.com/mrz1836/sigilgate/internal/connector"
	"github.com/mrz1836/sigilgate/internal/metrics"
	"github.com/mrz1836/sigilgate/internal/session"
	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

// DisconnectFailedMessage is alerted when the agent refuses to disconnect.
const DisconnectFailedMessage = "Error disconnecting. Please try again."

// Agent is the generic connect primitive.
type Agent interface {
	// Provider returns the explicit provider handle behind c.
	Provider(ctx context.Context, c connector.Connector) (agent.Provider, error)
	Connect(ctx context.Context, c connector.Connector, chainID uint64) (session.Account, error)
	Disconnect(ctx context.Context) error
	// Active returns the provider of the connected agent, or nil.
	Active() agent.Provider
}

// Availability caches which connectors have an agent behind them.
type Availability interface {
	Refresh(ctx context.Context, cs []connector.Connector) (map[string]bool, bool)
	Results() map[string]bool
	Available(id string) (available, known bool)
}

// Obligations re-evaluates and invalidates the sign-in obligations.
type Obligations interface {
	Refresh(ctx context.Context)
	Invalidate(ctx context.Context, chainID uint64)
	ClearFlags(ctx context.Context, chainID uint64) error
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Store    *session.Store
	Catalog  *connector.Catalog
	Probe    Availability
	Guard    *chain.Guard
	Agent    Agent
	Auth     Obligations
	Notifier Notifier
	Alerter  Alerter
	Clock    clock.Clock
	Logger   agent.Logger
}

// Orchestrator is the connection state machine. All state lives in the
// session store.
type Orchestrator struct {
	store    *session.Store
	catalog  *connector.Catalog
	probe    Availability
	guard    *chain.Guard
	agent    Agent
	auth     Obligations
	notifier Notifier
	alerter  Alerter
	clock    clock.Clock
	logger   agent.Logger
	metrics  *metrics.Metrics

	connectDelay    time.Duration
	disconnectDelay time.Duration

	mu      sync.Mutex
	pending map[*clock.Timer]struct{}
}

// New creates an orchestrator.
func New(deps Deps, cfg config.SessionConfig) *Orchestrator {
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Orchestrator{
		store:           deps.Store,
		catalog:         deps.Catalog,
		probe:           deps.Probe,
		guard:           deps.Guard,
		agent:           deps.Agent,
		auth:            deps.Auth,
		notifier:        deps.Notifier,
		alerter:         deps.Alerter,
		clock:           clk,
		logger:          deps.Logger,
		metrics:         metrics.Global,
		connectDelay:    cfg.ConnectReloadDelay,
		disconnectDelay: cfg.DisconnectReloadDelay,
		pending:         map[*clock.Timer]struct{}{},
	}
}

// State returns the current session state.
func (o *Orchestrator) State() session.State {
	return o.store.Snapshot()
}

// RefreshAvailability probes the catalog's connectors when the list changed
// since the last run and returns the cached results.
func (o *Orchestrator) RefreshAvailability(ctx context.Context) map[string]bool {
	results, _ := o.probe.Refresh(ctx, o.catalog.List())
	return results
}

// Connect negotiates a session with the agent behind connectorID. It is a
// no-op while another connect is in flight. Negotiation failures are
// classified, alerted when appropriate and returned.
func (o *Orchestrator) Connect(ctx context.Context, connectorID string) error {
	c, err := o.catalog.Lookup(connectorID)
	if err != nil {
		return err
	}

	if !o.store.BeginConnect(c.ID) {
		o.logger.Debug("connect: %s ignored, a connect is already in flight", c.ID)
		return nil
	}
	defer o.store.EndConnect()

	if available, known := o.probe.Available(c.ID); known && !available {
		err = gateerr.WithDetails(gateerr.ErrProviderUnavailable, map[string]string{"connector": c.ID})
		o.metrics.RecordConnect(err)
		o.fail(c, err)
		return err
	}

	// a different identity may be connecting
	if err := o.auth.ClearFlags(ctx, o.store.Snapshot().Account.ChainID); err != nil {
		o.logger.Warn("connect: clearing sign-in flags: %v", err)
	}

	var acct session.Account
	if c.ExplicitProvider() {
		acct, err = o.connectExplicit(ctx, c)
	} else {
		acct, err = o.agent.Connect(ctx, c, o.guard.Required())
	}
	o.metrics.RecordConnect(err)
	if err != nil {
		o.fail(c, err)
		return err
	}

	o.store.Dispatch(session.AccountChanged{Account: acct})
	o.store.Dispatch(session.ConnectSucceeded{})
	o.logger.Debug("connect: %s connected %s on chain %d", c.ID, acct.Address.Hex(), acct.ChainID)
	o.settle(ctx, acct)
	o.schedule(o.connectDelay, ReasonConnected)
	return nil
}

// connectExplicit requests accounts from the connector's own provider first,
// then registers and selects the required network on it. Network failures
// after the connect are logged only.
func (o *Orchestrator) connectExplicit(ctx context.Context, c connector.Connector) (session.Account, error) {
	p, err := o.agent.Provider(ctx, c)
	if err != nil {
		return session.Account{}, err
	}
	accounts, err := agent.RequestAccounts(ctx, p)
	if err != nil {
		return session.Account{}, err
	}
	if len(accounts) == 0 {
		return session.Account{}, gateerr.ErrNoAccounts
	}

	required := o.guard.Registry().Required()
	acct, err := o.agent.Connect(ctx, c, required.ChainID)
	if err != nil {
		return session.Account{}, err
	}

	if err := o.guard.AddNetwork(ctx, p, required); err != nil {
		o.logger.Warn("connect: adding %s: %v", required.Name, err)
	}
	// the add may already have switched; the switch is issued regardless
	if err := agent.SwitchChain(ctx, p, required.ChainID); err != nil {
		o.logger.Warn("connect: switching to %s: %v", required.Name, err)
	} else {
		acct.ChainID = required.ChainID
	}

	o.store.TryMarkSwitchAttempted()
	o.store.Dispatch(session.ObligationsReset{ChainID: acct.ChainID})
	return acct, nil
}

func (o *Orchestrator) fail(c connector.Connector, err error) {
	res := classify.Classify(err)
	o.logger.Error("connect: %s: %v", c.ID, err)
	if res.Alerts() && o.alerter != nil {
		o.alerter.Alert(res.Message)
	}
	o.store.Dispatch(session.ConnectFailed{Reason: res.Message})
}

// Disconnect drops the session. The session ends Idle even when the agent
// fails to disconnect; that failure is logged and alerted.
func (o *Orchestrator) Disconnect(ctx context.Context) error {
	prev := o.store.Snapshot().Account
	if err := o.auth.ClearFlags(ctx, prev.ChainID); err != nil {
		o.logger.Warn("disconnect: clearing sign-in flags: %v", err)
	}
	o.store.Dispatch(session.DisconnectRequested{})

	err := o.agent.Disconnect(ctx)
	o.metrics.RecordDisconnect()
	if err != nil {
		o.logger.Error("disconnect: %v", err)
		if o.alerter != nil {
			o.alerter.Alert(DisconnectFailedMessage)
		}
	}

	o.schedule(o.disconnectDelay, ReasonDisconnected)
	return nil
}

// HandleAccount applies an account reported by the agent. A transition to
// Disconnected invalidates the previous chain's obligations. A chain change
// while connected invalidates the old chain's obligations. Once connected,
// the chain guard runs and obligations are re-evaluated; while a connect is
// in flight that happens when the connect completes.
func (o *Orchestrator) HandleAccount(ctx context.Context, acct session.Account) {
	prev, next := o.store.Dispatch(session.AccountChanged{Account: acct})

	switch acct.Status {
	case session.StatusDisconnected:
		if prev.Account.ChainID != 0 {
			o.auth.Invalidate(ctx, prev.Account.ChainID)
		}
		if acct.ChainID != 0 && acct.ChainID != prev.Account.ChainID {
			o.auth.Invalidate(ctx, acct.ChainID)
		}

	case session.StatusConnected:
		if prev.Account.Connected() && prev.Account.ChainID != acct.ChainID {
			o.logger.Debug("account: chain changed %d -> %d", prev.Account.ChainID, acct.ChainID)
			o.auth.Invalidate(ctx, prev.Account.ChainID)
		}
		if next.Connecting {
			return
		}
		o.settle(ctx, next.Account)

	case session.StatusConnecting:
	}
}

// settle runs the chain guard for a connected account and re-evaluates
// obligations.
func (o *Orchestrator) settle(ctx context.Context, acct session.Account) {
	o.guard.Ensure(ctx, acct.ChainID, o.store)
	o.auth.Refresh(ctx)
}

// SwitchNetwork asks the agent to select a configured network and closes
// the network picker.
func (o *Orchestrator) SwitchNetwork(ctx context.Context, chainID uint64) error {
	if !o.store.Snapshot().Account.Connected() {
		return gateerr.ErrNotConnected
	}
	if err := o.guard.Switch(ctx, chainID); err != nil {
		return err
	}
	o.store.Dispatch(session.PanelToggled{Panel: session.PanelNetworks, Open: false})
	return nil
}

// AddNetwork registers a configured network with the connected agent.
func (o *Orchestrator) AddNetwork(ctx context.Context, chainID uint64) error {
	d, err := o.guard.Registry().Lookup(chainID)
	if err != nil {
		return err
	}
	p := o.agent.Active()
	if p == nil {
		return gateerr.ErrNotConnected
	}
	return o.guard.AddNetwork(ctx, p, d)
}

// schedule emits one invalidation after d.
func (o *Orchestrator) schedule(d time.Duration, reason Reason) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var t *clock.Timer
	t = o.clock.AfterFunc(d, func() {
		o.mu.Lock()
		delete(o.pending, t)
		o.mu.Unlock()
		o.invalidate(reason)
	})
	o.pending[t] = struct{}{}
}

func (o *Orchestrator) invalidate(reason Reason) {
	id := uuid.NewString()
	prev, _ := o.store.Dispatch(session.Invalidated{ID: id})
	o.metrics.RecordInvalidation()
	o.logger.Debug("session %s invalidated (%s), new session %s", prev.ID, reason, id)
	if o.notifier != nil {
		o.notifier.SessionInvalidated(Invalidation{
			SessionID: id,
			Previous:  prev.ID,
			Reason:    reason,
			At:        o.clock.Now(),
		})
	}
}

// Pending returns the number of scheduled invalidations.
func (o *Orchestrator) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Close cancels scheduled invalidations.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for t := range o.pending {
		t.Stop()
	}
	o.pending = map[*clock.Timer]struct{}{}
}
