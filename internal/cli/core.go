package cli

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mrz1836/sigilgate/internal/agent"
	"github.com/mrz1836/sigilgate/internal/auth"
	"github.com/mrz1836/sigilgate/internal/chain"
	"github.com/mrz1836/sigilgate/internal/connector"
	"github.com/mrz1836/sigilgate/internal/orchestrator"
	"github.com/mrz1836/sigilgate/internal/output"
	"github.com/mrz1836/sigilgate/internal/probe"
	"github.com/mrz1836/sigilgate/internal/session"
)

// invalidationSlack is how long past its scheduled delay an invalidation
// is waited for.
const invalidationSlack = 2 * time.Second

// core is the connection core wired for one command invocation.
type core struct {
	cc         *CommandContext
	catalog    *connector.Catalog
	registry   *chain.Registry
	discoverer *agent.Discoverer
	wallet     *agent.Wallet
	probe      *probe.Probe
	store      *session.Store
	flags      auth.FlagStore
	signer     *auth.TypedDataSigner
	auth       *auth.Manager
	guard      *chain.Guard
	orch       *orchestrator.Orchestrator
	notices    chan orchestrator.Invalidation
}

func newCore(cc *CommandContext, sessionID string) (*core, error) {
	cfg := cc.Config

	registry, err := chain.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	flags, err := auth.OpenStore(cfg.Auth)
	if err != nil {
		return nil, err
	}

	c := &core{
		cc:       cc,
		catalog:  connector.FromConfig(cfg.Connectors),
		registry: registry,
		store:    session.NewStore(sessionID),
		flags:    flags,
		notices:  make(chan orchestrator.Invalidation, 4),
	}

	source := cc.Source
	if source == nil {
		c.discoverer = agent.NewDiscoverer(cfg.Agent, cc.Logger)
		source = c.discoverer
	}
	c.wallet = agent.NewWallet(source, cc.Logger)
	c.probe = probe.New(source, cfg.Probe, cc.Clock, cc.Logger)
	c.guard = chain.NewGuard(registry, c.wallet, cc.Logger)
	c.signer = auth.NewTypedDataSigner(c.wallet.Active, cfg.Auth, cc.Clock)
	c.auth = auth.NewManager(c.store, flags, c.signer, cc.Logger)
	c.orch = orchestrator.New(orchestrator.Deps{
		Store:    c.store,
		Catalog:  c.catalog,
		Probe:    c.probe,
		Guard:    c.guard,
		Agent:    c.wallet,
		Auth:     c.auth,
		Notifier: orchestrator.NotifierFunc(c.notify),
		Alerter:  orchestrator.AlerterFunc(c.alert),
		Clock:    cc.Clock,
		Logger:   cc.Logger,
	}, cfg.Session)

	return c, nil
}

// openCore wires a core for a new session.
func openCore(cc *CommandContext) (*core, error) {
	return newCore(cc, uuid.NewString())
}

// follow routes agent account changes into the orchestrator.
func (c *core) follow(ctx context.Context) {
	c.wallet.OnAccount(func(acct session.Account) {
		c.orch.HandleAccount(ctx, acct)
	})
}

// resume reattaches to an agent that already granted accounts through the
// connector, without prompting, and evaluates sign-in obligations.
func (c *core) resume(ctx context.Context, connectorID string) (session.Account, error) {
	conn, err := c.catalog.Lookup(connectorID)
	if err != nil {
		return session.Account{}, err
	}
	acct, err := c.wallet.Resume(ctx, conn)
	if err != nil {
		return acct, err
	}
	c.store.Dispatch(session.AccountChanged{Account: acct})
	if acct.Connected() {
		c.store.Dispatch(session.ConnectStarted{ConnectorID: conn.ID})
		c.store.Dispatch(session.ConnectSucceeded{})
		c.store.Dispatch(session.ConnectFinished{})
		c.auth.Refresh(ctx)
	}
	return acct, nil
}

// awaitInvalidation waits for the next session invalidation.
func (c *core) awaitInvalidation(ctx context.Context, timeout time.Duration) (orchestrator.Invalidation, bool) {
	t := c.cc.Clock.Timer(timeout)
	defer t.Stop()

	select {
	case inv := <-c.notices:
		return inv, true
	case <-t.C:
		return orchestrator.Invalidation{}, false
	case <-ctx.Done():
		return orchestrator.Invalidation{}, false
	}
}

// settleSession waits for the invalidation scheduled by a connect or
// disconnect and returns the reloaded session. Without one the current
// session is returned.
func (c *core) settleSession(ctx context.Context, connectorID string, delay time.Duration) (session.State, error) {
	inv, ok := c.awaitInvalidation(ctx, delay+invalidationSlack)
	if !ok {
		return c.orch.State(), nil
	}
	return c.reload(ctx, connectorID, inv)
}

func (c *core) notify(inv orchestrator.Invalidation) {
	select {
	case c.notices <- inv:
	default:
		c.cc.Logger.Warn("session invalidation %s dropped", inv.SessionID)
	}
}

func (c *core) alert(message string) {
	output.Warnf(c.cc.Alerts, "%s", message)
}

// reload discards all in-memory state after an invalidation and re-reads
// the agent into a fresh session.
func (c *core) reload(ctx context.Context, connectorID string, inv orchestrator.Invalidation) (session.State, error) {
	c.cc.Logger.Debug("session %s invalidated (%s), reloading as %s", inv.Previous, inv.Reason, inv.SessionID)

	fresh, err := newCore(c.cc, inv.SessionID)
	if err != nil {
		return session.State{}, err
	}
	defer fresh.close()

	if _, err := fresh.resume(ctx, connectorID); err != nil {
		return session.State{}, err
	}
	return fresh.store.Snapshot(), nil
}

func (c *core) close() {
	c.orch.Close()
	if c.discoverer != nil {
		c.discoverer.Reset()
	}
	_ = c.flags.Close()
}
