package agent

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/mrz1836/sigilgate/internal/connector"
	"github.com/mrz1836/sigilgate/internal/session"
	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

// HandleSource yields the injected agent handle. A nil handle with a nil
// error means no agent is present.
type HandleSource interface {
	Handle(ctx context.Context) (Handle, error)
}

// Wallet is the generic connect primitive over a handle. It tracks the
// live account and publishes every change to its listeners.
type Wallet struct {
	source HandleSource
	logger Logger

	mu        sync.Mutex
	provider  Provider
	account   session.Account
	listeners []func(session.Account)
}

// NewWallet creates a wallet over source.
func NewWallet(source HandleSource, logger Logger) *Wallet {
	return &Wallet{
		source:  source,
		logger:  logger,
		account: session.Disconnected(),
	}
}

// OnAccount registers fn to receive every account change.
// fn runs on the goroutine that observed the change, without wallet locks held.
func (w *Wallet) OnAccount(fn func(session.Account)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Account returns the live account.
func (w *Wallet) Account() session.Account {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.account
}

// Active returns the provider of the connected agent, or nil.
func (w *Wallet) Active() Provider {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.provider
}

// Provider returns the explicit provider handle for c.
func (w *Wallet) Provider(ctx context.Context, c connector.Connector) (Provider, error) {
	h, err := w.source.Handle(ctx)
	if err != nil {
		return nil, gateerr.WithCause(gateerr.ErrProviderUnavailable, err)
	}
	if h == nil {
		return nil, gateerr.ErrProviderUnavailable
	}

	if c.Marker == "" {
		if ph, ok := h.(interface{ Primary() SubProvider }); ok {
			return ph.Primary().Provider, nil
		}
		return nil, gateerr.ErrProviderUnavailable
	}
	sub, ok := Find(h, c.Marker)
	if !ok {
		return nil, gateerr.WithDetails(gateerr.ErrProviderUnavailable, map[string]string{"connector": c.ID})
	}
	return sub.Provider, nil
}

// Connect requests accounts from the agent behind c and, when chainID is
// non-zero, asks it to select that chain. A user rejection of the switch
// fails the connect; any other switch failure keeps the agent's chain.
func (w *Wallet) Connect(ctx context.Context, c connector.Connector, chainID uint64) (session.Account, error) {
	p, err := w.Provider(ctx, c)
	if err != nil {
		return session.Account{}, err
	}

	accounts, err := RequestAccounts(ctx, p)
	if err != nil {
		return session.Account{}, err
	}
	if len(accounts) == 0 {
		return session.Account{}, gateerr.ErrNoAccounts
	}

	current, err := ChainID(ctx, p)
	if err != nil {
		return session.Account{}, err
	}
	if chainID != 0 && current != chainID {
		if err := SwitchChain(ctx, p, chainID); err != nil {
			if IsUserRejected(err) {
				return session.Account{}, err
			}
			w.logger.Warn("connect: switching to chain %d: %v", chainID, err)
		} else {
			current = chainID
		}
	}

	acct := session.Account{Address: accounts[0], ChainID: current, Status: session.StatusConnected}
	w.mu.Lock()
	w.provider = p
	w.mu.Unlock()
	w.setAccount(acct)
	return acct, nil
}

// Resume reattaches to an agent that already exposes accounts to this
// client, without prompting. The account is Disconnected when it does not.
func (w *Wallet) Resume(ctx context.Context, c connector.Connector) (session.Account, error) {
	p, err := w.Provider(ctx, c)
	if err != nil {
		return session.Disconnected(), err
	}

	accounts, err := Accounts(ctx, p)
	if err != nil {
		return session.Disconnected(), err
	}
	if len(accounts) == 0 {
		return session.Disconnected(), nil
	}
	chainID, err := ChainID(ctx, p)
	if err != nil {
		return session.Disconnected(), err
	}

	acct := session.Account{Address: accounts[0], ChainID: chainID, Status: session.StatusConnected}
	w.mu.Lock()
	w.provider = p
	w.mu.Unlock()
	w.setAccount(acct)
	return acct, nil
}

// Disconnect revokes the account permission and forgets the agent. The
// wallet ends Disconnected even when the agent call fails.
func (w *Wallet) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	p := w.provider
	w.provider = nil
	w.mu.Unlock()

	var err error
	if p != nil {
		err = RevokePermissions(ctx, p)
		if ErrorCode(err) == CodeUnsupportedMethod {
			err = nil
		}
	}
	w.setAccount(session.Disconnected())
	return err
}

// SwitchChain asks the connected agent to select chainID.
func (w *Wallet) SwitchChain(ctx context.Context, chainID uint64) error {
	p := w.Active()
	if p == nil {
		return gateerr.ErrNotConnected
	}
	if err := SwitchChain(ctx, p, chainID); err != nil {
		return err
	}

	acct := w.Account()
	if acct.Connected() {
		acct.ChainID = chainID
		w.setAccount(acct)
	}
	return nil
}

// Watch follows account changes of the connected agent until ctx is done or
// the agent goes away. Transports that push notifications are followed
// directly; others are polled every interval.
func (w *Wallet) Watch(ctx context.Context, clk clock.Clock, interval time.Duration) error {
	p := w.Active()
	if p == nil {
		return gateerr.ErrNotConnected
	}
	if src, ok := p.(EventSource); ok {
		return w.follow(ctx, src.Events())
	}
	return w.poll(ctx, p, clk, interval)
}

func (w *Wallet) follow(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				w.setAccount(session.Disconnected())
				return nil
			}
			w.apply(ev)
		}
	}
}

func (w *Wallet) apply(ev Event) {
	acct := w.Account()
	switch ev.Kind {
	case EventAccountsChanged:
		if len(ev.Accounts) == 0 {
			w.setAccount(session.Disconnected())
			return
		}
		acct.Address = ev.Accounts[0]
		acct.Status = session.StatusConnected
		w.setAccount(acct)
	case EventChainChanged:
		if !acct.Connected() {
			return
		}
		acct.ChainID = ev.ChainID
		w.setAccount(acct)
	case EventDisconnect:
		if ev.Err != nil {
			w.logger.Debug("agent disconnected: %v", ev.Err)
		}
		w.setAccount(session.Disconnected())
	}
}

func (w *Wallet) poll(ctx context.Context, p Provider, clk clock.Clock, interval time.Duration) error {
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		accounts, err := Accounts(ctx, p)
		if err != nil {
			w.logger.Debug("watch: reading accounts: %v", err)
			continue
		}
		if len(accounts) == 0 {
			w.setAccount(session.Disconnected())
			continue
		}
		chainID, err := ChainID(ctx, p)
		if err != nil {
			w.logger.Debug("watch: reading chain: %v", err)
			continue
		}
		w.setAccount(session.Account{Address: accounts[0], ChainID: chainID, Status: session.StatusConnected})
	}
}

func (w *Wallet) setAccount(acct session.Account) {
	w.mu.Lock()
	if w.account == acct {
		w.mu.Unlock()
		return
	}
	w.account = acct
	listeners := append([]func(session.Account){}, w.listeners...)
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(acct)
	}
}
