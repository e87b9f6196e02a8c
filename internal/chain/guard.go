package chain

import (
	"context"
	"strings"

	"github.com/mrz1836/sigilgate/internal/agent"
	"github.com/mrz1836/sigilgate/internal/metrics"
	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

// Latch records that the one automatic switch of a session was issued.
type Latch interface {
	// TryMarkSwitchAttempted sets the flag and reports whether this call set it.
	TryMarkSwitchAttempted() bool
}

// Switcher asks the connected agent to select a chain.
type Switcher interface {
	SwitchChain(ctx context.Context, chainID uint64) error
}

// Guard compares the agent's chain with the required one and negotiates
// add-network and switch-network.
type Guard struct {
	registry *Registry
	switcher Switcher
	logger   agent.Logger
	metrics  *metrics.Metrics
}

// NewGuard creates a guard for the registry's required chain.
func NewGuard(registry *Registry, switcher Switcher, logger agent.Logger) *Guard {
	return &Guard{
		registry: registry,
		switcher: switcher,
		logger:   logger,
		metrics:  metrics.Global,
	}
}

// Required returns the required chain id.
func (g *Guard) Required() uint64 {
	return g.registry.Required().ChainID
}

// Registry returns the configured networks.
func (g *Guard) Registry() *Registry {
	return g.registry
}

// Ensure issues one switch to the required chain when current differs and
// the latch has not been taken yet. The latch is taken before the request.
// Failures are logged and never retried. It reports whether a switch was
// requested.
func (g *Guard) Ensure(ctx context.Context, current uint64, latch Latch) bool {
	required := g.Required()
	if current == 0 || current == required {
		return false
	}
	if !latch.TryMarkSwitchAttempted() {
		g.logger.Debug("chain guard: on chain %d, switch already attempted this session", current)
		return false
	}

	g.metrics.RecordChainSwitch()
	if err := g.switcher.SwitchChain(ctx, required); err != nil {
		g.logger.Error("chain guard: switching %d -> %d: %v", current, required, err)
	}
	return true
}

// AddNetwork registers d with the agent behind p. It succeeds without a
// request when the agent is already on d, and when the agent reports the
// network as already registered.
func (g *Guard) AddNetwork(ctx context.Context, p agent.Provider, d Descriptor) error {
	current, err := agent.ChainID(ctx, p)
	if err != nil {
		g.logger.Debug("add network: reading active chain: %v", err)
	} else if current == d.ChainID {
		return nil
	}

	err = agent.AddChain(ctx, p, d.AddChainParams())
	switch {
	case err == nil:
		return nil
	case AlreadyExists(err):
		g.logger.Debug("add network: %s already registered", d.Name)
		return nil
	case agent.IsUserRejected(err):
		return gateerr.WithCause(gateerr.ErrAddNetworkRejected, err)
	default:
		return gateerr.WithCause(gateerr.ErrChainNegotiation, err)
	}
}

// Switch asks the agent to select a configured chain. Used by the network
// picker; errors are returned to the caller.
func (g *Guard) Switch(ctx context.Context, chainID uint64) error {
	if _, err := g.registry.Lookup(chainID); err != nil {
		return err
	}
	g.metrics.RecordChainSwitch()
	if err := g.switcher.SwitchChain(ctx, chainID); err != nil {
		if agent.IsUserRejected(err) {
			return gateerr.WithCause(gateerr.ErrUserRejected, err)
		}
		return gateerr.WithCause(gateerr.ErrChainNegotiation, err)
	}
	return nil
}

// AlreadyExists reports whether err says the network is already registered.
// Agents signal this only through the message text.
func AlreadyExists(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}
