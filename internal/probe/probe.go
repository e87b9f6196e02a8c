// Package probe determines which connectors have a usable signing agent
// behind them.
package probe

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/mrz1836/sigilgate/internal/agent"
	"github.com/mrz1836/sigilgate/internal/config"
	"github.com/mrz1836/sigilgate/internal/connector"
	"github.com/mrz1836/sigilgate/internal/metrics"
)

// Probe checks connector availability against the injected agent handle.
// The handle may appear late, so every run waits a settle delay and then
// polls the source a bounded number of times.
type Probe struct {
	source   agent.HandleSource
	clock    clock.Clock
	settle   time.Duration
	attempts int
	interval time.Duration
	logger   agent.Logger
	metrics  *metrics.Metrics

	mu      sync.RWMutex
	results map[string]bool
	probed  []string
}

// New creates a probe over source.
func New(source agent.HandleSource, cfg config.ProbeConfig, clk clock.Clock, logger agent.Logger) *Probe {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Probe{
		source:   source,
		clock:    clk,
		settle:   cfg.SettleDelay,
		attempts: attempts,
		interval: cfg.PollInterval,
		logger:   logger,
		metrics:  metrics.Global,
		results:  map[string]bool{},
	}
}

// Probe reports whether c is available. The result is cached.
func (p *Probe) Probe(ctx context.Context, c connector.Connector) bool {
	h := p.handle(ctx)
	ok := p.check(h, c)

	p.mu.Lock()
	p.results[c.ID] = ok
	p.mu.Unlock()
	return ok
}

// ProbeAll probes every connector against one handle lookup and replaces
// the cached results.
func (p *Probe) ProbeAll(ctx context.Context, cs []connector.Connector) map[string]bool {
	h := p.handle(ctx)

	out := make(map[string]bool, len(cs))
	ids := make([]string, 0, len(cs))
	for _, c := range cs {
		out[c.ID] = p.check(h, c)
		ids = append(ids, c.ID)
	}

	p.mu.Lock()
	p.results = out
	p.probed = ids
	p.mu.Unlock()

	result := make(map[string]bool, len(out))
	for k, v := range out {
		result[k] = v
	}
	return result
}

// Refresh re-runs ProbeAll only when the connector list differs from the
// last probed one. It reports whether probing ran.
func (p *Probe) Refresh(ctx context.Context, cs []connector.Connector) (map[string]bool, bool) {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}

	p.mu.RLock()
	same := p.probed != nil && slices.Equal(p.probed, ids)
	p.mu.RUnlock()
	if same {
		return p.Results(), false
	}
	return p.ProbeAll(ctx, cs), true
}

// Results returns a copy of the cached availability map.
func (p *Probe) Results() map[string]bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]bool, len(p.results))
	for k, v := range p.results {
		out[k] = v
	}
	return out
}

// Available returns the cached availability of a connector. known is false
// when the connector was never probed.
func (p *Probe) Available(id string) (available, known bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	available, known = p.results[id]
	return available, known
}

// handle waits the settle delay, then polls the source until it yields a
// handle, the attempts run out or ctx is done. nil means no agent.
func (p *Probe) handle(ctx context.Context) agent.Handle {
	if !p.sleep(ctx, p.settle) {
		return nil
	}

	for attempt := 1; attempt <= p.attempts; attempt++ {
		h, err := p.source.Handle(ctx)
		if err != nil {
			p.logger.Debug("probe: attempt %d: %v", attempt, err)
		}
		if h != nil {
			return h
		}
		if attempt < p.attempts && !p.sleep(ctx, p.interval) {
			return nil
		}
	}
	p.logger.Debug("probe: no agent handle after %d attempts", p.attempts)
	return nil
}

func (p *Probe) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-p.clock.After(d):
		return true
	}
}

func (p *Probe) check(h agent.Handle, c connector.Connector) bool {
	ok, err := inspect(h, c)
	if err != nil {
		p.logger.Warn("probe: checking %s: %v", c.ID, err)
		ok = false
	}
	p.metrics.RecordProbe(ok)
	return ok
}

// inspect applies the per-kind availability rules. A panicking handle is
// reported as an error.
func inspect(h agent.Handle, c connector.Connector) (ok bool, err error) {
	if h == nil {
		return false, nil
	}
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("agent handle panicked: %v", r)
		}
	}()

	switch c.Kind {
	case connector.KindInjected:
		subs, err := h.ListSubProviders()
		if err != nil {
			return false, err
		}
		if len(subs) > 0 {
			return hasMarker(subs, c.Marker), nil
		}
		return c.Marker != "" && h.IsKind(c.Marker), nil

	case connector.KindCoinbaseStyle:
		subs, err := h.ListSubProviders()
		if err != nil {
			return false, err
		}
		return hasMarker(subs, c.Marker), nil

	default:
		return false, nil
	}
}

func hasMarker(subs []agent.SubProvider, marker string) bool {
	for _, s := range subs {
		if s.HasMarker(marker) {
			return true
		}
	}
	return false
}
