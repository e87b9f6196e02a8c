package agent

import (
	"context"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/mrz1836/sigilgate/internal/config"
)

// Logger is the logging surface the agent package needs.
type Logger interface {
	Debug(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// SubProvider is one agent among several co-installed behind a handle.
type SubProvider struct {
	Name     string
	Markers  []string
	Provider Provider
}

// HasMarker reports whether the sub-provider carries marker.
func (s SubProvider) HasMarker(marker string) bool {
	return marker != "" && slices.Contains(s.Markers, marker)
}

// Handle is the injected agent handle: the agent itself, or several agents
// multiplexed behind one entry point.
type Handle interface {
	// IsKind reports whether the handle's primary agent carries marker.
	IsKind(marker string) bool
	// ListSubProviders returns the multiplexed agents, or nil when the
	// handle fronts a single agent.
	ListSubProviders() ([]SubProvider, error)
}

// MultiHandle is a Handle over configured endpoints. The first endpoint is
// the primary agent.
type MultiHandle struct {
	subs []SubProvider
}

// NewMultiHandle builds a handle over subs. It returns nil when subs is empty.
func NewMultiHandle(subs []SubProvider) *MultiHandle {
	if len(subs) == 0 {
		return nil
	}
	return &MultiHandle{subs: append([]SubProvider(nil), subs...)}
}

// IsKind reports whether the primary agent carries marker.
func (h *MultiHandle) IsKind(marker string) bool {
	return h.subs[0].HasMarker(marker)
}

// ListSubProviders returns every agent when more than one is present.
func (h *MultiHandle) ListSubProviders() ([]SubProvider, error) {
	if len(h.subs) < 2 {
		return nil, nil
	}
	return append([]SubProvider(nil), h.subs...), nil
}

// Primary returns the primary agent.
func (h *MultiHandle) Primary() SubProvider {
	return h.subs[0]
}

// Close releases transports that hold connections.
func (h *MultiHandle) Close() error {
	for _, s := range h.subs {
		if c, ok := s.Provider.(io.Closer); ok {
			_ = c.Close()
		}
	}
	return nil
}

// Find returns the sub-provider with marker. Sub-providers are searched
// first, then the primary agent. ok is false when none matches.
func Find(h Handle, marker string) (SubProvider, bool) {
	subs, err := h.ListSubProviders()
	if err == nil {
		for _, s := range subs {
			if s.HasMarker(marker) {
				return s, true
			}
		}
	}
	if ph, ok := h.(interface{ Primary() SubProvider }); ok && h.IsKind(marker) {
		return ph.Primary(), true
	}
	return SubProvider{}, false
}

// Discoverer locates configured agent endpoints. The first successful
// discovery is reused until Reset.
type Discoverer struct {
	cfg     config.AgentConfig
	limiter *RateLimiter
	logger  Logger

	mu     sync.Mutex
	handle *MultiHandle
}

// NewDiscoverer creates a discoverer for the configured endpoints.
func NewDiscoverer(cfg config.AgentConfig, logger Logger) *Discoverer {
	return &Discoverer{
		cfg:     cfg,
		limiter: NewRateLimiter(cfg.RatePerSecond, cfg.Burst),
		logger:  logger,
	}
}

// Handle returns the injected handle, or nil when no endpoint answers.
func (d *Discoverer) Handle(ctx context.Context) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.handle != nil {
		return d.handle, nil
	}

	var subs []SubProvider
	for _, ep := range d.cfg.Endpoints {
		p, err := d.open(ctx, ep)
		if err != nil {
			d.logger.Debug("agent endpoint %s unavailable: %v", ep.Name, err)
			continue
		}

		markers := ep.Markers
		version, err := ClientVersion(ctx, p)
		if err != nil {
			d.logger.Debug("agent endpoint %s did not answer: %v", ep.Name, err)
			if c, ok := p.(io.Closer); ok {
				_ = c.Close()
			}
			continue
		}
		if len(markers) == 0 {
			if m := MarkerFromClientVersion(version); m != "" {
				markers = []string{m}
			}
		}
		d.logger.Debug("agent endpoint %s: %s %v", ep.Name, version, markers)
		subs = append(subs, SubProvider{Name: ep.Name, Markers: markers, Provider: p})
	}

	h := NewMultiHandle(subs)
	if h == nil {
		// a nil *MultiHandle must not escape as a non-nil Handle
		return nil, nil
	}
	d.handle = h
	return h, nil
}

// Reset drops the cached handle so the next call re-discovers.
func (d *Discoverer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handle != nil {
		_ = d.handle.Close()
		d.handle = nil
	}
}

func (d *Discoverer) open(ctx context.Context, ep config.EndpointConfig) (Provider, error) {
	if strings.HasPrefix(ep.URL, "ws://") || strings.HasPrefix(ep.URL, "wss://") {
		return DialWS(ctx, ep.Name, ep.URL, d.limiter)
	}
	return NewHTTPProvider(ep.Name, ep.URL, d.cfg.RequestTimeout, d.limiter), nil
}
