package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/sigilgate/internal/agent"
	"github.com/mrz1836/sigilgate/internal/auth"
	"github.com/mrz1836/sigilgate/internal/chain"
	"github.com/mrz1836/sigilgate/internal/config"
	"github.com/mrz1836/sigilgate/internal/connector"
	"github.com/mrz1836/sigilgate/internal/session"
)

var (
	addrA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	addrB = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

const (
	required  = config.SapphireTestnetChainID
	alternate = config.SapphireMainnetChainID
)

// scripted answers provider requests per method and counts calls.
type scripted struct {
	mu      sync.Mutex
	answers map[string]func() (any, error)
	calls   map[string]int
}

func newScripted() *scripted {
	return &scripted{answers: map[string]func() (any, error){}, calls: map[string]int{}}
}

func (s *scripted) returns(method string, v any) *scripted {
	s.answers[method] = func() (any, error) { return v, nil }
	return s
}

func (s *scripted) fails(method string, err error) *scripted {
	s.answers[method] = func() (any, error) { return nil, err }
	return s
}

func (s *scripted) Request(_ context.Context, method string, _ ...any) (json.RawMessage, error) {
	s.mu.Lock()
	s.calls[method]++
	fn, ok := s.answers[method]
	s.mu.Unlock()
	if !ok {
		return nil, &agent.ProviderError{Code: agent.CodeUnsupportedMethod, Message: "unsupported method " + method}
	}
	v, err := fn()
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (s *scripted) count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// fakeAgent is the connect primitive and the chain switcher.
type fakeAgent struct {
	mu            sync.Mutex
	provider      *scripted
	account       session.Account
	connectErr    error
	disconnectErr error
	gate          chan struct{}
	connected     bool
	connects      int
	disconnects   int
	switches      []uint64
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{
		provider: newScripted(),
		account:  session.Account{Address: addrA, ChainID: required, Status: session.StatusConnected},
	}
}

func (f *fakeAgent) Provider(context.Context, connector.Connector) (agent.Provider, error) {
	return f.provider, nil
}

func (f *fakeAgent) Connect(context.Context, connector.Connector, uint64) (session.Account, error) {
	f.mu.Lock()
	f.connects++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return session.Account{}, f.connectErr
	}
	f.connected = true
	return f.account, nil
}

func (f *fakeAgent) Disconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
	return f.disconnectErr
}

func (f *fakeAgent) Active() agent.Provider {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return nil
	}
	return f.provider
}

func (f *fakeAgent) SwitchChain(_ context.Context, chainID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switches = append(f.switches, chainID)
	return nil
}

func (f *fakeAgent) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeAgent) switchRequests() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.switches...)
}

// fakeProbe serves fixed availability.
type fakeProbe struct {
	results map[string]bool
	runs    int
}

func (p *fakeProbe) Refresh(context.Context, []connector.Connector) (map[string]bool, bool) {
	p.runs++
	return p.Results(), true
}

func (p *fakeProbe) Results() map[string]bool {
	out := make(map[string]bool, len(p.results))
	for k, v := range p.results {
		out[k] = v
	}
	return out
}

func (p *fakeProbe) Available(id string) (available, known bool) {
	available, known = p.results[id]
	return available, known
}

// okSigner issues a proof for every request.
type okSigner struct{}

func (okSigner) Authorized(_ context.Context, req auth.Request, p *auth.Proof) bool {
	return p != nil && p.Matches(req)
}

func (okSigner) Sign(_ context.Context, req auth.Request) (*auth.Proof, error) {
	return &auth.Proof{
		Domain:    req.Domain.String(),
		Address:   req.Address,
		ChainID:   req.ChainID,
		Signature: []byte{0x01},
	}, nil
}

// recorder collects alerts and invalidations.
type recorder struct {
	mu      sync.Mutex
	alerts  []string
	notices []Invalidation
}

func (r *recorder) Alert(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, message)
}

func (r *recorder) SessionInvalidated(inv Invalidation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, inv)
}

func (r *recorder) alertList() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.alerts...)
}

func (r *recorder) noticeList() []Invalidation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Invalidation(nil), r.notices...)
}

type harness struct {
	orch  *Orchestrator
	store *session.Store
	agent *fakeAgent
	probe *fakeProbe
	flags *auth.MemoryStore
	auth  *auth.Manager
	rec   *recorder
	mock  *clock.Mock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := config.Defaults()
	registry, err := chain.FromConfig(cfg)
	require.NoError(t, err)

	logger := config.NullLogger()
	h := &harness{
		store: session.NewStore("initial"),
		agent: newFakeAgent(),
		probe: &fakeProbe{results: map[string]bool{}},
		flags: auth.NewMemoryStore(),
		rec:   &recorder{},
		mock:  clock.NewMock(),
	}
	h.auth = auth.NewManager(h.store, h.flags, okSigner{}, logger)
	h.orch = New(Deps{
		Store:    h.store,
		Catalog:  connector.FromConfig(cfg.Connectors),
		Probe:    h.probe,
		Guard:    chain.NewGuard(registry, h.agent, logger),
		Agent:    h.agent,
		Auth:     h.auth,
		Notifier: h.rec,
		Alerter:  h.rec,
		Clock:    h.mock,
		Logger:   logger,
	}, cfg.Session)
	t.Cleanup(h.orch.Close)
	return h
}

// advance moves the mock clock and waits for n invalidations in total.
func (h *harness) advance(t *testing.T, d time.Duration, n int) []Invalidation {
	t.Helper()
	h.mock.Add(d)
	require.Eventually(t, func() bool {
		return len(h.rec.noticeList()) >= n
	}, time.Second, time.Millisecond)
	return h.rec.noticeList()
}

func (h *harness) flag(t *testing.T, key string) bool {
	t.Helper()
	_, ok, err := h.flags.Get(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func connected(addr common.Address, chainID uint64) session.Account {
	return session.Account{Address: addr, ChainID: chainID, Status: session.StatusConnected}
}
