package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"

	"github.com/mrz1836/sigilgate/internal/metrics"
	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

// EventKind identifies an agent notification.
type EventKind string

// Agent notifications.
const (
	EventAccountsChanged EventKind = "accountsChanged"
	EventChainChanged    EventKind = "chainChanged"
	EventDisconnect      EventKind = "disconnect"
)

// Event is one notification pushed by the agent.
type Event struct {
	Kind     EventKind
	Accounts []common.Address
	ChainID  uint64
	Err      error
}

// EventSource is implemented by transports that push notifications.
// The channel is closed when the transport goes away.
type EventSource interface {
	Events() <-chan Event
}

// eventBuffer bounds queued notifications; the oldest is dropped to make
// room for a newer one.
const eventBuffer = 32

var errWSClosed = errors.New("websocket connection closed")

// envelope is any inbound frame: a response (ID set) or a notification (Method set).
type envelope struct {
	ID     *uint64         `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ProviderError  `json:"error,omitempty"`
}

// WSProvider is a signing agent reachable over a WebSocket. Responses are
// correlated by request id; notifications are delivered on Events.
type WSProvider struct {
	name    string
	conn    *websocket.Conn
	limiter *RateLimiter
	metrics *metrics.Metrics

	writeMu   sync.Mutex
	idCounter atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]chan envelope

	events   chan Event
	dropped  atomic.Uint64
	done     chan struct{}
	closing  atomic.Bool
	closeErr error
}

// DialWS connects to a WebSocket agent endpoint and starts its read loop.
func DialWS(ctx context.Context, name, url string, limiter *RateLimiter) (*WSProvider, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, gateerr.WithCause(gateerr.ErrAgentRequest, fmt.Errorf("dialing %s: %w", name, err))
	}

	p := &WSProvider{
		name:    name,
		conn:    conn,
		limiter: limiter,
		metrics: metrics.Global,
		pending: make(map[uint64]chan envelope),
		events:  make(chan Event, eventBuffer),
		done:    make(chan struct{}),
	}
	go p.readLoop()
	return p, nil
}

// Name returns the endpoint name.
func (p *WSProvider) Name() string { return p.name }

// Events returns the notification stream.
func (p *WSProvider) Events() <-chan Event { return p.events }

// Done is closed once the connection is gone.
func (p *WSProvider) Done() <-chan struct{} { return p.done }

// Close shuts the connection down. Pending requests fail once the read
// loop observes the closed connection.
func (p *WSProvider) Close() error {
	if !p.closing.CompareAndSwap(false, true) {
		return nil
	}
	return p.conn.Close()
}

// Request sends one call and waits for its response.
func (p *WSProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, p.name); err != nil {
			return nil, gateerr.WithCause(gateerr.ErrAgentRequest, err)
		}
	}

	start := time.Now()
	result, err := p.call(ctx, method, params)
	p.metrics.RecordAgentCall(time.Since(start), err, IsUserRejected(err))
	return result, err
}

func (p *WSProvider) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	id := p.idCounter.Add(1)
	ch := make(chan envelope, 1)

	p.pendingMu.Lock()
	p.pending[id] = ch
	p.pendingMu.Unlock()
	defer func() {
		p.pendingMu.Lock()
		delete(p.pending, id)
		p.pendingMu.Unlock()
	}()

	p.writeMu.Lock()
	err := p.conn.WriteJSON(request{JSONRPC: "2.0", Method: method, Params: params, ID: id})
	p.writeMu.Unlock()
	if err != nil {
		return nil, gateerr.WithCause(gateerr.ErrAgentRequest, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-p.done:
		return nil, gateerr.WithCause(gateerr.ErrAgentRequest, p.closeErr)
	case <-ctx.Done():
		return nil, gateerr.WithCause(gateerr.ErrAgentRequest, ctx.Err())
	}
}

func (p *WSProvider) readLoop() {
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if p.closing.Load() {
				err = errWSClosed
			}
			p.shutdown(err)
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		if env.Method != "" {
			if ev, ok := parseNotification(env); ok {
				p.emit(ev)
			}
			continue
		}
		if env.ID == nil {
			continue
		}

		p.pendingMu.Lock()
		ch, ok := p.pending[*env.ID]
		p.pendingMu.Unlock()
		if ok {
			ch <- env
		}
	}
}

// Dropped returns how many queued notifications were discarded because the
// consumer fell behind.
func (p *WSProvider) Dropped() uint64 { return p.dropped.Load() }

// emit never blocks the read loop. When the queue is full the oldest event
// is discarded, so the latest account, chain and disconnect always arrive.
func (p *WSProvider) emit(ev Event) {
	for {
		select {
		case p.events <- ev:
			return
		default:
		}
		select {
		case <-p.events:
			p.dropped.Add(1)
		default:
		}
	}
}

// shutdown runs once, on the read loop.
func (p *WSProvider) shutdown(cause error) {
	p.closeErr = cause
	_ = p.conn.Close()
	p.emit(Event{Kind: EventDisconnect, Err: cause})
	close(p.done)
	close(p.events)
}

func parseNotification(env envelope) (Event, bool) {
	switch EventKind(env.Method) {
	case EventAccountsChanged:
		var params []json.RawMessage
		if err := json.Unmarshal(env.Params, &params); err != nil {
			return Event{}, false
		}
		// accepted shapes: ["0x.."] and [["0x.."]]
		var hexes []string
		if len(params) == 1 && json.Unmarshal(params[0], &hexes) == nil {
			return Event{Kind: EventAccountsChanged, Accounts: toAddresses(hexes)}, true
		}
		hexes = hexes[:0]
		for _, raw := range params {
			var h string
			if json.Unmarshal(raw, &h) == nil {
				hexes = append(hexes, h)
			}
		}
		return Event{Kind: EventAccountsChanged, Accounts: toAddresses(hexes)}, true

	case EventChainChanged:
		var params []hexutil.Uint64
		if err := json.Unmarshal(env.Params, &params); err != nil || len(params) == 0 {
			return Event{}, false
		}
		return Event{Kind: EventChainChanged, ChainID: uint64(params[0])}, true

	case EventDisconnect:
		var params []ProviderError
		_ = json.Unmarshal(env.Params, &params)
		ev := Event{Kind: EventDisconnect}
		if len(params) > 0 {
			pe := params[0]
			ev.Err = &pe
		}
		return ev, true
	}
	return Event{}, false
}

func toAddresses(hexes []string) []common.Address {
	out := make([]common.Address, 0, len(hexes))
	for _, h := range hexes {
		if common.IsHexAddress(h) {
			out = append(out, common.HexToAddress(h))
		}
	}
	return out
}
