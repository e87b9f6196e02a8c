package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mrz1836/sigilgate/internal/metrics"
	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

// maxResponseBytes caps how much of an agent response is read.
const maxResponseBytes = 1 << 20

// request is a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

// response is a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *ProviderError  `json:"error,omitempty"`
}

// HTTPProvider is a signing agent reachable over JSON-RPC 2.0 on HTTP.
type HTTPProvider struct {
	name       string
	url        string
	httpClient *http.Client
	limiter    *RateLimiter
	metrics    *metrics.Metrics
	idCounter  atomic.Uint64
}

// NewHTTPProvider creates a provider for url. limiter may be nil.
func NewHTTPProvider(name, url string, timeout time.Duration, limiter *RateLimiter) *HTTPProvider {
	return &HTTPProvider{
		name:       name,
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		metrics:    metrics.Global,
	}
}

// Name returns the endpoint name.
func (p *HTTPProvider) Name() string { return p.name }

// Request performs one JSON-RPC call.
func (p *HTTPProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
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

func (p *HTTPProvider) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}

	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      p.idCounter.Add(1),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, gateerr.WithCause(gateerr.ErrAgentRequest, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, gateerr.WithCause(gateerr.ErrAgentRequest, err)
	}
	// Body.Close error is intentionally ignored as it only fails if the
	// connection is already broken, and there's no recovery action.
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, gateerr.WithCause(gateerr.ErrAgentRequest, fmt.Errorf("reading response body: %w", err))
	}

	var resp response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		if httpResp.StatusCode != http.StatusOK {
			return nil, gateerr.WithDetails(gateerr.ErrAgentRequest, map[string]string{
				"endpoint": p.name,
				"status":   httpResp.Status,
			})
		}
		return nil, gateerr.WithCause(gateerr.ErrAgentResponse, fmt.Errorf("unmarshaling response: %w", err))
	}

	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}
