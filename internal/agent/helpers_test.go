package agent

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// scriptedProvider answers requests from a per-method script and records calls.
type scriptedProvider struct {
	mu      sync.Mutex
	answers map[string]func(params []any) (any, error)
	calls   []string
	params  map[string][]any
}

func newScripted() *scriptedProvider {
	return &scriptedProvider{
		answers: map[string]func([]any) (any, error){},
		params:  map[string][]any{},
	}
}

func (s *scriptedProvider) on(method string, fn func(params []any) (any, error)) *scriptedProvider {
	s.answers[method] = fn
	return s
}

func (s *scriptedProvider) returns(method string, v any) *scriptedProvider {
	return s.on(method, func([]any) (any, error) { return v, nil })
}

func (s *scriptedProvider) fails(method string, err error) *scriptedProvider {
	return s.on(method, func([]any) (any, error) { return nil, err })
}

func (s *scriptedProvider) Request(_ context.Context, method string, params ...any) (json.RawMessage, error) {
	s.mu.Lock()
	s.calls = append(s.calls, method)
	s.params[method] = params
	fn, ok := s.answers[method]
	s.mu.Unlock()

	if !ok {
		return nil, &ProviderError{Code: CodeUnsupportedMethod, Message: "unsupported method " + method}
	}
	v, err := fn(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (s *scriptedProvider) count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == method {
			n++
		}
	}
	return n
}

type staticSource struct {
	h   Handle
	err error
}

func (s staticSource) Handle(context.Context) (Handle, error) {
	if s.h == nil {
		return nil, s.err
	}
	return s.h, s.err
}

var (
	testAddr  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testAddr2 = common.HexToAddress("0x2222222222222222222222222222222222222222")
)
