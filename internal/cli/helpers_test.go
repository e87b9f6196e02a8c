package cli

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/sigilgate/internal/agent"
	"github.com/mrz1836/sigilgate/internal/config"
)

// browserAgent is a MetaMask-like signing agent reached over JSON-RPC.
type browserAgent struct {
	key *ecdsa.PrivateKey

	mu        sync.Mutex
	connected bool
	chainID   uint64
	reject    bool
	calls     map[string]int
	switches  []uint64
}

func newBrowserAgent(t *testing.T, chainID uint64) (*browserAgent, *httptest.Server) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	a := &browserAgent{key: key, chainID: chainID, calls: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(a.serve))
	t.Cleanup(srv.Close)
	return a, srv
}

func (a *browserAgent) address() common.Address {
	return crypto.PubkeyToAddress(a.key.PublicKey)
}

func (a *browserAgent) setChain(id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chainID = id
}

func (a *browserAgent) count(method string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[method]
}

func (a *browserAgent) switchRequests() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint64(nil), a.switches...)
}

func (a *browserAgent) serve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req struct {
		ID     uint64            `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, perr := a.handle(req.Method, req.Params)
	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if perr != nil {
		resp["error"] = perr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (a *browserAgent) handle(method string, params []json.RawMessage) (any, *agent.ProviderError) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls[method]++

	switch method {
	case agent.MethodClientVersion:
		return "MetaMask/v11.16.0", nil
	case agent.MethodRequestAccounts:
		if a.reject {
			return nil, &agent.ProviderError{Code: agent.CodeUserRejected, Message: "User rejected the request."}
		}
		a.connected = true
		return []string{a.address().Hex()}, nil
	case agent.MethodAccounts:
		if !a.connected {
			return []string{}, nil
		}
		return []string{a.address().Hex()}, nil
	case agent.MethodChainID:
		return hexutil.EncodeUint64(a.chainID), nil
	case agent.MethodSwitchChain:
		var p struct {
			ChainID hexutil.Uint64 `json:"chainId"`
		}
		if len(params) == 0 || json.Unmarshal(params[0], &p) != nil {
			return nil, &agent.ProviderError{Code: -32602, Message: "invalid params"}
		}
		a.switches = append(a.switches, uint64(p.ChainID))
		a.chainID = uint64(p.ChainID)
		return nil, nil
	case agent.MethodAddChain:
		return nil, nil
	case agent.MethodRevokePermissions:
		a.connected = false
		return nil, nil
	case agent.MethodSignTypedDataV4:
		return a.sign(params)
	default:
		return nil, &agent.ProviderError{Code: agent.CodeUnsupportedMethod, Message: method}
	}
}

func (a *browserAgent) sign(params []json.RawMessage) (any, *agent.ProviderError) {
	invalid := &agent.ProviderError{Code: -32602, Message: "invalid typed data"}
	if len(params) < 2 {
		return nil, invalid
	}
	var payload string
	if err := json.Unmarshal(params[1], &payload); err != nil {
		return nil, invalid
	}
	var typed apitypes.TypedData
	if err := json.Unmarshal([]byte(payload), &typed); err != nil {
		return nil, invalid
	}
	hash, _, err := apitypes.TypedDataAndHash(typed)
	if err != nil {
		return nil, invalid
	}
	sig, err := crypto.Sign(hash, a.key)
	if err != nil {
		return nil, invalid
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Bytes(sig), nil
}

// writeTestConfig writes a fast configuration pointing at agentURL into home.
func writeTestConfig(t *testing.T, home, agentURL string) {
	t.Helper()
	c := config.Defaults()
	c.Home = home
	c.Agent.Endpoints = []config.EndpointConfig{{Name: "browser", URL: agentURL}}
	c.Agent.RequestTimeout = 5 * time.Second
	c.Probe.SettleDelay = 10 * time.Millisecond
	c.Probe.PollInterval = 10 * time.Millisecond
	c.Session.ConnectReloadDelay = 10 * time.Millisecond
	c.Session.DisconnectReloadDelay = 10 * time.Millisecond
	c.Auth.Path = filepath.Join(home, "signin.json")
	c.Logging.Level = "off"
	require.NoError(t, config.Save(c, config.Path(home)))
}

// execute runs the root command with args and captures both streams.
// NOT parallel-safe: the command tree and its flags are package globals.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeContext(context.Background(), t, args...)
}

func executeContext(ctx context.Context, t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		configForce = false
		verbose = false
	})

	err := rootCmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

// decode unmarshals command output into v.
func decode(t *testing.T, out string, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}
