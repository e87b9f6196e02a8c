// Package agent talks to the external signing agent ("wallet provider").
// It speaks the wallet RPC convention (EIP-1193 request/response plus
// accountsChanged/chainChanged/disconnect notifications) over HTTP or
// WebSocket and exposes the generic connect primitive the orchestrator
// drives.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

// Wallet RPC methods.
const (
	MethodChainID           = "eth_chainId"
	MethodAccounts          = "eth_accounts"
	MethodRequestAccounts   = "eth_requestAccounts"
	MethodAddChain          = "wallet_addEthereumChain"
	MethodSwitchChain       = "wallet_switchEthereumChain"
	MethodSignTypedDataV4   = "eth_signTypedData_v4"
	MethodRevokePermissions = "wallet_revokePermissions"
	MethodClientVersion     = "web3_clientVersion"
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
)

// Provider sends one request to a signing agent.
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// ProviderError is an error reported by the agent itself.
type ProviderError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("agent error %d: %s", e.Code, e.Message)
}

// ErrorCode returns the agent error code carried by err, or 0.
func ErrorCode(err error) int {
	var pe *ProviderError
	if gateerr.As(err, &pe) {
		return pe.Code
	}
	return 0
}

// IsUserRejected reports whether err carries the user-rejected code.
func IsUserRejected(err error) bool {
	return ErrorCode(err) == CodeUserRejected
}

// NativeCurrency is the currency block of wallet_addEthereumChain.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// AddChainParams is the wallet_addEthereumChain parameter object.
type AddChainParams struct {
	ChainID           hexutil.Uint64 `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

type switchChainParams struct {
	ChainID hexutil.Uint64 `json:"chainId"`
}

// ChainID returns the agent's active chain.
func ChainID(ctx context.Context, p Provider) (uint64, error) {
	raw, err := p.Request(ctx, MethodChainID)
	if err != nil {
		return 0, err
	}
	var q hexutil.Uint64
	if err := json.Unmarshal(raw, &q); err != nil {
		return 0, gateerr.WithCause(gateerr.ErrAgentResponse, fmt.Errorf("parsing chain id: %w", err))
	}
	return uint64(q), nil
}

// Accounts returns the accounts already exposed to this client, without prompting.
func Accounts(ctx context.Context, p Provider) ([]common.Address, error) {
	return addresses(ctx, p, MethodAccounts)
}

// RequestAccounts asks the agent to expose its accounts. The agent may prompt the user.
func RequestAccounts(ctx context.Context, p Provider) ([]common.Address, error) {
	return addresses(ctx, p, MethodRequestAccounts)
}

func addresses(ctx context.Context, p Provider, method string) ([]common.Address, error) {
	raw, err := p.Request(ctx, method)
	if err != nil {
		return nil, err
	}
	var hexes []string
	if err := json.Unmarshal(raw, &hexes); err != nil {
		return nil, gateerr.WithCause(gateerr.ErrAgentResponse, fmt.Errorf("parsing accounts: %w", err))
	}
	out := make([]common.Address, 0, len(hexes))
	for _, h := range hexes {
		if !common.IsHexAddress(h) {
			return nil, gateerr.WithDetails(gateerr.ErrAgentResponse, map[string]string{"address": h})
		}
		out = append(out, common.HexToAddress(h))
	}
	return out, nil
}

// AddChain asks the agent to register a network.
func AddChain(ctx context.Context, p Provider, params AddChainParams) error {
	_, err := p.Request(ctx, MethodAddChain, params)
	return err
}

// SwitchChain asks the agent to select a network.
func SwitchChain(ctx context.Context, p Provider, chainID uint64) error {
	_, err := p.Request(ctx, MethodSwitchChain, switchChainParams{ChainID: hexutil.Uint64(chainID)})
	return err
}

// SignTypedDataV4 asks the agent to sign an EIP-712 payload with addr.
// payload is sent as a JSON string, as eth_signTypedData_v4 expects.
func SignTypedDataV4(ctx context.Context, p Provider, addr common.Address, payload []byte) ([]byte, error) {
	raw, err := p.Request(ctx, MethodSignTypedDataV4, addr.Hex(), string(payload))
	if err != nil {
		return nil, err
	}
	var sig hexutil.Bytes
	if err := json.Unmarshal(raw, &sig); err != nil {
		return nil, gateerr.WithCause(gateerr.ErrAgentResponse, fmt.Errorf("parsing signature: %w", err))
	}
	return sig, nil
}

// RevokePermissions drops the account permission granted to this client.
func RevokePermissions(ctx context.Context, p Provider) error {
	_, err := p.Request(ctx, MethodRevokePermissions, map[string]any{"eth_accounts": struct{}{}})
	return err
}

// ClientVersion returns the agent's self-reported version string.
func ClientVersion(ctx context.Context, p Provider) (string, error) {
	raw, err := p.Request(ctx, MethodClientVersion)
	if err != nil {
		return "", err
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", gateerr.WithCause(gateerr.ErrAgentResponse, fmt.Errorf("parsing client version: %w", err))
	}
	return v, nil
}

// MarkerFromClientVersion derives a marker flag from a client version,
// e.g. "MetaMask/v11.16.0" gives "isMetaMask" and
// "Coinbase Wallet/3.1" gives "isCoinbaseWallet".
func MarkerFromClientVersion(version string) string {
	name, _, _ := strings.Cut(version, "/")
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "is" + b.String()
}
