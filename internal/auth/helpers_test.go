package auth

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/mrz1836/sigilgate/internal/agent"
	"github.com/mrz1836/sigilgate/internal/config"
)

// keyAgent is a signing agent holding one private key.
type keyAgent struct {
	key    *ecdsa.PrivateKey
	reject bool
	calls  atomic.Int32
	block  chan struct{}
}

func newKeyAgent() *keyAgent {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return &keyAgent{key: key}
}

func (a *keyAgent) address() common.Address {
	return crypto.PubkeyToAddress(a.key.PublicKey)
}

func (a *keyAgent) Request(_ context.Context, method string, params ...any) (json.RawMessage, error) {
	if method != agent.MethodSignTypedDataV4 {
		return nil, &agent.ProviderError{Code: agent.CodeUnsupportedMethod, Message: method}
	}
	a.calls.Add(1)
	if a.block != nil {
		<-a.block
	}
	if a.reject {
		return nil, &agent.ProviderError{Code: agent.CodeUserRejected, Message: "User denied message signature."}
	}

	var typed apitypes.TypedData
	if err := json.Unmarshal([]byte(params[1].(string)), &typed); err != nil {
		return nil, err
	}
	hash, _, err := apitypes.TypedDataAndHash(typed)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(hash, a.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return json.Marshal(hexutil.Bytes(sig))
}

func testAuthConfig() config.AuthConfig {
	return config.Defaults().Auth
}

func newTestSigner(p agent.Provider) (*TypedDataSigner, *clock.Mock) {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	return NewTypedDataSigner(func() agent.Provider { return p }, testAuthConfig(), mock), mock
}
