package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/mrz1836/sigilgate/internal/agent"
	"github.com/mrz1836/sigilgate/internal/config"
	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

// primaryType is the EIP-712 struct every sign-in signs.
const primaryType = "SignIn"

// TypedDataSigner obtains sign-in proofs as EIP-712 signatures from the
// connected agent and checks them by recovering the signer.
type TypedDataSigner struct {
	active    func() agent.Provider
	domains   map[string]config.DomainConfig
	statement string
	ttl       time.Duration
	clock     clock.Clock
}

// NewTypedDataSigner creates a signer. active returns the connected agent.
func NewTypedDataSigner(active func() agent.Provider, cfg config.AuthConfig, clk clock.Clock) *TypedDataSigner {
	ttl := cfg.ProofTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TypedDataSigner{
		active:    active,
		domains:   cfg.Domains,
		statement: cfg.Statement,
		ttl:       ttl,
		clock:     clk,
	}
}

// TypedData builds the payload signed for req, valid until expiry.
func (s *TypedDataSigner) TypedData(req Request, expiry time.Time) (apitypes.TypedData, error) {
	dc, ok := s.domains[req.Domain.String()]
	if !ok {
		return apitypes.TypedData{}, gateerr.WithDetails(gateerr.ErrInvalidDomain, map[string]string{
			"domain": req.Domain.String(),
		})
	}

	domainFields := []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
	}
	if dc.VerifyingContract != "" {
		domainFields = append(domainFields, apitypes.Type{Name: "verifyingContract", Type: "address"})
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainFields,
			primaryType: {
				{Name: "user", Type: "address"},
				{Name: "statement", Type: "string"},
				{Name: "expiry", Type: "uint256"},
			},
		},
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              dc.Name,
			Version:           dc.Version,
			ChainId:           math.NewHexOrDecimal256(int64(req.ChainID)), //nolint:gosec // chain ids fit in int64
			VerifyingContract: dc.VerifyingContract,
		},
		Message: apitypes.TypedDataMessage{
			"user":      req.Address.Hex(),
			"statement": s.statement,
			"expiry":    strconv.FormatInt(expiry.Unix(), 10),
		},
	}, nil
}

// Sign asks the connected agent to sign the payload for req.
func (s *TypedDataSigner) Sign(ctx context.Context, req Request) (*Proof, error) {
	p := s.active()
	if p == nil {
		return nil, gateerr.ErrNotConnected
	}

	now := s.clock.Now().UTC().Truncate(time.Second)
	expiry := now.Add(s.ttl)
	typed, err := s.TypedData(req, expiry)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(typed)
	if err != nil {
		return nil, fmt.Errorf("encoding typed data: %w", err)
	}

	sig, err := agent.SignTypedDataV4(ctx, p, req.Address, payload)
	if err != nil {
		return nil, err
	}

	proof := &Proof{
		Domain:    req.Domain.String(),
		Address:   req.Address,
		ChainID:   req.ChainID,
		Signature: sig,
		IssuedAt:  now,
		ExpiresAt: expiry,
	}
	if err := s.verify(req, proof); err != nil {
		return nil, gateerr.WithCause(gateerr.ErrSignInFailed, err)
	}
	return proof, nil
}

// Authorized reports whether proof is an unexpired signature by req.Address
// over req's payload.
func (s *TypedDataSigner) Authorized(_ context.Context, req Request, proof *Proof) bool {
	if proof == nil || !proof.Matches(req) || proof.Expired(s.clock.Now()) {
		return false
	}
	return s.verify(req, proof) == nil
}

func (s *TypedDataSigner) verify(req Request, proof *Proof) error {
	typed, err := s.TypedData(req, proof.ExpiresAt)
	if err != nil {
		return err
	}
	hash, _, err := apitypes.TypedDataAndHash(typed)
	if err != nil {
		return fmt.Errorf("hashing typed data: %w", err)
	}

	signer, err := recoverSigner(hash, proof.Signature)
	if err != nil {
		return err
	}
	if signer != req.Address {
		return fmt.Errorf("signature by %s, expected %s", signer.Hex(), req.Address.Hex())
	}
	return nil
}

func recoverSigner(hash, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature length %d", len(signature))
	}
	sig := append([]byte(nil), signature...)
	// agents return V as 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recovering signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

var _ SigningDomain = (*TypedDataSigner)(nil)
