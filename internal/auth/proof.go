// Package auth tracks the two per-network sign-in obligations and the
// proofs that satisfy them.
package auth

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mrz1836/sigilgate/internal/session"
)

// Request identifies who signs in, for which domain, on which chain.
type Request struct {
	Domain  session.Domain
	Address common.Address
	ChainID uint64
}

// Proof is a sign-in proof as persisted under the domain's flag key.
type Proof struct {
	Domain    string         `json:"domain"`
	Address   common.Address `json:"address"`
	ChainID   uint64         `json:"chain_id"`
	Signature hexutil.Bytes  `json:"signature"`
	IssuedAt  time.Time      `json:"issued_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Expired reports whether the proof is no longer valid at now.
func (p *Proof) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Matches reports whether the proof was issued for req.
func (p *Proof) Matches(req Request) bool {
	return p.Domain == req.Domain.String() && p.Address == req.Address && p.ChainID == req.ChainID
}

// SigningDomain produces and checks sign-in proofs.
type SigningDomain interface {
	// Authorized reports whether proof still satisfies req. proof may be nil.
	Authorized(ctx context.Context, req Request, proof *Proof) bool
	// Sign obtains a fresh proof for req from the signing agent.
	Sign(ctx context.Context, req Request) (*Proof, error)
}
