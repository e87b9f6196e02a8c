package session

import (
	"fmt"
	"strings"

	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

// Domain is a protected feature domain that requires its own sign-in proof.
type Domain int

// Sign-in domains.
const (
	DomainTrove Domain = iota + 1
	DomainDebtToken
)

// Domains returns every sign-in domain in prompt order.
func Domains() []Domain {
	return []Domain{DomainTrove, DomainDebtToken}
}

// String returns the configuration name of the domain.
func (d Domain) String() string {
	switch d {
	case DomainTrove:
		return "trove"
	case DomainDebtToken:
		return "debt_token"
	default:
		return fmt.Sprintf("domain(%d)", int(d))
	}
}

// FlagPrefix returns the persisted flag prefix for the domain.
func (d Domain) FlagPrefix() string {
	switch d {
	case DomainTrove:
		return "signInAuth"
	case DomainDebtToken:
		return "signInToken"
	default:
		return ""
	}
}

// FlagKey returns the persisted flag key for the domain on a chain,
// e.g. "signInAuth-23295".
func (d Domain) FlagKey(chainID uint64) string {
	return fmt.Sprintf("%s-%d", d.FlagPrefix(), chainID)
}

// ParseDomain parses a domain name. Both "debt_token" and "debt-token" are accepted.
func ParseDomain(s string) (Domain, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "trove":
		return DomainTrove, nil
	case "debt_token", "token":
		return DomainDebtToken, nil
	default:
		return 0, gateerr.WithDetails(gateerr.ErrInvalidDomain, map[string]string{"domain": s})
	}
}
