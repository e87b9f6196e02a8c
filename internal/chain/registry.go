package chain

import (
	"strconv"

	"github.com/mrz1836/sigilgate/internal/config"
	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

// Registry holds the required network and the alternates offered for
// manual switching, in configured order.
type Registry struct {
	required uint64
	chains   []Descriptor
	byID     map[uint64]int
}

// NewRegistry builds a registry. The required chain must be among chains.
func NewRegistry(required uint64, chains []Descriptor) (*Registry, error) {
	r := &Registry{
		required: required,
		chains:   append([]Descriptor(nil), chains...),
		byID:     make(map[uint64]int, len(chains)),
	}
	for i, d := range r.chains {
		r.byID[d.ChainID] = i
	}
	if _, ok := r.byID[required]; !ok {
		return nil, gateerr.WithDetails(gateerr.ErrUnknownChain, map[string]string{
			"chain_id": strconv.FormatUint(required, 10),
		})
	}
	return r, nil
}

// FromConfig builds a registry from configuration.
func FromConfig(cfg *config.Config) (*Registry, error) {
	ds := make([]Descriptor, 0, len(cfg.Chains))
	for _, cc := range cfg.Chains {
		ds = append(ds, fromConfig(cc))
	}
	return NewRegistry(cfg.RequiredChainID, ds)
}

// Required returns the required network.
func (r *Registry) Required() Descriptor {
	return r.chains[r.byID[r.required]]
}

// List returns every configured network.
func (r *Registry) List() []Descriptor {
	return append([]Descriptor(nil), r.chains...)
}

// Lookup returns the network with chainID.
func (r *Registry) Lookup(chainID uint64) (Descriptor, error) {
	i, ok := r.byID[chainID]
	if !ok {
		return Descriptor{}, gateerr.WithDetails(gateerr.ErrUnknownChain, map[string]string{
			"chain_id": strconv.FormatUint(chainID, 10),
		})
	}
	return r.chains[i], nil
}
