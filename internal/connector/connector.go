// Package connector describes the configured signing-agent integrations.
package connector

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/mrz1836/sigilgate/internal/config"
	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

// Kind is the capability class of a connector.
type Kind string

// Connector kinds.
const (
	KindInjected      Kind = "injected"
	KindCoinbaseStyle Kind = "coinbase"
	KindOther         Kind = "other"
)

// Connector is one integration profile for a class of signing agent.
type Connector struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Kind   Kind   `json:"kind"`
	Marker string `json:"marker,omitempty"`
}

// Label returns the name shown in a connector picker.
func (c Connector) Label() string {
	if strings.HasPrefix(c.Name, "Injected") {
		return "Browser wallet" + strings.TrimPrefix(c.Name, "Injected")
	}
	return c.Name
}

// ExplicitProvider reports whether the connector negotiates through an
// explicit provider handle (request accounts, add network, switch network)
// instead of the generic connect primitive alone.
func (c Connector) ExplicitProvider() bool {
	return c.Kind == KindCoinbaseStyle
}

// Catalog is the ordered, immutable connector list.
type Catalog struct {
	connectors []Connector
	byID       map[string]int
}

// New builds a catalog. Order is preserved.
func New(connectors []Connector) *Catalog {
	c := &Catalog{
		connectors: append([]Connector(nil), connectors...),
		byID:       make(map[string]int, len(connectors)),
	}
	for i, conn := range c.connectors {
		c.byID[conn.ID] = i
	}
	return c
}

// FromConfig builds a catalog from configured connectors.
func FromConfig(cfgs []config.ConnectorConfig) *Catalog {
	out := make([]Connector, 0, len(cfgs))
	for _, cc := range cfgs {
		out = append(out, Connector{
			ID:     cc.ID,
			Name:   cc.Name,
			Kind:   Kind(cc.Kind),
			Marker: cc.Marker,
		})
	}
	return New(out)
}

// List returns the connectors in configured order.
func (c *Catalog) List() []Connector {
	return append([]Connector(nil), c.connectors...)
}

// IDs returns the connector ids in configured order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.connectors))
	for i, conn := range c.connectors {
		ids[i] = conn.ID
	}
	return ids
}

// Lookup returns the connector with the given id.
func (c *Catalog) Lookup(id string) (Connector, error) {
	if i, ok := c.byID[id]; ok {
		return c.connectors[i], nil
	}

	err := gateerr.WithDetails(gateerr.ErrUnknownConnector, map[string]string{"connector": id})
	if s := c.suggest(id); s != "" {
		err = gateerr.WithSuggestion(err, "did you mean \""+s+"\"?")
	}
	return Connector{}, err
}

// maxSuggestDistance bounds how far a typo may be from a real id.
const maxSuggestDistance = 3

func (c *Catalog) suggest(id string) string {
	type candidate struct {
		id   string
		dist int
	}
	var cands []candidate
	for _, conn := range c.connectors {
		d := levenshtein.ComputeDistance(strings.ToLower(id), strings.ToLower(conn.ID))
		if d <= maxSuggestDistance {
			cands = append(cands, candidate{conn.ID, d})
		}
	}
	if len(cands) == 0 {
		return ""
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	return cands[0].id
}
