// Package session holds the single explicit session-state value of the
// connection core and the transition function that mutates it.
package session

import (
	"github.com/ethereum/go-ethereum/common"
)

// Status is the agent-reported connection status of the live account.
type Status int

// Account statuses.
const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Account is the live account as last reported by the signing agent.
// A zero Address or ChainID means the value is absent.
type Account struct {
	Address common.Address `json:"address"`
	ChainID uint64         `json:"chain_id"`
	Status  Status         `json:"status"`
}

// HasAddress reports whether the agent supplied an address.
func (a Account) HasAddress() bool {
	return a.Address != (common.Address{})
}

// Connected reports whether the account is connected.
func (a Account) Connected() bool {
	return a.Status == StatusConnected
}

// Disconnected returns an account in the Disconnected state.
func Disconnected() Account {
	return Account{Status: StatusDisconnected}
}
