package classify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrz1836/sigilgate/internal/agent"
	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		kind     Kind
		alerts   bool
		contains string
	}{
		{
			name:     "agent rejection code",
			err:      &agent.ProviderError{Code: 4001, Message: "User denied account authorization"},
			kind:     KindUserRejected,
			alerts:   true,
			contains: "rejected",
		},
		{
			name:     "wrapped rejection",
			err:      gateerr.Wrap(&agent.ProviderError{Code: 4001, Message: "denied"}, "requesting accounts"),
			kind:     KindUserRejected,
			alerts:   true,
			contains: "User rejected the connection.",
		},
		{
			name:     "missing provider sentinel",
			err:      gateerr.ErrProviderUnavailable,
			kind:     KindProviderUnavailable,
			alerts:   true,
			contains: "install the wallet extension",
		},
		{
			name:     "message mentions provider",
			err:      errors.New("Unable to get Coinbase Wallet provider"),
			kind:     KindProviderUnavailable,
			alerts:   true,
			contains: "install",
		},
		{
			name:     "no accounts",
			err:      gateerr.Wrap(gateerr.ErrNoAccounts, "coinbase"),
			kind:     KindNoAccounts,
			alerts:   true,
			contains: "No accounts received.",
		},
		{
			name:     "chain error is not alerted",
			err:      &agent.ProviderError{Code: 4902, Message: "Unrecognized chain ID 0x5aff"},
			kind:     KindChainError,
			alerts:   false,
			contains: "Unrecognized chain ID 0x5aff",
		},
		{
			name:     "network negotiation",
			err:      gateerr.ErrChainNegotiation,
			kind:     KindChainError,
			alerts:   false,
			contains: "network negotiation failed",
		},
		{
			name:     "unknown passes message through",
			err:      errors.New("socket hang up"),
			kind:     KindUnknown,
			alerts:   true,
			contains: "socket hang up",
		},
		{
			name:     "empty message",
			err:      &agent.ProviderError{Code: -32603},
			kind:     KindUnknown,
			alerts:   true,
			contains: "Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := Classify(tt.err)
			assert.Equal(t, tt.kind, r.Kind)
			assert.Equal(t, tt.alerts, r.Alerts())
			assert.Contains(t, r.Message, tt.contains)
			assert.Contains(t, r.Message, MessagePrefix)
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	t.Parallel()

	r := Classify(nil)
	assert.Equal(t, KindUnknown, r.Kind)
	assert.Equal(t, "Failed to connect wallet. Please try again.", r.Message)
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "user_rejected", KindUserRejected.String())
	assert.Equal(t, "chain_error", KindChainError.String())
	assert.Equal(t, "unknown", Kind(99).String())
}

func TestResult_Sentinel(t *testing.T) {
	t.Parallel()

	rejected := Classify(&agent.ProviderError{Code: agent.CodeUserRejected, Message: "User rejected the request."})
	assert.ErrorIs(t, rejected.Sentinel(), gateerr.ErrUserRejected)
	assert.ErrorIs(t, Classify(gateerr.ErrNoAccounts).Sentinel(), gateerr.ErrNoAccounts)
	assert.ErrorIs(t, Classify(errors.New("wrong chain")).Sentinel(), gateerr.ErrChainNegotiation)
	assert.ErrorIs(t, Classify(errors.New("boom")).Sentinel(), gateerr.ErrGeneral)
}
