package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/sigilgate/internal/agent"
	"github.com/mrz1836/sigilgate/internal/session"
	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

func TestConnect_Standard(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	require.NoError(t, h.orch.Connect(context.Background(), "metamask"))

	s := h.orch.State()
	assert.Equal(t, session.PhaseConnected, s.Phase)
	assert.False(t, s.Connecting)
	assert.Equal(t, "metamask", s.ConnectorID)
	assert.Equal(t, connected(addrA, required), s.Account)
	assert.Empty(t, h.agent.switchRequests(), "already on the required chain")
	assert.Equal(t, []session.Domain{session.DomainTrove, session.DomainDebtToken}, s.VisiblePrompts())
	assert.Empty(t, h.rec.alertList())
	assert.Equal(t, 1, h.orch.Pending())

	h.mock.Add(999 * time.Millisecond)
	assert.Empty(t, h.rec.noticeList())

	notices := h.advance(t, time.Millisecond, 1)
	require.Len(t, notices, 1)
	assert.Equal(t, ReasonConnected, notices[0].Reason)
	assert.Equal(t, "initial", notices[0].Previous)
	assert.NotEqual(t, "initial", notices[0].SessionID)
	assert.Equal(t, notices[0].SessionID, h.orch.State().ID)
	assert.Eventually(t, func() bool { return h.orch.Pending() == 0 }, time.Second, time.Millisecond)
}

func TestConnect_UserRejected(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.agent.connectErr = &agent.ProviderError{Code: agent.CodeUserRejected, Message: "User rejected the request."}

	err := h.orch.Connect(context.Background(), "metamask")
	require.Error(t, err)

	s := h.orch.State()
	assert.Equal(t, session.PhaseFailed, s.Phase)
	assert.False(t, s.Connecting)
	assert.Contains(t, s.FailureReason, "rejected")
	require.Len(t, h.rec.alertList(), 1)
	assert.Contains(t, h.rec.alertList()[0], "rejected")
	assert.Equal(t, 0, h.orch.Pending(), "no reload after a failure")
}

func TestConnect_ChainErrorNotAlerted(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.agent.connectErr = &agent.ProviderError{Code: -32603, Message: "Unrecognized chain ID"}

	require.Error(t, h.orch.Connect(context.Background(), "metamask"))
	assert.Empty(t, h.rec.alertList())
	assert.Equal(t, session.PhaseFailed, h.orch.State().Phase)
}

func TestConnect_IgnoredWhileConnecting(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.agent.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.orch.Connect(context.Background(), "metamask") }()
	require.Eventually(t, func() bool { return h.agent.connectCount() == 1 }, time.Second, time.Millisecond)
	assert.True(t, h.orch.State().Connecting)

	require.NoError(t, h.orch.Connect(context.Background(), "coinbase"))
	require.NoError(t, h.orch.Connect(context.Background(), "metamask"))

	close(h.agent.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, h.agent.connectCount())
	assert.Equal(t, 0, h.agent.provider.count(agent.MethodRequestAccounts))
	assert.Equal(t, "metamask", h.orch.State().ConnectorID)
	assert.False(t, h.orch.State().Connecting)
}

func TestConnect_UnknownConnector(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	err := h.orch.Connect(context.Background(), "metamsk")
	require.ErrorIs(t, err, gateerr.ErrUnknownConnector)
	assert.Equal(t, 0, h.agent.connectCount())
	assert.Equal(t, session.PhaseIdle, h.orch.State().Phase)
}

func TestConnect_ProbedUnavailable(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.probe.results["coinbase"] = false

	err := h.orch.Connect(context.Background(), "coinbase")
	require.ErrorIs(t, err, gateerr.ErrProviderUnavailable)
	assert.Equal(t, 0, h.agent.connectCount())
	assert.Equal(t, 0, h.agent.provider.count(agent.MethodRequestAccounts))

	st := h.orch.State()
	assert.Equal(t, session.PhaseFailed, st.Phase)
	assert.False(t, st.Connecting)
	require.Len(t, h.rec.alertList(), 1)
	assert.Contains(t, h.rec.alertList()[0], "install the wallet extension")
	assert.Equal(t, st.FailureReason, h.rec.alertList()[0])
}

func TestConnect_ClearsFlagsOfCurrentChain(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.NoError(t, h.orch.Connect(context.Background(), "metamask"))
	_, err := h.auth.Sign(context.Background(), session.DomainTrove)
	require.NoError(t, err)
	require.True(t, h.flag(t, "signInAuth-23295"))

	h.agent.account = connected(addrB, required)
	require.NoError(t, h.orch.Connect(context.Background(), "metamask"))

	assert.False(t, h.flag(t, "signInAuth-23295"))
	assert.True(t, h.auth.NeedsSignIn(session.DomainTrove, required))
}

func TestConnectExplicit_NoAccounts(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.agent.provider.returns(agent.MethodRequestAccounts, []string{})

	err := h.orch.Connect(context.Background(), "coinbase")
	require.ErrorIs(t, err, gateerr.ErrNoAccounts)

	assert.Equal(t, 0, h.agent.connectCount(), "generic connect is never invoked")
	assert.Equal(t, session.PhaseFailed, h.orch.State().Phase)
	require.Len(t, h.rec.alertList(), 1)
	assert.Contains(t, h.rec.alertList()[0], "No accounts received")
	assert.Equal(t, 0, h.orch.Pending())
}

func TestConnectExplicit_AlreadyExists(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.agent.account = connected(addrA, alternate)
	h.agent.provider.
		returns(agent.MethodRequestAccounts, []string{addrA.Hex()}).
		returns(agent.MethodChainID, "0x5afe").
		fails(agent.MethodAddChain, &agent.ProviderError{Code: -32603, Message: "Chain with id 0x5aff already exists"}).
		returns(agent.MethodSwitchChain, nil)

	require.NoError(t, h.orch.Connect(context.Background(), "coinbase"))

	assert.Equal(t, 1, h.agent.connectCount())
	assert.Equal(t, 1, h.agent.provider.count(agent.MethodAddChain))
	assert.Equal(t, 1, h.agent.provider.count(agent.MethodSwitchChain))
	assert.Empty(t, h.agent.switchRequests(), "the guard does not switch again")

	s := h.orch.State()
	assert.Equal(t, session.PhaseConnected, s.Phase)
	assert.True(t, s.HasAttemptedSwitch)
	assert.Equal(t, required, s.Account.ChainID)
	assert.Empty(t, h.rec.alertList())
	assert.Equal(t, 1, h.orch.Pending())
}

func TestConnectExplicit_NetworkFailuresAreNotFatal(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.agent.account = connected(addrA, alternate)
	h.agent.provider.
		returns(agent.MethodRequestAccounts, []string{addrA.Hex()}).
		returns(agent.MethodChainID, "0x5afe").
		fails(agent.MethodAddChain, &agent.ProviderError{Code: agent.CodeUserRejected, Message: "User rejected the request."}).
		fails(agent.MethodSwitchChain, &agent.ProviderError{Code: agent.CodeUnrecognizedChain, Message: "Unrecognized chain ID"})

	require.NoError(t, h.orch.Connect(context.Background(), "coinbase"))

	s := h.orch.State()
	assert.Equal(t, session.PhaseConnected, s.Phase)
	assert.Equal(t, alternate, s.Account.ChainID)
	assert.True(t, s.HasAttemptedSwitch)
	assert.Empty(t, h.agent.switchRequests(), "the automatic switch was used up")
	assert.Empty(t, h.rec.alertList())
}

func TestConnect_WrongChainSwitchesOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.agent.account = connected(addrA, alternate)

	require.NoError(t, h.orch.Connect(context.Background(), "metamask"))
	assert.Equal(t, []uint64{required}, h.agent.switchRequests())

	// the agent keeps reporting the wrong chain
	h.orch.HandleAccount(context.Background(), connected(addrA, alternate))
	assert.Equal(t, []uint64{required}, h.agent.switchRequests())
}

func TestHandleAccount_ConnectedOnWrongChain(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.orch.HandleAccount(context.Background(), connected(addrA, alternate))
	assert.Equal(t, []uint64{required}, h.agent.switchRequests())
	assert.True(t, h.orch.State().HasAttemptedSwitch)
	assert.Equal(t, session.PhaseConnected, h.orch.State().Phase)

	h.orch.HandleAccount(context.Background(), connected(addrA, alternate))
	h.orch.HandleAccount(context.Background(), connected(addrA, 1))
	assert.Equal(t, []uint64{required}, h.agent.switchRequests())

	// a new session gets one more attempt
	h.orch.HandleAccount(context.Background(), session.Disconnected())
	assert.False(t, h.orch.State().HasAttemptedSwitch)
	h.orch.HandleAccount(context.Background(), connected(addrA, alternate))
	assert.Equal(t, []uint64{required, required}, h.agent.switchRequests())
}

func TestHandleAccount_ChainChangeInvalidatesOldChain(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.NoError(t, h.orch.Connect(context.Background(), "metamask"))
	for _, d := range session.Domains() {
		_, err := h.auth.Sign(context.Background(), d)
		require.NoError(t, err)
	}
	assert.Empty(t, h.orch.State().VisiblePrompts())

	h.orch.HandleAccount(context.Background(), connected(addrA, alternate))

	assert.False(t, h.flag(t, "signInAuth-23295"))
	assert.False(t, h.flag(t, "signInToken-23295"))
	assert.True(t, h.auth.NeedsSignIn(session.DomainTrove, required))
	assert.True(t, h.auth.NeedsSignIn(session.DomainTrove, alternate))
}

func TestHandleAccount_Disconnected(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.orch.HandleAccount(context.Background(), connected(addrA, alternate))
	h.orch.HandleAccount(context.Background(), connected(addrA, required))
	for _, d := range session.Domains() {
		_, err := h.auth.Sign(context.Background(), d)
		require.NoError(t, err)
	}
	require.True(t, h.orch.State().HasAttemptedSwitch)

	h.orch.HandleAccount(context.Background(), session.Disconnected())

	s := h.orch.State()
	assert.Equal(t, session.PhaseIdle, s.Phase)
	assert.False(t, s.HasAttemptedSwitch)
	assert.Empty(t, s.Satisfied)
	for _, chainID := range []uint64{required, alternate} {
		for _, d := range session.Domains() {
			assert.True(t, s.NeedsSignIn(d, chainID))
		}
	}
	assert.False(t, h.flag(t, "signInAuth-23295"))
	assert.False(t, h.flag(t, "signInToken-23295"))
}

func TestDisconnect(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.NoError(t, h.orch.Connect(context.Background(), "metamask"))
	_, err := h.auth.Sign(context.Background(), session.DomainDebtToken)
	require.NoError(t, err)
	h.store.Dispatch(session.PanelToggled{Panel: session.PanelNetworks, Open: true})
	h.advance(t, time.Second, 1)

	require.NoError(t, h.orch.Disconnect(context.Background()))

	s := h.orch.State()
	assert.Equal(t, session.PhaseIdle, s.Phase)
	assert.Equal(t, session.Disconnected(), s.Account)
	assert.Equal(t, session.Panels{}, s.Panels)
	assert.False(t, s.HasAttemptedSwitch)
	assert.False(t, h.flag(t, "signInToken-23295"))
	assert.Nil(t, h.agent.Active())

	h.mock.Add(99 * time.Millisecond)
	assert.Len(t, h.rec.noticeList(), 1)
	notices := h.advance(t, time.Millisecond, 2)
	assert.Equal(t, ReasonDisconnected, notices[1].Reason)
	assert.Equal(t, notices[0].SessionID, notices[1].Previous)
}

func TestDisconnect_AgentFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.NoError(t, h.orch.Connect(context.Background(), "metamask"))
	h.agent.disconnectErr = &agent.ProviderError{Code: agent.CodeDisconnected, Message: "provider disconnected"}

	require.NoError(t, h.orch.Disconnect(context.Background()))

	assert.Equal(t, session.PhaseIdle, h.orch.State().Phase)
	assert.Equal(t, []string{DisconnectFailedMessage}, h.rec.alertList())
	assert.Equal(t, 2, h.orch.Pending())
}

func TestSignDisconnectReconnect(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.NoError(t, h.orch.Connect(context.Background(), "metamask"))

	_, err := h.auth.Sign(context.Background(), session.DomainTrove)
	require.NoError(t, err)
	assert.False(t, h.auth.NeedsSignIn(session.DomainTrove, required))

	require.NoError(t, h.orch.Disconnect(context.Background()))
	require.NoError(t, h.orch.Connect(context.Background(), "metamask"))

	assert.True(t, h.auth.NeedsSignIn(session.DomainTrove, required))
	assert.Contains(t, h.orch.State().VisiblePrompts(), session.DomainTrove)
}

func TestSwitchAndAddNetwork(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	require.ErrorIs(t, h.orch.SwitchNetwork(context.Background(), alternate), gateerr.ErrNotConnected)
	require.ErrorIs(t, h.orch.AddNetwork(context.Background(), alternate), gateerr.ErrNotConnected)

	require.NoError(t, h.orch.Connect(context.Background(), "metamask"))
	h.store.Dispatch(session.PanelToggled{Panel: session.PanelNetworks, Open: true})

	require.NoError(t, h.orch.SwitchNetwork(context.Background(), alternate))
	assert.Equal(t, []uint64{alternate}, h.agent.switchRequests())
	assert.False(t, h.orch.State().Panels.Networks)

	require.ErrorIs(t, h.orch.SwitchNetwork(context.Background(), 1), gateerr.ErrUnknownChain)

	h.agent.provider.
		returns(agent.MethodChainID, "0x5aff").
		returns(agent.MethodAddChain, nil)
	require.NoError(t, h.orch.AddNetwork(context.Background(), alternate))
	assert.Equal(t, 1, h.agent.provider.count(agent.MethodAddChain))
}

func TestRefreshAvailability(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.probe.results = map[string]bool{"metamask": true, "coinbase": false, "injected-sapphire": false}

	got := h.orch.RefreshAvailability(context.Background())
	assert.Equal(t, h.probe.results, got)
	assert.Equal(t, 1, h.probe.runs)
}

func TestClose_CancelsInvalidations(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	require.NoError(t, h.orch.Connect(context.Background(), "metamask"))
	require.Equal(t, 1, h.orch.Pending())

	h.orch.Close()
	assert.Equal(t, 0, h.orch.Pending())

	h.mock.Add(2 * time.Second)
	assert.Never(t, func() bool { return len(h.rec.noticeList()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}
