// Package classify maps raw agent failures to a small taxonomy and the
// message shown to the user.
package classify

import (
	"strings"

	"github.com/mrz1836/sigilgate/internal/agent"
	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

// Kind is a failure class.
type Kind int

// Failure kinds.
const (
	KindUnknown Kind = iota
	KindUserRejected
	KindProviderUnavailable
	KindChainError
	KindNoAccounts
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindUserRejected:
		return "user_rejected"
	case KindProviderUnavailable:
		return "provider_unavailable"
	case KindChainError:
		return "chain_error"
	case KindNoAccounts:
		return "no_accounts"
	default:
		return "unknown"
	}
}

// MessagePrefix starts every connect failure message.
const MessagePrefix = "Failed to connect wallet. "

// Result is a classified failure.
type Result struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Alerts reports whether the failure is shown to the user as a blocking
// alert. Chain errors are only logged.
func (r Result) Alerts() bool {
	return r.Kind != KindChainError
}

// Sentinel returns the error a shell reports for the failure kind.
func (r Result) Sentinel() *gateerr.GateError {
	switch r.Kind {
	case KindUserRejected:
		return gateerr.ErrUserRejected
	case KindProviderUnavailable:
		return gateerr.ErrProviderUnavailable
	case KindChainError:
		return gateerr.ErrChainNegotiation
	case KindNoAccounts:
		return gateerr.ErrNoAccounts
	default:
		return gateerr.ErrGeneral
	}
}

// Classify classifies a connect failure.
func Classify(err error) Result {
	if err == nil {
		return Result{Kind: KindUnknown, Message: MessagePrefix + "Please try again."}
	}

	msg := message(err)
	lower := strings.ToLower(msg)

	switch {
	case agent.IsUserRejected(err) || gateerr.Is(err, gateerr.ErrUserRejected):
		return Result{Kind: KindUserRejected, Message: MessagePrefix + "User rejected the connection."}
	case gateerr.Is(err, gateerr.ErrNoAccounts):
		return Result{Kind: KindNoAccounts, Message: MessagePrefix + "No accounts received."}
	case gateerr.Is(err, gateerr.ErrProviderUnavailable) ||
		strings.Contains(lower, "provider") || strings.Contains(lower, "extension"):
		return Result{
			Kind:    KindProviderUnavailable,
			Message: MessagePrefix + "Please install the wallet extension or open this app in the wallet's browser.",
		}
	case strings.Contains(lower, "chain") || strings.Contains(lower, "network"):
		return Result{Kind: KindChainError, Message: MessagePrefix + msg}
	}

	if msg == "" {
		msg = "Please try again."
	}
	return Result{Kind: KindUnknown, Message: MessagePrefix + msg}
}

// message prefers the agent's own text over transport decoration.
func message(err error) string {
	var pe *agent.ProviderError
	if gateerr.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}
