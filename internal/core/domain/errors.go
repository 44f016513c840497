package domain

import (
	"errors"
	"strings"
)

// FailureKind classifies why a purchase attempt ended without completing.
// All kinds are terminal for the attempt; none are retried automatically.
type FailureKind string

const (
	// FailureUserRejected is a wallet-level decline before submission.
	FailureUserRejected FailureKind = "user_rejected"

	// FailureTimeout is a client-side deadline expiring before the chain
	// reported a terminal phase. Presented like a rejection ("try again")
	// but recorded as its own cause.
	FailureTimeout FailureKind = "timeout"

	FailureOrderCreation     FailureKind = "order_creation_failed"
	FailureOnChainSubmission FailureKind = "onchain_submission_failed"
	FailureFinality          FailureKind = "finality_failed"

	// FailureInclusionReport means the on-chain payment succeeded but the
	// backend was never told. The user has paid without being credited;
	// these entries need manual reconciliation via the journal.
	FailureInclusionReport FailureKind = "inclusion_report_failed"

	FailureNetwork FailureKind = "network_error"
)

// Retriable reports whether the user should simply be told to try again.
// Rejections and timeouts are siblings here: same message, different cause.
func (k FailureKind) Retriable() bool {
	return k == FailureUserRejected || k == FailureTimeout
}

// PurchaseError is the typed failure every purchase operation returns.
type PurchaseError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *PurchaseError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *PurchaseError) Unwrap() error {
	return e.Err
}

// Fail builds a PurchaseError wrapping cause.
func Fail(kind FailureKind, message string, cause error) *PurchaseError {
	return &PurchaseError{Kind: kind, Message: message, Err: cause}
}

// FailureOf extracts the failure kind from err, or "" if err carries none.
func FailureOf(err error) FailureKind {
	var pe *PurchaseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// walletRejectionMarker is the message wallets emit when the user declines
// to sign. Matching on it is the only reliable rejection signal the wallet
// surface gives us.
const walletRejectionMarker = "User rejected the request"

// IsWalletRejection reports whether err is the user declining in the wallet.
func IsWalletRejection(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), walletRejectionMarker)
}
