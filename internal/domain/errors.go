package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProviderUnavailable = errors.New("no wallet provider available, install or configure a wallet")
	ErrUserRejected        = errors.New("request rejected by user")
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("no connected account")
	ErrRemoteRejected      = errors.New("rejected by ledger")
	// ErrTransientRead is absorbed by the reader and never reaches callers.
	ErrTransientRead = errors.New("transient read failure")

	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrInvalidProductID   = errors.New("invalid product id")
	ErrIllegalTransition  = errors.New("illegal transition of checkout status")

	ErrInvalidInput      = errors.New("invalid input")
	ErrNotVerifiedSeller = errors.New("account is not a verified seller")
	ErrAlreadyRegistered = errors.New("account is already registered")
)

// RemoteError carries the reason string reported by the ledger verbatim.
type RemoteError struct {
	Op     string
	Reason string
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemoteRejected}
	}
	return []error{ErrRemoteRejected, e.Err}
}
