package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is an instrument symbol. MethodNative pays in the ledger's
// native currency, any other symbol names an accepted stable token.
type PaymentMethod string

const MethodNative PaymentMethod = "ETH"

func (m PaymentMethod) IsNative() bool {
	return m == MethodNative
}

func (m PaymentMethod) String() string {
	return string(m)
}

// ParsePaymentMethod normalizes a user supplied symbol.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("empty payment method")
	}
	return PaymentMethod(s), nil
}

type CheckoutAttempt struct {
	ID        string          `json:"id"`
	Account   string          `json:"account"`
	Method    PaymentMethod   `json:"method"`
	Status    CheckoutStatus  `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	ItemCount int             `json:"item_count"`
	TxHash    string          `json:"tx_hash,omitempty"`
	Reference string          `json:"reference,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func NewCheckoutAttempt(account string, method PaymentMethod, cart *Cart) *CheckoutAttempt {
	now := time.Now().UTC()
	return &CheckoutAttempt{
		ID:        uuid.NewString(),
		Account:   account,
		Method:    method,
		Status:    CheckoutStatusDraft,
		Amount:    cart.Total,
		ItemCount: cart.ItemCount(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the attempt to status to, refusing moves the state machine
// does not allow.
func (a *CheckoutAttempt) Transition(to CheckoutStatus) error {
	if !CanTransitionTo(a.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.Status, to)
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail moves the attempt to FAILED and records the reason.
func (a *CheckoutAttempt) Fail(reason string) error {
	if err := a.Transition(CheckoutStatusFailed); err != nil {
		return err
	}
	a.Reason = reason
	return nil
}

// Confirmation is everything the order confirmation view receives.
type Confirmation struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"payment_method"`
	ItemCount int             `json:"item_count"`
	Reference string          `json:"reference"`
}

// Confirmation is only available for confirmed attempts.
func (a *CheckoutAttempt) Confirmation() (Confirmation, bool) {
	if a.Status != CheckoutStatusConfirmed {
		return Confirmation{}, false
	}
	return Confirmation{
		Amount:    a.Amount,
		Method:    a.Method,
		ItemCount: a.ItemCount,
		Reference: a.Reference,
	}, true
}
