package domain

type CheckoutStatus string

const (
	CheckoutStatusDraft     CheckoutStatus = "DRAFT"
	CheckoutStatusSubmitted CheckoutStatus = "SUBMITTED"
	CheckoutStatusConfirmed CheckoutStatus = "CONFIRMED"
	CheckoutStatusFailed    CheckoutStatus = "FAILED"
)

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusConfirmed || s == CheckoutStatusFailed
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}

var transitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusDraft:     {CheckoutStatusSubmitted, CheckoutStatusFailed},
	CheckoutStatusSubmitted: {CheckoutStatusConfirmed, CheckoutStatusFailed},
}

// CanTransitionTo reports whether an attempt in status from may move to status to.
// Terminal statuses have no exits.
func CanTransitionTo(from, to CheckoutStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
