package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// User is a marketplace registration read from the ledger.
type User struct {
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Account   string `json:"account"`
	Role      Role   `json:"role"`
	Verified  bool   `json:"verified"`
}

// CanList reports whether the user may publish listings.
func (u User) CanList() bool {
	return u.Role == RoleSeller && u.Verified
}

// PendingSeller reports whether the user is a seller awaiting verification.
func (u User) PendingSeller() bool {
	return u.Role == RoleSeller && !u.Verified
}

// Listing is a new product offered by a verified seller.
type Listing struct {
	Title            string
	Description      string
	UnitPrice        decimal.Decimal
	WarrantyDuration time.Duration
	// DeliveryIn is the expected delivery offset from the listing time.
	DeliveryIn time.Duration
}
