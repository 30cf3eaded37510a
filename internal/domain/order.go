package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	Reference string          `json:"reference"`
	AttemptID string          `json:"attempt_id"`
	Account   string          `json:"account"`
	Method    PaymentMethod   `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	ItemCount int             `json:"item_count"`
	TxHash    string          `json:"tx_hash"`
	Lines     []CartLine      `json:"lines"`
	CreatedAt time.Time       `json:"created_at"`
}

type Delivery struct {
	Reference   string    `json:"reference"`
	ProductID   string    `json:"product_id"`
	TxHash      string    `json:"tx_hash"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// OrderFromAttempt snapshots a confirmed attempt with the lines it paid for.
func OrderFromAttempt(a *CheckoutAttempt, lines []CartLine) Order {
	return Order{
		Reference: a.Reference,
		AttemptID: a.ID,
		Account:   a.Account,
		Method:    a.Method,
		Amount:    a.Amount,
		ItemCount: a.ItemCount,
		TxHash:    a.TxHash,
		Lines:     lines,
		CreatedAt: a.UpdatedAt,
	}
}
