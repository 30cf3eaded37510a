package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerProduct is a decoded product record read from the product contract.
type LedgerProduct struct {
	ProductID        string
	SellerID         string
	Title            string
	UnitPrice        decimal.Decimal
	WarrantyDuration time.Duration
	ExpectedDelivery time.Time
}

// CatalogProduct is the off-chain display record kept by the catalog store.
type CatalogProduct struct {
	ID                   string `json:"id,omitempty"`
	ProductID            string `json:"productId"`
	SellerID             string `json:"sellerId"`
	Title                string `json:"title"`
	Description          string `json:"description"`
	Price                string `json:"price"`
	Seller               string `json:"seller"`
	ExpectedDeliveryTime int64  `json:"expectedDeliveryTime"`
	WarrantyDuration     string `json:"waranteeDuration"`
	Image                string `json:"image,omitempty"`
}

// Key is the ledger product id the record describes.
func (p CatalogProduct) Key() string {
	if p.ProductID != "" {
		return p.ProductID
	}
	return p.ID
}

// Product is the merged display record.
type Product struct {
	ProductID        string          `json:"product_id"`
	SellerID         string          `json:"seller_id"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Image            string          `json:"image,omitempty"`
	WarrantyDuration time.Duration   `json:"warranty_duration,omitempty"`
	ExpectedDelivery *time.Time      `json:"expected_delivery,omitempty"`
	// Unconfirmed is set when the ledger holds no entry for the product.
	Unconfirmed bool `json:"unconfirmed"`
}

// CartLine builds the cart line for quantity units of p.
func (p Product) CartLine(quantity int) CartLine {
	return CartLine{
		ProductID: p.ProductID,
		Title:     p.Title,
		UnitPrice: p.UnitPrice,
		Quantity:  quantity,
		SellerID:  p.SellerID,
		Image:     p.Image,
	}
}
