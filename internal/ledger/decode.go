package ledger

import (
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/shopspring/decimal"
)

// PriceDecimals is the number of fractional digits of on-chain unit prices.
const PriceDecimals = 8

// rawProduct mirrors the product tuple returned by the product contract.
type rawProduct struct {
	ProductId            *big.Int
	SellerId             *big.Int
	UnitPrice            *big.Int
	WaranteeDuration     *big.Int
	Title                string
	WhenToExpectDelivery *big.Int
}

// decodeProduct validates a raw record. ok is false when the record is the
// zero entry the contract returns for unknown ids.
func decodeProduct(r rawProduct) (p domain.LedgerProduct, ok bool, err error) {
	if r.ProductId == nil || r.ProductId.Sign() == 0 {
		return domain.LedgerProduct{}, false, nil
	}
	id := r.ProductId.String()

	if r.SellerId == nil || r.SellerId.Sign() == 0 {
		return domain.LedgerProduct{}, false, fmt.Errorf("product %s: missing seller id", id)
	}
	if r.UnitPrice == nil || r.UnitPrice.Sign() <= 0 {
		return domain.LedgerProduct{}, false, fmt.Errorf("product %s: missing unit price", id)
	}

	warranty, err := seconds(r.WaranteeDuration)
	if err != nil {
		return domain.LedgerProduct{}, false, fmt.Errorf("product %s: warranty duration: %w", id, err)
	}
	var delivery time.Time
	if r.WhenToExpectDelivery != nil && r.WhenToExpectDelivery.Sign() > 0 {
		if !r.WhenToExpectDelivery.IsInt64() {
			return domain.LedgerProduct{}, false, fmt.Errorf("product %s: delivery time out of range", id)
		}
		delivery = time.Unix(r.WhenToExpectDelivery.Int64(), 0).UTC()
	}

	return domain.LedgerProduct{
		ProductID:        id,
		SellerID:         r.SellerId.String(),
		Title:            r.Title,
		UnitPrice:        decimal.NewFromBigInt(r.UnitPrice, -PriceDecimals),
		WarrantyDuration: warranty,
		ExpectedDelivery: delivery,
	}, true, nil
}

func seconds(v *big.Int) (time.Duration, error) {
	if v == nil || v.Sign() == 0 {
		return 0, nil
	}
	if v.Sign() < 0 || !v.IsInt64() || v.Int64() > math.MaxInt64/int64(time.Second) {
		return 0, fmt.Errorf("value %s out of range", v)
	}
	return time.Duration(v.Int64()) * time.Second, nil
}
