package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fjod/go_cart/market-client/internal/domain"
)

// ListProduct sends the listing of l by from. The price must fit the on-chain
// precision; it is never rounded here. It is never retried.
func (c *Client) ListProduct(ctx context.Context, from common.Address, l domain.Listing) (common.Hash, error) {
	title := strings.TrimSpace(l.Title)
	if title == "" {
		return common.Hash{}, fmt.Errorf("listing: title is required")
	}
	if !l.UnitPrice.IsPositive() {
		return common.Hash{}, fmt.Errorf("listing: price must be positive, got %s", l.UnitPrice)
	}
	units := l.UnitPrice.Shift(PriceDecimals)
	if !units.IsInteger() {
		return common.Hash{}, fmt.Errorf("listing: price %s has more than %d decimals", l.UnitPrice, PriceDecimals)
	}
	if l.WarrantyDuration < 0 || l.DeliveryIn < 0 {
		return common.Hash{}, fmt.Errorf("listing: durations must not be negative")
	}

	data, err := c.abis.product.Pack("listProduct",
		units.BigInt(),
		title,
		big.NewInt(int64(l.WarrantyDuration.Seconds())),
		big.NewInt(int64(l.DeliveryIn.Seconds())),
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack listProduct: %w", err)
	}
	return c.send(ctx, from, c.cfg.Contracts.Product, nil, data, "listProduct")
}

// ListedProductID returns the product id from the ProductListed event of a
// mined listing.
func (c *Client) ListedProductID(receipt *types.Receipt) (string, bool) {
	event := c.abis.product.Events["ProductListed"]
	for _, l := range receipt.Logs {
		if l.Address != c.cfg.Contracts.Product || len(l.Topics) < 2 || l.Topics[0] != event.ID {
			continue
		}
		return new(big.Int).SetBytes(l.Topics[1].Bytes()).String(), true
	}
	return "", false
}
