package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/shopspring/decimal"
)

// Quote converts a cart total into wei of the native coin, rounding up.
func Quote(total, usdPerNative decimal.Decimal) *big.Int {
	return total.Shift(18).Div(usdPerNative).Ceil().BigInt()
}

// SubmitPayment sends the single checkout transaction for method and returns
// its hash. It is never retried.
func (c *Client) SubmitPayment(ctx context.Context, from common.Address, method domain.PaymentMethod, total decimal.Decimal) (common.Hash, error) {
	var (
		fn    string
		value *big.Int
	)
	if method.IsNative() {
		fn = "checkOutWithNative"
		value = Quote(total, c.cfg.NativeUSDRate)
	} else {
		fn = "checkOutWithUSD"
	}

	data, err := c.abis.ecommerce.Pack(fn, method.String())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack %s: %w", fn, err)
	}
	return c.send(ctx, from, c.cfg.Contracts.Ecommerce, value, data, fn)
}

// ConfirmDelivery marks productID of the order paymentRef as delivered.
func (c *Client) ConfirmDelivery(ctx context.Context, from common.Address, paymentRef, productID string) (common.Hash, error) {
	ref, ok := new(big.Int).SetString(strings.TrimSpace(paymentRef), 10)
	if !ok || ref.Sign() <= 0 {
		return common.Hash{}, fmt.Errorf("invalid payment reference %q", paymentRef)
	}
	id, err := parseUint(productID)
	if err != nil {
		return common.Hash{}, err
	}

	data, err := c.abis.escrow.Pack("updateDeliveryStatus", ref, id, true)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack updateDeliveryStatus: %w", err)
	}
	return c.send(ctx, from, c.cfg.Contracts.Escrow, nil, data, "updateDeliveryStatus")
}

func (c *Client) send(ctx context.Context, from, to common.Address, value *big.Int, data []byte, fn string) (common.Hash, error) {
	tx, err := c.sender.SendTransaction(ctx, from, to, value, data, fn)
	if err != nil {
		if errors.Is(err, domain.ErrUserRejected) || errors.Is(err, domain.ErrUnauthorized) {
			return common.Hash{}, err
		}
		reason, ok := revertReason(err)
		if !ok {
			reason = err.Error()
		}
		return common.Hash{}, &domain.RemoteError{Op: fn, Reason: reason, Err: err}
	}
	return tx.Hash(), nil
}

// WaitMined polls for the receipt of hash until it is mined or ctx is done.
// A reverted transaction yields *domain.RemoteError.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.chain.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return nil, &domain.RemoteError{Op: "confirm " + hash.Hex(), Reason: "transaction reverted"}
			}
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			slog.WarnContext(ctx, "receipt lookup failed", "tx", hash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// WaitConfirmed waits for a checkout transaction and returns the payment
// reference from its SuccessfulCheckout event.
func (c *Client) WaitConfirmed(ctx context.Context, hash common.Hash) (string, error) {
	receipt, err := c.WaitMined(ctx, hash)
	if err != nil {
		return "", err
	}
	if ref, ok := c.paymentReference(receipt); ok {
		return ref, nil
	}
	slog.WarnContext(ctx, "checkout receipt has no SuccessfulCheckout event, using tx hash as reference", "tx", hash.Hex())
	return hash.Hex(), nil
}

func (c *Client) paymentReference(receipt *types.Receipt) (string, bool) {
	event := c.abis.ecommerce.Events["SuccessfulCheckout"]
	for _, l := range receipt.Logs {
		if l.Address != c.cfg.Contracts.Ecommerce || len(l.Topics) < 3 || l.Topics[0] != event.ID {
			continue
		}
		return new(big.Int).SetBytes(l.Topics[2].Bytes()).String(), true
	}
	return "", false
}
