package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrOutOfBounds is returned by Products when the requested end index is
// past the last product.
var ErrOutOfBounds = errors.New("end index out of bounds")

// Chain is the read side of the node. *ethclient.Client satisfies it.
type Chain interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Sender signs and broadcasts transactions after the human approves them.
type Sender interface {
	SendTransaction(ctx context.Context, from, to common.Address, value *big.Int, data []byte, function string) (*types.Transaction, error)
}

type Contracts struct {
	Product   common.Address
	Escrow    common.Address
	Ecommerce common.Address
	User      common.Address
}

type Config struct {
	Contracts Contracts
	// NativeUSDRate is the price of one native coin in the cart currency.
	NativeUSDRate decimal.Decimal
	PollInterval  time.Duration
}

type Client struct {
	chain  Chain
	sender Sender
	cfg    Config
	abis   contractABIs
}

func NewClient(chain Chain, sender Sender, cfg Config) (*Client, error) {
	abis, err := parseABIs()
	if err != nil {
		return nil, err
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if !cfg.NativeUSDRate.IsPositive() {
		return nil, fmt.Errorf("native rate must be positive, got %s", cfg.NativeUSDRate)
	}
	return &Client{chain: chain, sender: sender, cfg: cfg, abis: abis}, nil
}

// ProductData reads one product. A missing entry yields domain.ErrNotFound.
func (c *Client) ProductData(ctx context.Context, productID string) (domain.LedgerProduct, error) {
	id, err := parseUint(productID)
	if err != nil {
		return domain.LedgerProduct{}, err
	}

	out, err := c.call(ctx, c.cfg.Contracts.Product, c.abis.product, "getProductData", id)
	if err != nil {
		var remote *domain.RemoteError
		if errors.As(err, &remote) {
			return domain.LedgerProduct{}, fmt.Errorf("product %s: %w: %s", productID, domain.ErrNotFound, remote.Reason)
		}
		return domain.LedgerProduct{}, err
	}

	raw := *abi.ConvertType(out[0], new(rawProduct)).(*rawProduct)
	p, ok, err := decodeProduct(raw)
	if err != nil {
		return domain.LedgerProduct{}, err
	}
	if !ok {
		return domain.LedgerProduct{}, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}
	return p, nil
}

// Products reads the inclusive index range [start, end].
func (c *Client) Products(ctx context.Context, start, end uint64) ([]domain.LedgerProduct, error) {
	out, err := c.call(ctx, c.cfg.Contracts.Product, c.abis.product, "getProducts",
		new(big.Int).SetUint64(start), new(big.Int).SetUint64(end))
	if err != nil {
		var remote *domain.RemoteError
		if errors.As(err, &remote) && isOutOfBounds(remote.Reason) {
			return nil, fmt.Errorf("%w: [%d, %d]", ErrOutOfBounds, start, end)
		}
		return nil, err
	}

	raws := *abi.ConvertType(out[0], new([]rawProduct)).(*[]rawProduct)
	products := make([]domain.LedgerProduct, 0, len(raws))
	for _, raw := range raws {
		p, ok, err := decodeProduct(raw)
		if err != nil {
			return nil, err
		}
		if ok {
			products = append(products, p)
		}
	}
	return products, nil
}

// AcceptedInstruments lists the token symbols the escrow accepts.
func (c *Client) AcceptedInstruments(ctx context.Context) ([]domain.PaymentMethod, error) {
	out, err := c.call(ctx, c.cfg.Contracts.Escrow, c.abis.escrow, "getAcceptedTokens")
	if err != nil {
		return nil, err
	}
	symbols := *abi.ConvertType(out[0], new([]string)).(*[]string)
	methods := make([]domain.PaymentMethod, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.TrimSpace(s); s != "" {
			methods = append(methods, domain.PaymentMethod(strings.ToUpper(s)))
		}
	}
	return methods, nil
}

func (c *Client) IsAccepted(ctx context.Context, method domain.PaymentMethod) (bool, error) {
	out, err := c.call(ctx, c.cfg.Contracts.Escrow, c.abis.escrow, "isAccepted", method.String())
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// call runs a read-only contract call. Reverts become *domain.RemoteError,
// transport failures wrap domain.ErrTransientRead.
func (c *Client) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	res, err := c.chain.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return nil, &domain.RemoteError{Op: method, Reason: reason, Err: err}
		}
		return nil, fmt.Errorf("%s: %w: %v", method, domain.ErrTransientRead, err)
	}

	out, err := parsed.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("failed to decode %s result: empty output", method)
	}
	return out, nil
}

func parseUint(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidProductID, s)
	}
	return v, nil
}
