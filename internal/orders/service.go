package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fjod/go_cart/market-client/internal/domain"
)

const mineTimeout = 10 * time.Minute

type Store interface {
	ListByAccount(ctx context.Context, account string) ([]domain.Order, error)
	GetOrder(ctx context.Context, reference string) (domain.Order, error)
	SaveDelivery(ctx context.Context, d domain.Delivery) error
	ListDeliveries(ctx context.Context, reference string) ([]domain.Delivery, error)
}

type Ledger interface {
	ConfirmDelivery(ctx context.Context, from common.Address, paymentRef, productID string) (common.Hash, error)
	WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

type Session interface {
	Require() (common.Address, error)
}

// OrderView is an order with the deliveries confirmed so far.
type OrderView struct {
	domain.Order
	Deliveries []domain.Delivery `json:"deliveries"`
}

type Service struct {
	store   Store
	ledger  Ledger
	session Session
}

func NewService(store Store, ledger Ledger, session Session) *Service {
	return &Service{store: store, ledger: ledger, session: session}
}

// List returns the order history of the connected account.
func (s *Service) List(ctx context.Context) ([]OrderView, error) {
	from, err := s.session.Require()
	if err != nil {
		return nil, err
	}

	orders, err := s.store.ListByAccount(ctx, from.Hex())
	if err != nil {
		return nil, err
	}

	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		deliveries, err := s.store.ListDeliveries(ctx, o.Reference)
		if err != nil {
			return nil, err
		}
		views = append(views, OrderView{Order: o, Deliveries: deliveries})
	}
	return views, nil
}

// ConfirmDelivery tells the escrow that productID of the order paid under
// reference has arrived. The ledger call is made once and never retried.
func (s *Service) ConfirmDelivery(ctx context.Context, reference, productID string) (domain.Delivery, error) {
	from, err := s.session.Require()
	if err != nil {
		return domain.Delivery{}, err
	}

	order, err := s.store.GetOrder(ctx, reference)
	if err != nil {
		return domain.Delivery{}, err
	}
	if !strings.EqualFold(order.Account, from.Hex()) {
		return domain.Delivery{}, fmt.Errorf("order %s: %w", reference, domain.ErrNotFound)
	}
	if !hasProduct(order, productID) {
		return domain.Delivery{}, fmt.Errorf("product %s in order %s: %w", productID, reference, domain.ErrNotFound)
	}

	delivered, err := s.store.ListDeliveries(ctx, reference)
	if err != nil {
		return domain.Delivery{}, err
	}
	for _, d := range delivered {
		if d.ProductID == productID {
			return d, nil
		}
	}

	hash, err := s.ledger.ConfirmDelivery(ctx, from, reference, productID)
	if err != nil {
		return domain.Delivery{}, err
	}
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mineTimeout)
	defer cancel()
	if _, err := s.ledger.WaitMined(waitCtx, hash); err != nil {
		return domain.Delivery{}, err
	}

	d := domain.Delivery{
		Reference:   reference,
		ProductID:   productID,
		TxHash:      hash.Hex(),
		ConfirmedAt: time.Now().UTC(),
	}
	if err := s.store.SaveDelivery(ctx, d); err != nil {
		slog.ErrorContext(ctx, "delivery confirmed but not recorded", "reference", reference, "product_id", productID, "error", err)
	}
	return d, nil
}

func hasProduct(o domain.Order, productID string) bool {
	for _, l := range o.Lines {
		if l.ProductID == productID {
			return true
		}
	}
	return false
}
