package reader

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/fjod/go_cart/market-client/internal/ledger"
	"github.com/shopspring/decimal"
)

// MockLedger implements Ledger for testing. It holds Count products with ids
// 1..Count at indexes 0..Count-1.
type MockLedger struct {
	Count      int
	ProductErr error
	ListErr    error
	Gate       chan struct{}

	productCalls atomic.Int32
	listCalls    atomic.Int32
}

func ledgerProduct(id int) domain.LedgerProduct {
	return domain.LedgerProduct{
		ProductID: strconv.Itoa(id),
		SellerID:  "5",
		Title:     fmt.Sprintf("ledger %d", id),
		UnitPrice: decimal.NewFromInt(int64(id)),
	}
}

func (m *MockLedger) ProductData(ctx context.Context, productID string) (domain.LedgerProduct, error) {
	m.productCalls.Add(1)
	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return domain.LedgerProduct{}, ctx.Err()
		}
	}
	if m.ProductErr != nil {
		return domain.LedgerProduct{}, m.ProductErr
	}
	id, err := strconv.Atoi(productID)
	if err != nil || id < 1 || id > m.Count {
		return domain.LedgerProduct{}, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}
	return ledgerProduct(id), nil
}

func (m *MockLedger) Products(_ context.Context, start, end uint64) ([]domain.LedgerProduct, error) {
	m.listCalls.Add(1)
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	if end >= uint64(m.Count) {
		return nil, fmt.Errorf("%w: [%d, %d]", ledger.ErrOutOfBounds, start, end)
	}
	var out []domain.LedgerProduct
	for i := start; i <= end; i++ {
		out = append(out, ledgerProduct(int(i)+1))
	}
	return out, nil
}

// MockCatalog implements Catalog for testing
type MockCatalog struct {
	mu       sync.Mutex
	Records  map[string]domain.CatalogProduct
	Err      error
	ListErr  error
	getCalls int
}

func (m *MockCatalog) Product(_ context.Context, id string) (domain.CatalogProduct, error) {
	m.mu.Lock()
	m.getCalls++
	m.mu.Unlock()
	if m.Err != nil {
		return domain.CatalogProduct{}, m.Err
	}
	p, ok := m.Records[id]
	if !ok {
		return domain.CatalogProduct{}, fmt.Errorf("catalog: %w", domain.ErrNotFound)
	}
	return p, nil
}

func (m *MockCatalog) Products(_ context.Context) ([]domain.CatalogProduct, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []domain.CatalogProduct
	for _, p := range m.Records {
		out = append(out, p)
	}
	return out, nil
}
