package checkout

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/shopspring/decimal"
)

// MockLedger implements Ledger for testing
type MockLedger struct {
	mu sync.Mutex

	Accepted    map[domain.PaymentMethod]bool
	AcceptedErr error
	Instruments []domain.PaymentMethod
	SubmitErr   error
	ConfirmErr  error
	Reference   string
	// Gate blocks SubmitPayment until closed.
	Gate chan struct{}
	// OnWait runs inside WaitConfirmed before it returns.
	OnWait func()

	acceptCalls  int
	submitCalls  int
	confirmCalls int
	submitted    decimal.Decimal
}

func (m *MockLedger) IsAccepted(_ context.Context, method domain.PaymentMethod) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acceptCalls++
	if m.AcceptedErr != nil {
		return false, m.AcceptedErr
	}
	return m.Accepted[method], nil
}

func (m *MockLedger) AcceptedInstruments(_ context.Context) ([]domain.PaymentMethod, error) {
	if m.AcceptedErr != nil {
		return nil, m.AcceptedErr
	}
	return m.Instruments, nil
}

func (m *MockLedger) SubmitPayment(ctx context.Context, _ common.Address, _ domain.PaymentMethod, total decimal.Decimal) (common.Hash, error) {
	m.mu.Lock()
	m.submitCalls++
	m.submitted = total
	gate := m.Gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return common.Hash{}, ctx.Err()
		}
	}
	if m.SubmitErr != nil {
		return common.Hash{}, m.SubmitErr
	}
	return common.HexToHash("0xabc"), nil
}

func (m *MockLedger) WaitConfirmed(_ context.Context, hash common.Hash) (string, error) {
	if m.OnWait != nil {
		m.OnWait()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmCalls++
	if m.ConfirmErr != nil {
		return "", m.ConfirmErr
	}
	if m.Reference == "" {
		return hash.Hex(), nil
	}
	return m.Reference, nil
}

func (m *MockLedger) calls() (accept, submit, confirm int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acceptCalls, m.submitCalls, m.confirmCalls
}

// MockCart implements CartStore for testing
type MockCart struct {
	mu      sync.Mutex
	Account string
	Cart    *domain.Cart
	cleared []string
}

func (m *MockCart) Snapshot() *domain.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Cart.Clone()
}

func (m *MockCart) AccountSnapshot() (string, *domain.Cart) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Account, m.Cart.Clone()
}

func (m *MockCart) ClearAccount(account string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, account)
	m.Cart.Clear()
}

// MockSession implements Session for testing
type MockSession struct {
	Address common.Address
	Err     error
}

func (m *MockSession) Require() (common.Address, error) {
	return m.Address, m.Err
}

// MockRecorder implements OrderRecorder and EventPublisher for testing
type MockRecorder struct {
	mu        sync.Mutex
	Err       error
	saved     []domain.Order
	published []domain.Order
}

func (m *MockRecorder) SaveOrder(_ context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, order)
	return m.Err
}

func (m *MockRecorder) PublishOrderConfirmed(_ context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, order)
	return m.Err
}
