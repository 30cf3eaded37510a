package http

import (
	"context"
	"io"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/fjod/go_cart/market-client/internal/orders"
	"github.com/fjod/go_cart/market-client/internal/session"
)

// MockSession implements SessionService for testing
type MockSession struct {
	State      session.State
	ConnectErr error
}

func (m *MockSession) Current() session.State { return m.State }

func (m *MockSession) Connect(_ context.Context) (session.State, error) {
	if m.ConnectErr != nil {
		return session.State{}, m.ConnectErr
	}
	m.State = session.State{Address: common.HexToAddress("0xa11ce"), Connected: true, ChainID: big.NewInt(1337)}
	return m.State, nil
}

func (m *MockSession) Disconnect() { m.State = session.State{} }

func (m *MockSession) Loading() bool { return false }

// MockReader implements ProductReader for testing
type MockReader struct {
	Products map[string]domain.Product
	Err      error

	lastStart, lastEnd uint64
	listed             bool
}

func (m *MockReader) GetProduct(_ context.Context, id string) (domain.Product, error) {
	if m.Err != nil {
		return domain.Product{}, m.Err
	}
	p, ok := m.Products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *MockReader) ListProducts(_ context.Context, start, end uint64) ([]domain.Product, error) {
	m.lastStart, m.lastEnd, m.listed = start, end, true
	return m.AllProducts(context.Background())
}

func (m *MockReader) AllProducts(_ context.Context) ([]domain.Product, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []domain.Product
	for _, p := range m.Products {
		out = append(out, p)
	}
	return out, nil
}

// MockCart implements CartStore for testing
type MockCart struct {
	mu   sync.Mutex
	cart domain.Cart
}

func (m *MockCart) AddItem(line domain.CartLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cart.Add(line)
}

func (m *MockCart) SetQuantity(productID string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cart.SetQuantity(productID, n)
}

func (m *MockCart) RemoveItem(productID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cart.Remove(productID)
}

func (m *MockCart) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cart.Clear()
}

func (m *MockCart) Snapshot() *domain.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart.Clone()
}

// MockCheckout implements CheckoutService for testing
type MockCheckout struct {
	Attempt *domain.CheckoutAttempt
	Err     error
	Method  domain.PaymentMethod
}

func (m *MockCheckout) Submit(_ context.Context, method domain.PaymentMethod) (*domain.CheckoutAttempt, error) {
	m.Method = method
	return m.Attempt, m.Err
}

func (m *MockCheckout) Methods(_ context.Context) ([]domain.PaymentMethod, error) {
	return []domain.PaymentMethod{domain.MethodNative, "USDC"}, m.Err
}

func (m *MockCheckout) Processing() bool { return false }

func (m *MockCheckout) LastAttempt() (domain.CheckoutAttempt, bool) {
	if m.Attempt == nil {
		return domain.CheckoutAttempt{}, false
	}
	return *m.Attempt, true
}

// MockOrders implements OrdersService for testing
type MockOrders struct {
	Views []orders.OrderView
	Err   error
}

func (m *MockOrders) List(_ context.Context) ([]orders.OrderView, error) {
	return m.Views, m.Err
}

func (m *MockOrders) ConfirmDelivery(_ context.Context, reference, productID string) (domain.Delivery, error) {
	if m.Err != nil {
		return domain.Delivery{}, m.Err
	}
	return domain.Delivery{Reference: reference, ProductID: productID, TxHash: "0xd311"}, nil
}

// MockCatalogWriter implements CatalogWriter for testing
type MockCatalogWriter struct {
	Err      error
	Uploaded []byte
	Filename string
}

func (m *MockCatalogWriter) UploadImage(_ context.Context, id, filename string, r io.Reader) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.Uploaded, m.Filename = data, filename
	return "/uploads/" + id + ".png", nil
}

func (m *MockCatalogWriter) ImageURL(id string) string {
	return "http://catalog.test/products/" + id + "/image"
}

// MockSellers implements Lister and UserService for testing
type MockSellers struct {
	Err        error
	Partial    domain.CatalogProduct
	Listings   []domain.Listing
	Registered []string
	Verified   []string
}

func (m *MockSellers) ListProduct(_ context.Context, l domain.Listing) (domain.CatalogProduct, error) {
	if m.Err != nil {
		return m.Partial, m.Err
	}
	m.Listings = append(m.Listings, l)
	return domain.CatalogProduct{ID: "c-42", ProductID: "42", Title: l.Title, Price: l.UnitPrice.String()}, nil
}

func (m *MockSellers) Profile(_ context.Context) (domain.User, error) {
	if m.Err != nil {
		return domain.User{}, m.Err
	}
	return domain.User{UserID: "4", Role: domain.RoleSeller, Verified: true}, nil
}

func (m *MockSellers) Register(_ context.Context, firstName, lastName string) (domain.User, error) {
	if m.Err != nil {
		return domain.User{}, m.Err
	}
	m.Registered = append(m.Registered, firstName+" "+lastName)
	return domain.User{UserID: "9", FirstName: firstName, LastName: lastName, Role: domain.RoleBuyer}, nil
}

func (m *MockSellers) PendingSellers(_ context.Context) ([]domain.User, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return nil, nil
}

func (m *MockSellers) VerifySeller(_ context.Context, account string) (domain.User, error) {
	if m.Err != nil {
		return domain.User{}, m.Err
	}
	m.Verified = append(m.Verified, account)
	return domain.User{UserID: "11", Account: account, Role: domain.RoleSeller, Verified: true}, nil
}
