package orders_test

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/fjod/go_cart/market-client/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const account = "0x00000000000000000000000000000000000A11cE"

func setupTestDB(t *testing.T) *orders.Repository {
	// Use in-memory database for tests
	repo, err := orders.NewRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, repo.RunMigrations("./migrations"))
	return repo
}

func testOrder(ref string, at time.Time) domain.Order {
	return domain.Order{
		Reference: ref,
		AttemptID: "attempt-" + ref,
		Account:   account,
		Method:    "USDC",
		Amount:    decimal.RequireFromString("121.00"),
		ItemCount: 3,
		TxHash:    "0xabc",
		Lines: []domain.CartLine{
			{ProductID: "1", Title: "Lamp", UnitPrice: decimal.RequireFromString("10.50"), Quantity: 2, SellerID: "5"},
			{ProductID: "2", Title: "Desk", UnitPrice: decimal.NewFromInt(100), Quantity: 1, SellerID: "6"},
		},
		CreatedAt: at,
	}
}

func TestSaveOrder_ListByAccount(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.SaveOrder(ctx, testOrder("1", now.Add(-time.Hour))))
	require.NoError(t, repo.SaveOrder(ctx, testOrder("2", now)))

	list, err := repo.ListByAccount(ctx, account)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2", list[0].Reference, "newest first")
	assert.Equal(t, "1", list[1].Reference)

	got := list[1]
	assert.Equal(t, domain.PaymentMethod("USDC"), got.Method)
	assert.True(t, decimal.NewFromInt(121).Equal(got.Amount))
	assert.Equal(t, 3, got.ItemCount)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "10.5", got.Lines[0].UnitPrice.String())
	assert.True(t, now.Add(-time.Hour).Equal(got.CreatedAt))
}

func TestSaveOrder_SameReferenceIsNoop(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	o := testOrder("1", time.Now())

	require.NoError(t, repo.SaveOrder(ctx, o))
	require.NoError(t, repo.SaveOrder(ctx, o))

	list, err := repo.ListByAccount(ctx, account)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListByAccount_OtherAccountEmpty(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveOrder(ctx, testOrder("1", time.Now())))

	list, err := repo.ListByAccount(ctx, "0x0000000000000000000000000000000000000b0b")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGetOrder_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetOrder(context.Background(), "404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeliveries(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveOrder(ctx, testOrder("1", time.Now())))

	d := domain.Delivery{Reference: "1", ProductID: "2", TxHash: "0xdef", ConfirmedAt: time.Now()}
	require.NoError(t, repo.SaveDelivery(ctx, d))
	assert.Error(t, repo.SaveDelivery(ctx, d), "one delivery per product")

	list, err := repo.ListDeliveries(ctx, "1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2", list[0].ProductID)
	assert.Equal(t, "0xdef", list[0].TxHash)
}

func TestListByAccount_CancelledContext(t *testing.T) {
	repo := setupTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.ListByAccount(ctx, account)
	assert.ErrorIs(t, err, context.Canceled)
}
