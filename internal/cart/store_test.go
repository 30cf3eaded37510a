package cart

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/fjod/go_cart/market-client/internal/repository"
	"github.com/fjod/go_cart/market-client/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func setupStore(t *testing.T) (*Store, *repository.RedisRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := repository.NewRedisRepository(client)
	return NewStore(repo), repo, mr
}

func line(id string, price int64, qty int) domain.CartLine {
	return domain.CartLine{ProductID: id, Title: "item " + id, UnitPrice: decimal.NewFromInt(price), Quantity: qty, SellerID: "5"}
}

// MockRepository implements repository.SnapshotRepository for testing
type MockRepository struct {
	LoadErr error
	SaveErr error
	saves   atomic.Int32
}

func (m *MockRepository) Load(_ context.Context, _ string) ([]domain.CartLine, error) {
	return nil, m.LoadErr
}

func (m *MockRepository) Save(_ context.Context, _ string, _ []domain.CartLine) error {
	m.saves.Add(1)
	return m.SaveErr
}

func (m *MockRepository) Delete(_ context.Context, _ string) error {
	m.saves.Add(1)
	return m.SaveErr
}

// MockSession implements SessionFeed for testing
type MockSession struct {
	State session.State
	feed  event.Feed
}

func (m *MockSession) Current() session.State {
	return m.State
}

func (m *MockSession) Subscribe(ch chan<- session.State) event.Subscription {
	return m.feed.Subscribe(ch)
}

func TestAddItem_MergesAndPersists(t *testing.T) {
	store, repo, _ := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.Reload(ctx, alice.Hex()))

	store.AddItem(line("7", 10, 1))
	store.AddItem(line("7", 10, 1))

	snap := store.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 2, snap.Lines[0].Quantity)
	assert.True(t, decimal.NewFromInt(20).Equal(snap.Total))

	persisted, err := repo.Load(ctx, alice.Hex())
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, 2, persisted[0].Quantity)
}

func TestAddItem_IgnoresNonPositiveQuantity(t *testing.T) {
	repo := &MockRepository{}
	store := NewStore(repo)
	require.NoError(t, store.Reload(context.Background(), alice.Hex()))

	store.AddItem(line("1", 1, 0))

	assert.True(t, store.Snapshot().IsEmpty())
	assert.Equal(t, int32(0), repo.saves.Load())
}

func TestSetQuantity_ZeroRemoves(t *testing.T) {
	store, _, _ := setupStore(t)
	require.NoError(t, store.Reload(context.Background(), alice.Hex()))
	store.AddItem(line("1", 3, 2))
	store.AddItem(line("2", 4, 1))

	store.SetQuantity("1", 0)

	snap := store.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, "2", snap.Lines[0].ProductID)
	assert.True(t, decimal.NewFromInt(4).Equal(snap.Total))
}

func TestClear_DeletesSnapshot(t *testing.T) {
	store, _, mr := setupStore(t)
	require.NoError(t, store.Reload(context.Background(), alice.Hex()))
	store.AddItem(line("1", 3, 2))
	require.Len(t, mr.Keys(), 1)

	store.Clear()

	assert.True(t, store.Snapshot().IsEmpty())
	assert.True(t, store.Snapshot().Total.IsZero())
	assert.Empty(t, mr.Keys())
}

func TestReload_SwapsPerAccount(t *testing.T) {
	store, _, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Reload(ctx, alice.Hex()))
	store.AddItem(line("1", 1, 1))

	require.NoError(t, store.Reload(ctx, bob.Hex()))
	assert.True(t, store.Snapshot().IsEmpty())
	store.AddItem(line("2", 2, 2))

	require.NoError(t, store.Reload(ctx, alice.Hex()))
	snap := store.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, "1", snap.Lines[0].ProductID)
}

func TestReload_NoAccountIsMemoryOnly(t *testing.T) {
	store, _, mr := setupStore(t)
	require.NoError(t, store.Reload(context.Background(), ""))

	store.AddItem(line("1", 1, 1))

	assert.Len(t, store.Snapshot().Lines, 1)
	assert.Empty(t, mr.Keys())
}

func TestReload_UnsupportedSnapshotStartsEmpty(t *testing.T) {
	store, _, mr := setupStore(t)
	mr.Set("cart:"+strings.ToLower(alice.Hex()), `{"version":9,"lines":[]}`)

	err := store.Reload(context.Background(), alice.Hex())

	require.NoError(t, err)
	assert.True(t, store.Snapshot().IsEmpty())
}

func TestReload_CorruptSnapshotIsReplaced(t *testing.T) {
	store, repo, mr := setupStore(t)
	ctx := context.Background()
	mr.Set("cart:"+strings.ToLower(alice.Hex()), "{not json")

	require.NoError(t, store.Reload(ctx, alice.Hex()))
	assert.True(t, store.Snapshot().IsEmpty())

	store.AddItem(line("1", 1, 1))

	lines, err := repo.Load(ctx, alice.Hex())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "1", lines[0].ProductID)
}

func TestClearAccount_CurrentAccount(t *testing.T) {
	store, _, mr := setupStore(t)
	require.NoError(t, store.Reload(context.Background(), alice.Hex()))
	store.AddItem(line("1", 1, 1))

	store.ClearAccount(alice.Hex())

	assert.True(t, store.Snapshot().IsEmpty())
	assert.Empty(t, mr.Keys())
}

func TestClearAccount_OtherAccountLeavesCurrentCart(t *testing.T) {
	store, repo, _ := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.Reload(ctx, alice.Hex()))
	store.AddItem(line("1", 1, 1))
	require.NoError(t, store.Reload(ctx, bob.Hex()))
	store.AddItem(line("2", 2, 1))

	store.ClearAccount(alice.Hex())

	require.Len(t, store.Snapshot().Lines, 1)
	assert.Equal(t, "2", store.Snapshot().Lines[0].ProductID)
	_, err := repo.Load(ctx, alice.Hex())
	assert.ErrorIs(t, err, repository.ErrSnapshotNotFound)
	bobLines, err := repo.Load(ctx, bob.Hex())
	require.NoError(t, err)
	assert.Len(t, bobLines, 1)
}

func TestAccountSnapshot(t *testing.T) {
	store, _, _ := setupStore(t)
	require.NoError(t, store.Reload(context.Background(), alice.Hex()))
	store.AddItem(line("1", 1, 2))

	account, snap := store.AccountSnapshot()

	assert.Equal(t, strings.ToLower(alice.Hex()), account)
	assert.Len(t, snap.Lines, 1)
}

func TestReload_LoadFailureKeepsSnapshotUntouched(t *testing.T) {
	repo := &MockRepository{LoadErr: errors.New("redis get failed: connection refused")}
	store := NewStore(repo)

	err := store.Reload(context.Background(), alice.Hex())
	require.Error(t, err)

	store.AddItem(line("1", 1, 1))

	assert.Len(t, store.Snapshot().Lines, 1)
	assert.Equal(t, int32(0), repo.saves.Load())
}

func TestMutation_SaveFailureStillApplies(t *testing.T) {
	repo := &MockRepository{SaveErr: errors.New("redis set failed")}
	store := NewStore(repo)
	require.NoError(t, store.Reload(context.Background(), alice.Hex()))

	store.AddItem(line("1", 5, 3))

	assert.True(t, decimal.NewFromInt(15).Equal(store.Snapshot().Total))
	assert.Equal(t, int32(1), repo.saves.Load())
}

func TestSnapshot_IsACopy(t *testing.T) {
	store := NewStore(&MockRepository{})
	store.AddItem(line("1", 5, 1))

	snap := store.Snapshot()
	snap.Lines[0].Quantity = 99

	assert.Equal(t, 1, store.Snapshot().Lines[0].Quantity)
}

func TestFollow_ReloadsOnAccountChange(t *testing.T) {
	store, repo, _ := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, repo.Save(ctx, bob.Hex(), []domain.CartLine{line("9", 9, 1)}))

	sess := &MockSession{State: session.State{Address: alice, Connected: true}}
	done := make(chan struct{})
	go func() {
		store.Follow(ctx, sess)
		close(done)
	}()

	require.Eventually(t, func() bool { return store.Account() == strings.ToLower(alice.Hex()) }, time.Second, time.Millisecond)
	assert.True(t, store.Snapshot().IsEmpty())

	sess.feed.Send(session.State{Address: bob, Connected: true})
	require.Eventually(t, func() bool { return store.Account() == strings.ToLower(bob.Hex()) }, time.Second, time.Millisecond)
	require.Len(t, store.Snapshot().Lines, 1)
	assert.Equal(t, "9", store.Snapshot().Lines[0].ProductID)

	sess.feed.Send(session.State{})
	require.Eventually(t, func() bool { return store.Account() == "" }, time.Second, time.Millisecond)
	assert.True(t, store.Snapshot().IsEmpty())

	cancel()
	<-done
}
