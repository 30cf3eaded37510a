package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/fjod/go_cart/market-client/internal/repository"
	"github.com/fjod/go_cart/market-client/internal/session"
)

// SessionFeed is the part of the account session the store follows.
type SessionFeed interface {
	Current() session.State
	Subscribe(ch chan<- session.State) event.Subscription
}

// Store owns the cart of the current account. Mutations never fail: the
// in-memory cart is authoritative and the snapshot write is best effort.
type Store struct {
	repo           repository.SnapshotRepository
	persistTimeout time.Duration

	mu      sync.Mutex
	account string
	cart    *domain.Cart
	// readOnlySnapshot is set when the account's snapshot could not be read,
	// so a partial cart never overwrites it.
	readOnlySnapshot bool
}

func NewStore(repo repository.SnapshotRepository) *Store {
	return &Store{
		repo:           repo,
		persistTimeout: time.Second,
		cart:           &domain.Cart{},
	}
}

// AddItem merges line into the cart. Non-positive quantities are ignored.
func (s *Store) AddItem(line domain.CartLine) {
	if line.Quantity < 1 {
		return
	}
	s.mutate(func(c *domain.Cart) { c.Add(line) })
}

// SetQuantity replaces a line quantity; n < 1 removes the line.
func (s *Store) SetQuantity(productID string, n int) {
	s.mutate(func(c *domain.Cart) { c.SetQuantity(productID, n) })
}

func (s *Store) RemoveItem(productID string) {
	s.mutate(func(c *domain.Cart) { c.Remove(productID) })
}

func (s *Store) Clear() {
	s.mutate(func(c *domain.Cart) { c.Clear() })
}

// ClearAccount empties the cart of account. When account is no longer the
// current one its stored snapshot is deleted and the current cart is left
// alone.
func (s *Store) ClearAccount(account string) {
	account = strings.ToLower(account)

	s.mu.Lock()
	defer s.mu.Unlock()

	if account == s.account {
		s.cart.Clear()
		s.persistLocked()
		return
	}
	if account == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()
	if err := s.repo.Delete(ctx, account); err != nil {
		slog.Error("cart snapshot delete failed", "account", account, "error", err)
	}
}

// Snapshot returns a copy of the current cart.
func (s *Store) Snapshot() *domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// AccountSnapshot returns the current account together with a copy of its
// cart, read under one lock.
func (s *Store) AccountSnapshot() (string, *domain.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account, s.cart.Clone()
}

func (s *Store) Account() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// Reload swaps in the persisted cart of account. An empty account gives an
// in-memory cart. The store always ends up with a usable cart; the returned
// error only reports that the snapshot could not be read.
func (s *Store) Reload(ctx context.Context, account string) error {
	account = strings.ToLower(account)

	var (
		lines   []domain.CartLine
		loadErr error
	)
	if account != "" {
		lines, loadErr = s.repo.Load(ctx, account)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.account = account
	s.readOnlySnapshot = false
	switch {
	case loadErr == nil:
		s.cart = domain.NewCart(lines)
		return nil
	case errors.Is(loadErr, repository.ErrSnapshotNotFound):
		s.cart = &domain.Cart{}
		return nil
	case errors.Is(loadErr, repository.ErrUnsupportedSnapshot):
		slog.WarnContext(ctx, "discarding cart snapshot", "account", account, "error", loadErr)
		s.cart = &domain.Cart{}
		return nil
	default:
		s.cart = &domain.Cart{}
		s.readOnlySnapshot = true
		return fmt.Errorf("load cart for %s: %w", account, loadErr)
	}
}

// Follow reloads the cart whenever the session's account changes, until ctx
// is done.
func (s *Store) Follow(ctx context.Context, sess SessionFeed) {
	changes := make(chan session.State, 8)
	sub := sess.Subscribe(changes)
	defer sub.Unsubscribe()

	s.reloadFor(ctx, sess.Current())
	for {
		select {
		case st := <-changes:
			if strings.ToLower(st.Account()) != s.Account() {
				s.reloadFor(ctx, st)
			}
		case err := <-sub.Err():
			if err != nil {
				slog.ErrorContext(ctx, "session subscription failed", "error", err)
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Store) reloadFor(ctx context.Context, st session.State) {
	if err := s.Reload(ctx, st.Account()); err != nil {
		slog.ErrorContext(ctx, "cart reload failed, continuing with an unsaved cart", "error", err)
		return
	}
	slog.InfoContext(ctx, "cart loaded", "account", st.Account(), "lines", len(s.Snapshot().Lines))
}

func (s *Store) mutate(fn func(c *domain.Cart)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s.cart)
	s.persistLocked()
}

func (s *Store) persistLocked() {
	if s.account == "" || s.readOnlySnapshot {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()

	var err error
	if s.cart.IsEmpty() {
		err = s.repo.Delete(ctx, s.account)
	} else {
		err = s.repo.Save(ctx, s.account, s.cart.Lines)
	}
	if err != nil {
		slog.Error("cart snapshot write failed", "account", s.account, "error", err)
	}
}
