package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/fjod/go_cart/market-client/internal/domain"
)

// Provider is the wallet the session talks to.
// Consumers define this interface; internal/wallet implements it.
type Provider interface {
	// Accounts returns accounts already authorized, without prompting.
	Accounts(ctx context.Context) ([]common.Address, error)
	// RequestAccounts asks the human to authorize an account.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SubscribeAccounts(ch chan<- []common.Address) event.Subscription
	SubscribeChain(ch chan<- *big.Int) event.Subscription
}

type State struct {
	Address   common.Address
	Connected bool
	ChainID   *big.Int
}

// Account is the hex address, or "" when disconnected.
func (s State) Account() string {
	if !s.Connected {
		return ""
	}
	return s.Address.Hex()
}

// Session holds the connected account. Create it with New, call Start once
// and Close on shutdown.
type Session struct {
	provider Provider

	mu    sync.RWMutex
	state State
	// connectMu serializes Connect so one prompt is shown at a time.
	connectMu sync.Mutex

	loading atomic.Bool
	feed    event.Feed

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// New creates a disconnected session. provider may be nil when no wallet is
// installed; Connect then fails with domain.ErrProviderUnavailable.
func New(provider Provider) *Session {
	return &Session{
		provider: provider,
		done:     make(chan struct{}),
	}
}

// Start restores an already authorized account without prompting and
// registers the provider change subscriptions. Calls after the first are no-ops.
func (s *Session) Start(ctx context.Context) error {
	if s.provider == nil {
		slog.Warn("no wallet provider configured, session stays disconnected")
		return nil
	}

	var startErr error
	s.startOnce.Do(func() {
		s.loading.Store(true)
		defer s.loading.Store(false)

		accounts, err := s.provider.Accounts(ctx)
		if err != nil {
			startErr = fmt.Errorf("detect authorized accounts: %w", err)
			return
		}
		if len(accounts) > 0 {
			chainID, err := s.provider.ChainID(ctx)
			if err != nil {
				slog.WarnContext(ctx, "chain id unavailable", "error", err)
			}
			s.set(State{Address: accounts[0], Connected: true, ChainID: chainID})
		}

		accCh := make(chan []common.Address, 8)
		chainCh := make(chan *big.Int, 8)
		accSub := s.provider.SubscribeAccounts(accCh)
		chainSub := s.provider.SubscribeChain(chainCh)

		s.wg.Add(1)
		go s.loop(accCh, chainCh, accSub, chainSub)
	})
	return startErr
}

func (s *Session) loop(accCh <-chan []common.Address, chainCh <-chan *big.Int, accSub, chainSub event.Subscription) {
	defer s.wg.Done()
	defer accSub.Unsubscribe()
	defer chainSub.Unsubscribe()

	for {
		select {
		case accounts := <-accCh:
			s.handleAccounts(accounts)
		case chainID := <-chainCh:
			s.handleChain(chainID)
		case err := <-accSub.Err():
			if err != nil {
				slog.Error("account subscription failed", "error", err)
			}
			return
		case err := <-chainSub.Err():
			if err != nil {
				slog.Error("chain subscription failed", "error", err)
			}
			return
		case <-s.done:
			return
		}
	}
}

// Close releases the provider subscriptions.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

// Connect requests account access. It is idempotent while connected.
func (s *Session) Connect(ctx context.Context) (State, error) {
	if s.provider == nil {
		return State{}, domain.ErrProviderUnavailable
	}

	s.connectMu.Lock()
	defer s.connectMu.Unlock()
	if cur := s.Current(); cur.Connected {
		return cur, nil
	}

	s.loading.Store(true)
	defer s.loading.Store(false)

	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		return State{}, fmt.Errorf("connect: %w", err)
	}
	if len(accounts) == 0 {
		return State{}, fmt.Errorf("connect: %w", domain.ErrUserRejected)
	}

	chainID, err := s.provider.ChainID(ctx)
	if err != nil {
		slog.WarnContext(ctx, "chain id unavailable", "error", err)
	}

	next := State{Address: accounts[0], Connected: true, ChainID: chainID}
	s.set(next)
	slog.InfoContext(ctx, "wallet connected", "account", next.Account())
	return next, nil
}

// Disconnect resets the session locally. The provider keeps its authorization.
func (s *Session) Disconnect() {
	s.set(State{})
}

// Require returns the connected address or domain.ErrUnauthorized.
func (s *Session) Require() (common.Address, error) {
	cur := s.Current()
	if !cur.Connected {
		return common.Address{}, domain.ErrUnauthorized
	}
	return cur.Address, nil
}

func (s *Session) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Loading reports whether a connect or restore is in flight.
func (s *Session) Loading() bool {
	return s.loading.Load()
}

// Subscribe delivers every state change to ch. The receiver must keep draining ch.
func (s *Session) Subscribe(ch chan<- State) event.Subscription {
	return s.feed.Subscribe(ch)
}

func (s *Session) handleAccounts(accounts []common.Address) {
	if len(accounts) == 0 {
		slog.Info("wallet reported no accounts, disconnecting")
		s.set(State{})
		return
	}
	s.update(func(cur State) State {
		return State{Address: accounts[0], Connected: true, ChainID: cur.ChainID}
	})
}

func (s *Session) handleChain(chainID *big.Int) {
	s.update(func(cur State) State {
		cur.ChainID = chainID
		return cur
	})
}

func (s *Session) set(next State) {
	s.update(func(State) State { return next })
}

// update applies fn to the state under the lock and publishes the result
// when it changed.
func (s *Session) update(fn func(cur State) State) {
	s.mu.Lock()
	prev := s.state
	next := fn(prev)
	s.state = next
	s.mu.Unlock()

	if sameState(prev, next) {
		return
	}
	s.feed.Send(next)
}

func sameState(a, b State) bool {
	if a.Connected != b.Connected || a.Address != b.Address {
		return false
	}
	if a.ChainID == nil || b.ChainID == nil {
		return a.ChainID == nil && b.ChainID == nil
	}
	return a.ChainID.Cmp(b.ChainID) == 0
}
