package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/fjod/go_cart/market-client/internal/domain"
)

// Backend is the node the provider builds and broadcasts transactions with.
// *ethclient.Client satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// TxRequest is what the human is asked to approve.
type TxRequest struct {
	From     common.Address
	To       common.Address
	Value    *big.Int
	Data     []byte
	Gas      uint64
	MaxFee   *big.Int
	ChainID  *big.Int
	Function string
}

// Prompter asks the human for decisions. Returning domain.ErrUserRejected or
// false means the human declined.
type Prompter interface {
	Passphrase(ctx context.Context, account accounts.Account) (string, error)
	ConfirmTransaction(ctx context.Context, req TxRequest) (bool, error)
}

// KeystoreProvider is a wallet over a local go-ethereum keystore. Accounts
// count as authorized once the human unlocks them.
type KeystoreProvider struct {
	ks       *keystore.KeyStore
	backend  Backend
	prompter Prompter
	interval time.Duration

	mu         sync.Mutex
	authorized []common.Address
	chainID    *big.Int

	accountFeed event.Feed
	chainFeed   event.Feed
}

func NewKeystoreProvider(ks *keystore.KeyStore, backend Backend, prompter Prompter, pollInterval time.Duration) *KeystoreProvider {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	return &KeystoreProvider{
		ks:       ks,
		backend:  backend,
		prompter: prompter,
		interval: pollInterval,
	}
}

func (p *KeystoreProvider) Accounts(_ context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]common.Address(nil), p.authorized...), nil
}

// RequestAccounts unlocks the first keystore account after prompting for its passphrase.
func (p *KeystoreProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if current, _ := p.Accounts(ctx); len(current) > 0 {
		return current, nil
	}

	all := p.ks.Accounts()
	if len(all) == 0 {
		return nil, domain.ErrProviderUnavailable
	}
	acct := all[0]

	pass, err := p.prompter.Passphrase(ctx, acct)
	if err != nil {
		return nil, rejected(err)
	}
	if err := p.ks.Unlock(acct, pass); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUserRejected, err)
	}

	p.mu.Lock()
	p.authorized = []common.Address{acct.Address}
	list := append([]common.Address(nil), p.authorized...)
	p.mu.Unlock()

	p.accountFeed.Send(list)
	return list, nil
}

func (p *KeystoreProvider) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := p.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	return id, nil
}

func (p *KeystoreProvider) SubscribeAccounts(ch chan<- []common.Address) event.Subscription {
	return p.accountFeed.Subscribe(ch)
}

func (p *KeystoreProvider) SubscribeChain(ch chan<- *big.Int) event.Subscription {
	return p.chainFeed.Subscribe(ch)
}

// Run forwards keystore wallet drops as account changes and polls the chain id
// until ctx is done.
func (p *KeystoreProvider) Run(ctx context.Context) {
	events := make(chan accounts.WalletEvent, 16)
	sub := p.ks.Subscribe(events)
	defer sub.Unsubscribe()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pollChain(ctx)
	for {
		select {
		case ev := <-events:
			if ev.Kind == accounts.WalletDropped {
				p.dropWallet(ev.Wallet)
			}
		case <-ticker.C:
			p.pollChain(ctx)
		case err := <-sub.Err():
			if err != nil {
				slog.Error("keystore subscription failed", "error", err)
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *KeystoreProvider) dropWallet(w accounts.Wallet) {
	dropped := make(map[common.Address]bool)
	for _, a := range w.Accounts() {
		dropped[a.Address] = true
	}

	p.mu.Lock()
	kept := p.authorized[:0]
	changed := false
	for _, a := range p.authorized {
		if dropped[a] {
			changed = true
			continue
		}
		kept = append(kept, a)
	}
	p.authorized = kept
	list := append([]common.Address{}, kept...)
	p.mu.Unlock()

	if changed {
		slog.Info("authorized account removed from keystore", "remaining", len(list))
		p.accountFeed.Send(list)
	}
}

func (p *KeystoreProvider) pollChain(ctx context.Context) {
	id, err := p.backend.ChainID(ctx)
	if err != nil {
		slog.WarnContext(ctx, "poll chain id failed", "error", err)
		return
	}

	p.mu.Lock()
	changed := p.chainID != nil && p.chainID.Cmp(id) != 0
	p.chainID = id
	p.mu.Unlock()

	if changed {
		slog.InfoContext(ctx, "chain changed", "chain_id", id)
		p.chainFeed.Send(id)
	}
}

// SendTransaction builds an EIP-1559 transaction, asks the human to approve
// it, signs it with the unlocked key and broadcasts it. Nothing is broadcast
// when the human declines.
func (p *KeystoreProvider) SendTransaction(ctx context.Context, from, to common.Address, value *big.Int, data []byte, function string) (*types.Transaction, error) {
	if !p.isAuthorized(from) {
		return nil, domain.ErrUnauthorized
	}
	if value == nil {
		value = new(big.Int)
	}

	chainID, err := p.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	nonce, err := p.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending nonce: %w", err)
	}
	tip, err := p.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}
	feeCap, err := p.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	if feeCap.Cmp(tip) < 0 {
		feeCap = new(big.Int).Set(tip)
	}
	gas, err := p.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Value: value, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	ok, err := p.prompter.ConfirmTransaction(ctx, TxRequest{
		From:     from,
		To:       to,
		Value:    value,
		Data:     data,
		Gas:      gas,
		MaxFee:   new(big.Int).Mul(feeCap, new(big.Int).SetUint64(gas)),
		ChainID:  chainID,
		Function: function,
	})
	if err != nil {
		return nil, rejected(err)
	}
	if !ok {
		return nil, domain.ErrUserRejected
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	signed, err := p.ks.SignTx(accounts.Account{Address: from}, tx, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := p.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	slog.InfoContext(ctx, "transaction broadcast", "tx", signed.Hash().Hex(), "function", function)
	return signed, nil
}

func (p *KeystoreProvider) isAuthorized(addr common.Address) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range p.authorized {
		if a == addr {
			return true
		}
	}
	return false
}

// rejected maps prompt failures to domain.ErrUserRejected.
func rejected(err error) error {
	if errors.Is(err, domain.ErrUserRejected) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUserRejected, err)
}
