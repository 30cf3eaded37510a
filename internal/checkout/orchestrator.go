package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/shopspring/decimal"
)

// Ledger is the payment side of the remote ledger.
// Consumers define this interface; internal/ledger implements it.
type Ledger interface {
	IsAccepted(ctx context.Context, method domain.PaymentMethod) (bool, error)
	AcceptedInstruments(ctx context.Context) ([]domain.PaymentMethod, error)
	SubmitPayment(ctx context.Context, from common.Address, method domain.PaymentMethod, total decimal.Decimal) (common.Hash, error)
	WaitConfirmed(ctx context.Context, hash common.Hash) (string, error)
}

// CartStore is the account-scoped cart the orchestrator pays for.
type CartStore interface {
	AccountSnapshot() (string, *domain.Cart)
	ClearAccount(account string)
}

type Session interface {
	Require() (common.Address, error)
}

type OrderRecorder interface {
	SaveOrder(ctx context.Context, order domain.Order) error
}

type EventPublisher interface {
	PublishOrderConfirmed(ctx context.Context, order domain.Order) error
}

type Orchestrator struct {
	ledger         Ledger
	cart           CartStore
	session        Session
	orders         OrderRecorder
	events         EventPublisher
	confirmTimeout time.Duration

	inFlight atomic.Bool

	mu   sync.Mutex
	last *domain.CheckoutAttempt
}

func NewOrchestrator(ledger Ledger, cart CartStore, session Session, orders OrderRecorder, events EventPublisher, confirmTimeout time.Duration) *Orchestrator {
	if confirmTimeout <= 0 {
		confirmTimeout = 10 * time.Minute
	}
	return &Orchestrator{
		ledger:         ledger,
		cart:           cart,
		session:        session,
		orders:         orders,
		events:         events,
		confirmTimeout: confirmTimeout,
	}
}

// Submit pays for the current cart with method. The cart is cleared only
// after the ledger confirms the payment; on any failure it is left as it
// was. A failed attempt is returned together with the error.
func (o *Orchestrator) Submit(ctx context.Context, method domain.PaymentMethod) (*domain.CheckoutAttempt, error) {
	from, err := o.session.Require()
	if err != nil {
		return nil, err
	}

	owner, cart := o.cart.AccountSnapshot()
	if owner == "" {
		owner = from.Hex()
	}
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, domain.ErrCheckoutInProgress
	}
	defer o.inFlight.Store(false)

	attempt := domain.NewCheckoutAttempt(from.Hex(), method, cart)
	o.remember(attempt)
	log := slog.With("attempt_id", attempt.ID, "method", method.String(), "amount", attempt.Amount.String())
	log.InfoContext(ctx, "checkout started")

	accepted, err := o.ledger.IsAccepted(ctx, method)
	if err != nil {
		return o.fail(ctx, attempt, fmt.Errorf("check instrument: %w", err))
	}
	if !accepted {
		return o.fail(ctx, attempt, &domain.RemoteError{Op: "check instrument", Reason: fmt.Sprintf("%s is not accepted for payments", method)})
	}

	if err := o.transition(attempt, domain.CheckoutStatusSubmitted); err != nil {
		return o.fail(ctx, attempt, err)
	}

	hash, err := o.ledger.SubmitPayment(ctx, from, method, attempt.Amount)
	if err != nil {
		return o.fail(ctx, attempt, err)
	}
	o.update(func() { attempt.TxHash = hash.Hex() })
	log.InfoContext(ctx, "payment submitted", "tx", hash.Hex())

	// The payment is out; keep waiting even if the caller goes away.
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.confirmTimeout)
	defer cancel()
	ref, err := o.ledger.WaitConfirmed(waitCtx, hash)
	if err != nil {
		return o.fail(ctx, attempt, err)
	}

	o.update(func() { attempt.Reference = ref })
	if err := o.transition(attempt, domain.CheckoutStatusConfirmed); err != nil {
		return o.fail(ctx, attempt, err)
	}
	// The session may have switched accounts while waiting; clear the cart
	// that paid.
	o.cart.ClearAccount(owner)
	log.InfoContext(ctx, "checkout confirmed", "reference", ref)

	o.record(waitCtx, domain.OrderFromAttempt(o.copyOf(attempt), cart.Lines))
	return o.copyOf(attempt), nil
}

// Methods lists the instruments the UI may offer: the native coin and every
// token the escrow accepts, read fresh.
func (o *Orchestrator) Methods(ctx context.Context) ([]domain.PaymentMethod, error) {
	tokens, err := o.ledger.AcceptedInstruments(ctx)
	if err != nil {
		return nil, fmt.Errorf("accepted instruments: %w", err)
	}
	methods := []domain.PaymentMethod{domain.MethodNative}
	for _, t := range tokens {
		if t != domain.MethodNative {
			methods = append(methods, t)
		}
	}
	return methods, nil
}

// Processing reports whether a checkout is in flight.
func (o *Orchestrator) Processing() bool {
	return o.inFlight.Load()
}

// LastAttempt returns a copy of the most recent attempt, if any.
func (o *Orchestrator) LastAttempt() (domain.CheckoutAttempt, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return domain.CheckoutAttempt{}, false
	}
	return *o.last, true
}

func (o *Orchestrator) fail(ctx context.Context, attempt *domain.CheckoutAttempt, cause error) (*domain.CheckoutAttempt, error) {
	reason := failureReason(cause)
	o.update(func() {
		if err := attempt.Fail(reason); err != nil {
			slog.ErrorContext(ctx, "cannot mark attempt failed", "attempt_id", attempt.ID, "error", err)
		}
	})
	slog.WarnContext(ctx, "checkout failed", "attempt_id", attempt.ID, "status", attempt.Status.String(), "reason", reason)
	return o.copyOf(attempt), fmt.Errorf("checkout %s: %w", attempt.ID, cause)
}

func (o *Orchestrator) record(ctx context.Context, order domain.Order) {
	if o.orders != nil {
		if err := o.orders.SaveOrder(ctx, order); err != nil {
			slog.ErrorContext(ctx, "save order failed", "reference", order.Reference, "error", err)
		}
	}
	if o.events != nil {
		if err := o.events.PublishOrderConfirmed(ctx, order); err != nil {
			slog.ErrorContext(ctx, "publish order confirmed failed", "reference", order.Reference, "error", err)
		}
	}
}

func (o *Orchestrator) transition(attempt *domain.CheckoutAttempt, to domain.CheckoutStatus) error {
	var err error
	o.update(func() { err = attempt.Transition(to) })
	return err
}

func (o *Orchestrator) remember(attempt *domain.CheckoutAttempt) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = attempt
}

func (o *Orchestrator) update(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn()
}

func (o *Orchestrator) copyOf(attempt *domain.CheckoutAttempt) *domain.CheckoutAttempt {
	o.mu.Lock()
	defer o.mu.Unlock()
	cp := *attempt
	return &cp
}

func failureReason(err error) string {
	var remote *domain.RemoteError
	switch {
	case errors.As(err, &remote) && remote.Reason != "":
		return remote.Reason
	case errors.Is(err, domain.ErrUserRejected):
		return "payment was rejected in the wallet"
	case errors.Is(err, context.DeadlineExceeded):
		return "payment confirmation was not observed in time"
	default:
		return err.Error()
	}
}
