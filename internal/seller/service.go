package seller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fjod/go_cart/market-client/internal/domain"
)

const mineTimeout = 10 * time.Minute

// Ledger is the user and listing side of the remote ledger.
// Consumers define this interface; internal/ledger implements it.
type Ledger interface {
	UserData(ctx context.Context, account common.Address) (domain.User, error)
	PendingSellers(ctx context.Context) ([]domain.User, error)
	Register(ctx context.Context, from common.Address, firstName, lastName string) (common.Hash, error)
	VerifySeller(ctx context.Context, from, account common.Address) (common.Hash, error)
	ListProduct(ctx context.Context, from common.Address, l domain.Listing) (common.Hash, error)
	ListedProductID(receipt *types.Receipt) (string, bool)
	WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

type Catalog interface {
	CreateProduct(ctx context.Context, p domain.CatalogProduct) (domain.CatalogProduct, error)
}

type Session interface {
	Require() (common.Address, error)
}

// Service registers accounts, verifies sellers and publishes listings. Every
// ledger write is sent once and waited on until mined.
type Service struct {
	ledger  Ledger
	catalog Catalog
	session Session
}

func NewService(ledger Ledger, catalog Catalog, session Session) *Service {
	return &Service{ledger: ledger, catalog: catalog, session: session}
}

// Profile returns the registration of the connected account.
func (s *Service) Profile(ctx context.Context) (domain.User, error) {
	from, err := s.session.Require()
	if err != nil {
		return domain.User{}, err
	}
	return s.ledger.UserData(ctx, from)
}

// Register signs up the connected account. An account that is already
// registered gets domain.ErrAlreadyRegistered without a transaction.
func (s *Service) Register(ctx context.Context, firstName, lastName string) (domain.User, error) {
	from, err := s.session.Require()
	if err != nil {
		return domain.User{}, err
	}
	firstName, lastName = strings.TrimSpace(firstName), strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return domain.User{}, fmt.Errorf("%w: first and last name are required", domain.ErrInvalidInput)
	}

	existing, err := s.ledger.UserData(ctx, from)
	switch {
	case err == nil:
		return existing, fmt.Errorf("user %s: %w", existing.UserID, domain.ErrAlreadyRegistered)
	case !errors.Is(err, domain.ErrNotFound):
		return domain.User{}, err
	}

	hash, err := s.ledger.Register(ctx, from, firstName, lastName)
	if err != nil {
		return domain.User{}, err
	}
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mineTimeout)
	defer cancel()
	if _, err := s.ledger.WaitMined(waitCtx, hash); err != nil {
		return domain.User{}, err
	}
	slog.InfoContext(ctx, "account registered", "account", from.Hex(), "tx", hash.Hex())

	return s.reread(waitCtx, from, domain.User{FirstName: firstName, LastName: lastName, Account: from.Hex()}), nil
}

func (s *Service) PendingSellers(ctx context.Context) ([]domain.User, error) {
	if _, err := s.session.Require(); err != nil {
		return nil, err
	}
	return s.ledger.PendingSellers(ctx)
}

// VerifySeller approves account as a seller. The ledger only accepts it from
// the admin account and reports the rejection reason otherwise.
func (s *Service) VerifySeller(ctx context.Context, account string) (domain.User, error) {
	from, err := s.session.Require()
	if err != nil {
		return domain.User{}, err
	}
	if !common.IsHexAddress(account) {
		return domain.User{}, fmt.Errorf("%w: %q is not an address", domain.ErrInvalidInput, account)
	}
	target := common.HexToAddress(account)

	hash, err := s.ledger.VerifySeller(ctx, from, target)
	if err != nil {
		return domain.User{}, err
	}
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mineTimeout)
	defer cancel()
	if _, err := s.ledger.WaitMined(waitCtx, hash); err != nil {
		return domain.User{}, err
	}
	slog.InfoContext(ctx, "seller verified", "seller", target.Hex(), "tx", hash.Hex())

	return s.reread(waitCtx, target, domain.User{Account: target.Hex(), Role: domain.RoleSeller, Verified: true}), nil
}

// ListProduct lists l on the ledger, waits for it to be mined and then
// publishes the catalog record under the ledger product id. A failing catalog
// write leaves a ledger-only product and is reported with the record.
func (s *Service) ListProduct(ctx context.Context, l domain.Listing) (domain.CatalogProduct, error) {
	from, err := s.session.Require()
	if err != nil {
		return domain.CatalogProduct{}, err
	}

	u, err := s.ledger.UserData(ctx, from)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.CatalogProduct{}, fmt.Errorf("%s: %w", from.Hex(), domain.ErrNotVerifiedSeller)
	}
	if err != nil {
		return domain.CatalogProduct{}, err
	}
	if !u.CanList() {
		return domain.CatalogProduct{}, fmt.Errorf("%s: %w", from.Hex(), domain.ErrNotVerifiedSeller)
	}

	hash, err := s.ledger.ListProduct(ctx, from, l)
	if err != nil {
		return domain.CatalogProduct{}, err
	}
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mineTimeout)
	defer cancel()
	receipt, err := s.ledger.WaitMined(waitCtx, hash)
	if err != nil {
		return domain.CatalogProduct{}, err
	}
	id, ok := s.ledger.ListedProductID(receipt)
	if !ok {
		return domain.CatalogProduct{}, &domain.RemoteError{Op: "list product", Reason: "listing " + hash.Hex() + " mined without a product id"}
	}
	slog.InfoContext(ctx, "product listed", "product_id", id, "tx", hash.Hex())

	record := domain.CatalogProduct{
		ProductID:            id,
		SellerID:             u.UserID,
		Title:                strings.TrimSpace(l.Title),
		Description:          l.Description,
		Price:                l.UnitPrice.String(),
		Seller:               from.Hex(),
		ExpectedDeliveryTime: time.Now().Add(l.DeliveryIn).Unix(),
		WarrantyDuration:     strconv.FormatInt(int64(l.WarrantyDuration.Seconds()), 10),
	}
	created, err := s.catalog.CreateProduct(waitCtx, record)
	if err != nil {
		return record, fmt.Errorf("product %s listed on ledger, catalog record not created: %w", id, err)
	}
	return created, nil
}

// reread returns the registration of account after a write, or fallback when
// the read fails.
func (s *Service) reread(ctx context.Context, account common.Address, fallback domain.User) domain.User {
	u, err := s.ledger.UserData(ctx, account)
	if err != nil {
		slog.WarnContext(ctx, "registration read after write failed", "account", account.Hex(), "error", err)
		return fallback
	}
	return u
}
