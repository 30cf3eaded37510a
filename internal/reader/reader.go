package reader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/fjod/go_cart/market-client/internal/ledger"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	defaultMaxAttempts = 1000
	batchSize          = 20
	maxProducts        = 500
)

// Ledger is the on-chain product source.
// Consumers define this interface; internal/ledger implements it.
type Ledger interface {
	ProductData(ctx context.Context, productID string) (domain.LedgerProduct, error)
	Products(ctx context.Context, start, end uint64) ([]domain.LedgerProduct, error)
}

// Catalog is the off-chain display store.
type Catalog interface {
	Product(ctx context.Context, id string) (domain.CatalogProduct, error)
	Products(ctx context.Context) ([]domain.CatalogProduct, error)
}

type Reader struct {
	ledger      Ledger
	catalog     Catalog
	group       singleflight.Group
	maxAttempts int
}

func New(l Ledger, c Catalog) *Reader {
	return &Reader{
		ledger:      l,
		catalog:     c,
		maxAttempts: defaultMaxAttempts,
	}
}

// GetProduct merges the ledger entry and the catalog record of id. Concurrent
// calls for the same id share one fetch.
func (r *Reader) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, domain.ErrInvalidProductID
	}

	v, err, shared := r.group.Do(id, func() (interface{}, error) {
		return r.fetch(ctx, id)
	})
	if err != nil {
		return domain.Product{}, err
	}
	if shared {
		slog.DebugContext(ctx, "product read coalesced", "product_id", id)
	}
	return v.(domain.Product), nil
}

func (r *Reader) fetch(ctx context.Context, id string) (domain.Product, error) {
	var (
		lp        domain.LedgerProduct
		cp        domain.CatalogProduct
		onLedger  bool
		inCatalog bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := r.ledger.ProductData(gctx, id)
		switch {
		case err == nil:
			lp, onLedger = p, true
		case absentOnLedger(err):
			if errors.Is(err, domain.ErrTransientRead) {
				slog.WarnContext(ctx, "ledger read failed, serving catalog record", "product_id", id, "error", err)
			}
		default:
			return err
		}
		return nil
	})
	g.Go(func() error {
		p, err := r.catalog.Product(gctx, id)
		switch {
		case err == nil:
			cp, inCatalog = p, true
		case errors.Is(err, domain.ErrNotFound):
		default:
			return fmt.Errorf("catalog product %s: %w", id, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Product{}, err
	}

	switch {
	case onLedger && inCatalog:
		return merge(&lp, &cp), nil
	case onLedger:
		return merge(&lp, nil), nil
	case inCatalog:
		price, err := catalogPrice(&cp)
		if err != nil {
			slog.WarnContext(ctx, "catalog-only product has no usable price", "product_id", id, "error", err)
			return domain.Product{}, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
		}
		p := merge(nil, &cp)
		p.UnitPrice = price
		return p, nil
	default:
		return domain.Product{}, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
}

// ListProducts returns the ledger products in [start, end] merged with the
// catalog. An end past the last product is shrunk until the ledger accepts it.
func (r *Reader) ListProducts(ctx context.Context, start, end uint64) ([]domain.Product, error) {
	entries, err := r.ledgerPage(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return r.withCatalog(ctx, entries), nil
}

// AllProducts pages through the ledger in batches until an empty page,
// capped at maxProducts.
func (r *Reader) AllProducts(ctx context.Context) ([]domain.Product, error) {
	var all []domain.LedgerProduct
	for start := uint64(0); len(all) < maxProducts; start += batchSize {
		page, err := r.ledgerPage(ctx, start, start+batchSize-1)
		if err != nil {
			if len(all) == 0 {
				return nil, err
			}
			slog.WarnContext(ctx, "stopped paging products", "start", start, "error", err)
			break
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
	}
	if len(all) > maxProducts {
		all = all[:maxProducts]
	}
	return r.withCatalog(ctx, all), nil
}

func (r *Reader) ledgerPage(ctx context.Context, start, end uint64) ([]domain.LedgerProduct, error) {
	if end < start {
		return nil, nil
	}

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		page, err := r.ledger.Products(ctx, start, end)
		if err == nil {
			return page, nil
		}
		if !errors.Is(err, ledger.ErrOutOfBounds) {
			return nil, err
		}
		if end == start {
			return nil, nil
		}
		end--
	}

	slog.WarnContext(ctx, "product range retries exhausted", "start", start, "attempts", r.maxAttempts)
	return nil, nil
}

// withCatalog enriches ledger entries with catalog records. A failing
// catalog degrades the page to ledger data only.
func (r *Reader) withCatalog(ctx context.Context, entries []domain.LedgerProduct) []domain.Product {
	out := make([]domain.Product, 0, len(entries))
	if len(entries) == 0 {
		return out
	}

	records, err := r.catalog.Products(ctx)
	if err != nil {
		slog.WarnContext(ctx, "catalog list unavailable, serving ledger data only", "error", err)
	}
	byKey := make(map[string]*domain.CatalogProduct, len(records))
	for i := range records {
		byKey[records[i].Key()] = &records[i]
	}

	for i := range entries {
		out = append(out, merge(&entries[i], byKey[entries[i].ProductID]))
	}
	return out
}

func absentOnLedger(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrTransientRead) ||
		errors.Is(err, domain.ErrInvalidProductID)
}

// catalogPrice decodes the display price of a catalog record at ledger
// precision. A missing, malformed or non-positive price is an error.
func catalogPrice(cp *domain.CatalogProduct) (decimal.Decimal, error) {
	raw := strings.TrimSpace(cp.Price)
	if raw == "" {
		return decimal.Zero, errors.New("catalog price missing")
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode catalog price %q: %w", raw, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("catalog price %q is not positive", raw)
	}
	return price.Round(ledger.PriceDecimals), nil
}

// merge prefers ledger values. A nil ledger entry yields an unconfirmed record
// without a price; callers set it from catalogPrice.
func merge(lp *domain.LedgerProduct, cp *domain.CatalogProduct) domain.Product {
	var p domain.Product
	if cp != nil {
		p.ProductID = cp.Key()
		p.SellerID = cp.SellerID
		p.Title = cp.Title
		p.Description = cp.Description
		p.Image = cp.Image
		if cp.ExpectedDeliveryTime > 0 {
			t := time.Unix(cp.ExpectedDeliveryTime, 0).UTC()
			p.ExpectedDelivery = &t
		}
	}

	if lp == nil {
		p.Unconfirmed = true
		return p
	}

	p.ProductID = lp.ProductID
	p.SellerID = lp.SellerID
	p.UnitPrice = lp.UnitPrice
	p.WarrantyDuration = lp.WarrantyDuration
	if lp.Title != "" {
		p.Title = lp.Title
	}
	if !lp.ExpectedDelivery.IsZero() {
		t := lp.ExpectedDelivery
		p.ExpectedDelivery = &t
	}
	return p
}
