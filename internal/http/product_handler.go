package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/go-chi/chi/v5"
)

type ProductReader interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	ListProducts(ctx context.Context, start, end uint64) ([]domain.Product, error)
	AllProducts(ctx context.Context) ([]domain.Product, error)
}

type ProductHandler struct {
	reader  ProductReader
	timeout time.Duration
}

func NewProductHandler(reader ProductReader, timeout time.Duration) *ProductHandler {
	return &ProductHandler{reader: reader, timeout: timeout}
}

// ListProducts returns the index range [start, end] when both are given and
// every product otherwise.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	startStr, endStr := q.Get("start"), q.Get("end")

	var (
		products []domain.Product
		err      error
	)
	if startStr == "" && endStr == "" {
		products, err = h.reader.AllProducts(ctx)
	} else {
		start, errStart := strconv.ParseUint(startStr, 10, 64)
		end, errEnd := strconv.ParseUint(endStr, 10, 64)
		if errStart != nil || errEnd != nil || end < start {
			respondError(w, http.StatusBadRequest, "invalid_range", "start and end must be non-negative integers with start <= end")
			return
		}
		products, err = h.reader.ListProducts(ctx, start, end)
	}
	if err != nil {
		handleError(w, r, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}

	respondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.reader.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}
