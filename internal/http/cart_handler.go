package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CartStore interface {
	AddItem(line domain.CartLine)
	SetQuantity(productID string, n int)
	RemoveItem(productID string)
	Clear()
	Snapshot() *domain.Cart
}

type CartHandler struct {
	store   CartStore
	reader  ProductReader
	timeout time.Duration
}

func NewCartHandler(store CartStore, reader ProductReader, timeout time.Duration) *CartHandler {
	return &CartHandler{
		store:   store,
		reader:  reader,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.store.Snapshot())
}

// AddItem looks the product up and merges it into the cart at its current
// price.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 1 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	product, err := h.reader.GetProduct(ctx, req.ProductID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	h.store.AddItem(product.CartLine(req.Quantity))
	respondJSON(w, http.StatusCreated, h.store.Snapshot())
}

// UpdateQuantity sets a line's quantity; 0 removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity < 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	if !h.hasLine(productID) {
		respondError(w, http.StatusNotFound, "not_found", "product is not in the cart")
		return
	}

	h.store.SetQuantity(productID, req.Quantity)
	respondJSON(w, http.StatusOK, h.store.Snapshot())
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.store.RemoveItem(chi.URLParam(r, "product_id"))
	respondJSON(w, http.StatusOK, h.store.Snapshot())
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.store.Clear()
	respondJSON(w, http.StatusOK, h.store.Snapshot())
}

func (h *CartHandler) hasLine(productID string) bool {
	for _, l := range h.store.Snapshot().Lines {
		if l.ProductID == productID {
			return true
		}
	}
	return false
}
