package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/fjod/go_cart/market-client/internal/orders"
	"github.com/go-chi/chi/v5"
)

type OrdersService interface {
	List(ctx context.Context) ([]orders.OrderView, error)
	ConfirmDelivery(ctx context.Context, reference, productID string) (domain.Delivery, error)
}

type OrdersHandler struct {
	orders  OrdersService
	timeout time.Duration
}

func NewOrdersHandler(s OrdersService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{orders: s, timeout: timeout}
}

func (h *OrdersHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.orders.List(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if list == nil {
		list = []orders.OrderView{}
	}
	respondJSON(w, http.StatusOK, list)
}

// ConfirmDelivery waits on the wallet and the ledger, so it runs without a
// request timeout.
func (h *OrdersHandler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	d, err := h.orders.ConfirmDelivery(r.Context(), chi.URLParam(r, "reference"), chi.URLParam(r, "product_id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}
