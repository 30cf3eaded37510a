package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fjod/go_cart/market-client/internal/domain"
)

type CheckoutService interface {
	Submit(ctx context.Context, method domain.PaymentMethod) (*domain.CheckoutAttempt, error)
	Methods(ctx context.Context) ([]domain.PaymentMethod, error)
	Processing() bool
	LastAttempt() (domain.CheckoutAttempt, bool)
}

type CheckoutHandler struct {
	checkout CheckoutService
	timeout  time.Duration
}

func NewCheckoutHandler(checkout CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, timeout: timeout}
}

type CheckoutRequestDTO struct {
	PaymentMethod string `json:"payment_method"`
}

type CheckoutResponseDTO struct {
	Attempt      *domain.CheckoutAttempt `json:"attempt"`
	Confirmation *domain.Confirmation    `json:"confirmation,omitempty"`
	Processing   bool                    `json:"processing"`
}

type MethodsResponseDTO struct {
	Methods []domain.PaymentMethod `json:"methods"`
}

func (h *CheckoutHandler) Methods(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	methods, err := h.checkout.Methods(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MethodsResponseDTO{Methods: methods})
}

// Checkout pays for the cart. It blocks until the payment is confirmed or
// failed and is not subject to the request timeout.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.MethodNative.String()
	}
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payment_method", err.Error())
		return
	}

	attempt, err := h.checkout.Submit(r.Context(), method)
	if err != nil {
		handleError(w, r, err)
		return
	}

	resp := CheckoutResponseDTO{Attempt: attempt}
	if conf, ok := attempt.Confirmation(); ok {
		resp.Confirmation = &conf
	}
	respondJSON(w, http.StatusCreated, resp)
}

// Status reports the last attempt and whether one is in flight.
func (h *CheckoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := CheckoutResponseDTO{Processing: h.checkout.Processing()}
	if last, ok := h.checkout.LastAttempt(); ok {
		resp.Attempt = &last
		if conf, ok := last.Confirmation(); ok {
			resp.Confirmation = &conf
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
