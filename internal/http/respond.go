package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/go_cart/market-client/internal/domain"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps the domain error taxonomy to HTTP statuses.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		httpStatus int
		code       string
		details    string
	)

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		httpStatus, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrProviderUnavailable):
		httpStatus, code = http.StatusServiceUnavailable, "provider_unavailable"
		details = "install a wallet or configure KEYSTORE_DIR"
	case errors.Is(err, domain.ErrUserRejected):
		httpStatus, code = http.StatusConflict, "user_rejected"
	case errors.Is(err, domain.ErrCheckoutInProgress):
		httpStatus, code = http.StatusConflict, "checkout_in_progress"
	case errors.Is(err, domain.ErrNotFound):
		httpStatus, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrRemoteRejected):
		httpStatus, code = http.StatusUnprocessableEntity, "remote_rejected"
		var remote *domain.RemoteError
		if errors.As(err, &remote) {
			details = remote.Reason
		}
	case errors.Is(err, domain.ErrEmptyCart):
		httpStatus, code = http.StatusBadRequest, "empty_cart"
	case errors.Is(err, domain.ErrInvalidProductID):
		httpStatus, code = http.StatusBadRequest, "invalid_product_id"
	case errors.Is(err, domain.ErrInvalidInput):
		httpStatus, code = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrNotVerifiedSeller):
		httpStatus, code = http.StatusForbidden, "not_verified_seller"
	case errors.Is(err, domain.ErrAlreadyRegistered):
		httpStatus, code = http.StatusConflict, "already_registered"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus, code = http.StatusGatewayTimeout, "timeout"
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondJSON(w, httpStatus, ErrorResponse{
		Error:   err.Error(),
		Code:    code,
		Details: details,
	})
}
