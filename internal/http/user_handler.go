package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/go-chi/chi/v5"
)

type UserService interface {
	Profile(ctx context.Context) (domain.User, error)
	Register(ctx context.Context, firstName, lastName string) (domain.User, error)
	PendingSellers(ctx context.Context) ([]domain.User, error)
	VerifySeller(ctx context.Context, account string) (domain.User, error)
}

type UserHandler struct {
	users   UserService
	timeout time.Duration
}

func NewUserHandler(s UserService, timeout time.Duration) *UserHandler {
	return &UserHandler{users: s, timeout: timeout}
}

type RegisterRequestDTO struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, err := h.users.Profile(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// Register waits on the wallet, so it runs without a request timeout.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	u, err := h.users.Register(r.Context(), req.FirstName, req.LastName)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, u)
}

func (h *UserHandler) PendingSellers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sellers, err := h.users.PendingSellers(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if sellers == nil {
		sellers = []domain.User{}
	}
	respondJSON(w, http.StatusOK, sellers)
}

func (h *UserHandler) VerifySeller(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.VerifySeller(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}
