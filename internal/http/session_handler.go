package http

import (
	"context"
	"net/http"

	"github.com/fjod/go_cart/market-client/internal/session"
)

type SessionService interface {
	Current() session.State
	Connect(ctx context.Context) (session.State, error)
	Disconnect()
	Loading() bool
}

type SessionHandler struct {
	session SessionService
}

func NewSessionHandler(s SessionService) *SessionHandler {
	return &SessionHandler{session: s}
}

type SessionResponseDTO struct {
	Account   string `json:"account,omitempty"`
	Connected bool   `json:"connected"`
	ChainID   string `json:"chain_id,omitempty"`
	Loading   bool   `json:"loading"`
}

func (h *SessionHandler) toDTO(st session.State) SessionResponseDTO {
	dto := SessionResponseDTO{
		Account:   st.Account(),
		Connected: st.Connected,
		Loading:   h.session.Loading(),
	}
	if st.ChainID != nil {
		dto.ChainID = st.ChainID.String()
	}
	return dto
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.toDTO(h.session.Current()))
}

// Connect may wait on the wallet prompt, so it runs without a request timeout.
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	st, err := h.session.Connect(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.toDTO(st))
}

func (h *SessionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.session.Disconnect()
	respondJSON(w, http.StatusOK, h.toDTO(h.session.Current()))
}
