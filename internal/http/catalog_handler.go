package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const (
	maxImageSize   = 5 << 20
	warrantyPeriod = 30 * 24 * time.Hour
)

type CatalogWriter interface {
	UploadImage(ctx context.Context, id, filename string, r io.Reader) (string, error)
	ImageURL(id string) string
}

// Lister publishes a listing on the ledger and in the catalog.
type Lister interface {
	ListProduct(ctx context.Context, l domain.Listing) (domain.CatalogProduct, error)
}

// CatalogHandler publishes a seller's listings and their images.
type CatalogHandler struct {
	catalog CatalogWriter
	lister  Lister
	timeout time.Duration
}

func NewCatalogHandler(catalog CatalogWriter, lister Lister, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, lister: lister, timeout: timeout}
}

type ListingRequestDTO struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	Warranty    bool      `json:"warranty"`
	DeliveryAt  time.Time `json:"deliveryAt"`
}

type ImageResponseDTO struct {
	ImagePath string `json:"image_path"`
	ImageURL  string `json:"image_url"`
}

// CreateProduct lists a product on the ledger and then in the catalog. It
// waits on the wallet and the ledger, so it runs without a request timeout.
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ListingRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		respondError(w, http.StatusBadRequest, "invalid_listing", "title is required")
		return
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil || !price.IsPositive() {
		respondError(w, http.StatusBadRequest, "invalid_listing", "price must be a positive number")
		return
	}
	deliveryIn := time.Until(req.DeliveryAt)
	if deliveryIn <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_listing", "deliveryAt must be in the future")
		return
	}

	listing := domain.Listing{
		Title:       req.Title,
		Description: req.Description,
		UnitPrice:   price,
		DeliveryIn:  deliveryIn.Truncate(time.Second),
	}
	if req.Warranty {
		listing.WarrantyDuration = warrantyPeriod
	}

	created, err := h.lister.ListProduct(r.Context(), listing)
	if err != nil {
		if created.ProductID != "" {
			respondJSON(w, http.StatusBadGateway, ErrorResponse{
				Error:   err.Error(),
				Code:    "catalog_unavailable",
				Details: "product " + created.ProductID + " is listed on the ledger without a catalog record",
			})
			return
		}
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// UploadImage forwards the multipart field "image" to the catalog.
func (h *CatalogHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_image", "multipart field \"image\" is required")
		return
	}
	defer file.Close()

	path, err := h.catalog.UploadImage(ctx, id, header.Filename, file)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, ImageResponseDTO{ImagePath: path, ImageURL: h.catalog.ImageURL(id)})
}
