package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_CreateProduct(t *testing.T) {
	api := newTestAPI()

	recorder := api.do(t, http.MethodPost, "/api/v1/catalog/products", ListingRequestDTO{
		Title:      "Desk",
		Price:      "120.5",
		Warranty:   true,
		DeliveryAt: time.Now().Add(48 * time.Hour),
	})

	require.Equal(t, http.StatusCreated, recorder.Code)
	var created domain.CatalogProduct
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&created))
	assert.Equal(t, "42", created.ProductID)
	require.Len(t, api.sellers.Listings, 1)
	l := api.sellers.Listings[0]
	assert.Equal(t, "Desk", l.Title)
	assert.Equal(t, "120.5", l.UnitPrice.String())
	assert.Equal(t, 30*24*time.Hour, l.WarrantyDuration)
	assert.InDelta(t, (48 * time.Hour).Seconds(), l.DeliveryIn.Seconds(), 5)
}

func TestCatalog_CreateProductValidation(t *testing.T) {
	future := time.Now().Add(time.Hour)
	tests := []struct {
		name string
		req  ListingRequestDTO
	}{
		{"no title", ListingRequestDTO{Price: "1", DeliveryAt: future}},
		{"bad price", ListingRequestDTO{Title: "Desk", Price: "abc", DeliveryAt: future}},
		{"zero price", ListingRequestDTO{Title: "Desk", Price: "0", DeliveryAt: future}},
		{"past delivery", ListingRequestDTO{Title: "Desk", Price: "1", DeliveryAt: time.Now().Add(-time.Hour)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI()

			recorder := api.do(t, http.MethodPost, "/api/v1/catalog/products", tt.req)

			assert.Equal(t, http.StatusBadRequest, recorder.Code)
			assert.Equal(t, "invalid_listing", decodeError(t, recorder).Code)
			assert.Empty(t, api.sellers.Listings)
		})
	}
}

func TestCatalog_CreateProductNotVerifiedSeller(t *testing.T) {
	api := newTestAPI()
	api.sellers.Err = domain.ErrNotVerifiedSeller

	recorder := api.do(t, http.MethodPost, "/api/v1/catalog/products", ListingRequestDTO{Title: "Desk", Price: "1", DeliveryAt: time.Now().Add(time.Hour)})

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, "not_verified_seller", decodeError(t, recorder).Code)
}

func TestCatalog_CreateProductCatalogDownAfterListing(t *testing.T) {
	api := newTestAPI()
	api.sellers.Err = errors.New("catalog record not created")
	api.sellers.Partial = domain.CatalogProduct{ProductID: "42"}

	recorder := api.do(t, http.MethodPost, "/api/v1/catalog/products", ListingRequestDTO{Title: "Desk", Price: "1", DeliveryAt: time.Now().Add(time.Hour)})

	assert.Equal(t, http.StatusBadGateway, recorder.Code)
	resp := decodeError(t, recorder)
	assert.Equal(t, "catalog_unavailable", resp.Code)
	assert.Contains(t, resp.Details, "42")
}

func TestCatalog_UploadImage(t *testing.T) {
	api := newTestAPI()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "desk.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	request := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/products/3/image", &body)
	request.Header.Set("Content-Type", mw.FormDataContentType())
	recorder := httptest.NewRecorder()
	api.router.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusCreated, recorder.Code)
	var resp ImageResponseDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, "/uploads/3.png", resp.ImagePath)
	assert.Equal(t, "http://catalog.test/products/3/image", resp.ImageURL)
	assert.Equal(t, "png-bytes", string(api.catalog.Uploaded))
	assert.Equal(t, "desk.png", api.catalog.Filename)
}

func TestCatalog_UploadImageMissingField(t *testing.T) {
	api := newTestAPI()

	recorder := api.do(t, http.MethodPost, "/api/v1/catalog/products/3/image", map[string]string{"image": "nope"})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid_image", decodeError(t, recorder).Code)
}
