package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/go_cart/market-client/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// StatusError is a non-2xx answer other than 404.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("catalog returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("catalog returned %d: %s", e.Status, e.Body)
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "catalog",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, domain.ErrNotFound)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Product fetches one record. A 404 yields domain.ErrNotFound.
func (c *Client) Product(ctx context.Context, id string) (domain.CatalogProduct, error) {
	var p domain.CatalogProduct
	if err := c.getJSON(ctx, "/products/"+url.PathEscape(id), &p); err != nil {
		return domain.CatalogProduct{}, err
	}
	return p, nil
}

func (c *Client) Products(ctx context.Context) ([]domain.CatalogProduct, error) {
	var list []domain.CatalogProduct
	if err := c.getJSON(ctx, "/products", &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) CreateProduct(ctx context.Context, p domain.CatalogProduct) (domain.CatalogProduct, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return domain.CatalogProduct{}, fmt.Errorf("marshal product failed: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/products", "application/json", body)
	if err != nil {
		return domain.CatalogProduct{}, err
	}

	var created domain.CatalogProduct
	if err := json.Unmarshal(data, &created); err != nil {
		return domain.CatalogProduct{}, fmt.Errorf("decode catalog response: %w", err)
	}
	return created, nil
}

// UploadImage sends an image as the multipart field "image" and returns the
// stored path.
func (c *Client) UploadImage(ctx context.Context, id, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("copy image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/products/"+url.PathEscape(id)+"/image", mw.FormDataContentType(), buf.Bytes())
	if err != nil {
		return "", err
	}

	var resp struct {
		ImagePath string `json:"imagePath"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode catalog response: %w", err)
	}
	return resp.ImagePath, nil
}

func (c *Client) ImageURL(id string) string {
	return c.baseURL + "/products/" + url.PathEscape(id) + "/image"
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	data, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("catalog %s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, fmt.Errorf("read catalog response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("catalog %s: %w", path, domain.ErrNotFound)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		}
		return data, nil
	})
}
