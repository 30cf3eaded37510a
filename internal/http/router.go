package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handlers struct {
	Session  *SessionHandler
	Products *ProductHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Orders   *OrdersHandler
	Catalog  *CatalogHandler
	Users    *UserHandler
}

// NewRouter builds the local API. Request timeouts are applied per handler:
// routes that wait on the wallet or on a payment confirmation have none.
func NewRouter(h Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestIDHeader)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.Session.GetSession)
			r.Post("/connect", h.Session.Connect)
			r.Post("/disconnect", h.Session.Disconnect)
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.ListProducts)
			r.Get("/{id}", h.Products.GetProduct)
		})
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Delete("/", h.Cart.ClearCart)
			r.Post("/items", h.Cart.AddItem)
			r.Put("/items/{product_id}", h.Cart.UpdateQuantity)
			r.Delete("/items/{product_id}", h.Cart.RemoveItem)
		})
		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", h.Checkout.Status)
			r.Post("/", h.Checkout.Checkout)
			r.Get("/methods", h.Checkout.Methods)
		})
		r.Route("/catalog/products", func(r chi.Router) {
			r.Post("/", h.Catalog.CreateProduct)
			r.Post("/{id}/image", h.Catalog.UploadImage)
		})
		r.Route("/users", func(r chi.Router) {
			r.Get("/me", h.Users.GetProfile)
			r.Post("/register", h.Users.Register)
		})
		r.Route("/sellers", func(r chi.Router) {
			r.Get("/pending", h.Users.PendingSellers)
			r.Post("/{address}/verify", h.Users.VerifySeller)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.Orders.GetOrders)
			r.Post("/{reference}/items/{product_id}/delivery", h.Orders.ConfirmDelivery)
		})
	})

	return r
}
