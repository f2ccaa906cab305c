package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the public HTTP surface of the checkout core.
func NewRouter(carts CartAPI, orders OrderAPI, payments PaymentAPI, paymentReader PaymentReader, timeout time.Duration) *chi.Mux {
	cartHandler := NewCartHandler(carts, timeout)
	ordersHandler := NewOrdersHandler(orders, timeout)
	paymentsHandler := NewPaymentsHandler(payments, paymentReader, timeout)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))
	r.Use(IdentityMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.ClearCart)
		r.Post("/items", cartHandler.AddItem)
		r.Put("/items", cartHandler.UpdateItem)
		r.Delete("/items/{product_id}", cartHandler.RemoveItem)
		r.Post("/refresh", cartHandler.Refresh)
		r.Post("/merge", cartHandler.Merge)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", ordersHandler.ListOrders)
		r.Post("/client-order", ordersHandler.CreateClientOrder)
		r.Get("/{ref}", ordersHandler.GetOrder)
	})

	r.Post("/checkout", paymentsHandler.InitializeCheckout)

	r.Route("/payments", func(r chi.Router) {
		r.Post("/", paymentsHandler.BankCallback)
		r.Get("/", paymentsHandler.ListPayments)
		r.Get("/{id}", paymentsHandler.GetPayment)
	})

	return r
}
