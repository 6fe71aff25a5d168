// Package httpapi exposes the storefront, B2B portal and back-office over
// HTTP JSON.
package httpapi

import (
	"net/http"
	"net/netip"
	"time"

	"bakehouse/internal/b2b"
	"bakehouse/internal/cart"
	"bakehouse/internal/checkout"
	"bakehouse/internal/db"
	"bakehouse/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Server holds the handler dependencies.
type Server struct {
	DB       *db.DB
	Carts    *cart.Service
	Checkout *checkout.Service
	Orders   *orders.Service
	B2B      *b2b.Service
	Logger   *zerolog.Logger

	AdminTokens []string
	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies []netip.Prefix
	// CheckoutPerSecond and CheckoutBurst limit order submits per client.
	CheckoutPerSecond float64
	CheckoutBurst     int
	RequestTimeout    time.Duration
	Now               func() time.Time
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Router builds the chi router with every route mounted.
func (s *Server) Router() *chi.Mux {
	timeout := s.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, realIP(s.TrustedProxies))
	r.Use(hlog.NewHandler(*s.Logger))
	r.Use(accessLog())
	r.Use(middleware.Recoverer)
	r.Use(observe)
	r.Use(middleware.Timeout(timeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/stores", s.listStores)
		r.Get("/stores/{id}", s.getStore)
		r.Get("/categories", s.listCategories)
		r.Get("/products", s.listProducts)

		r.Post("/carts", s.createCart)
		r.Get("/carts/{id}", s.getCart)
		r.Post("/carts/{id}/actions", s.cartAction)

		r.Get("/checkout/options", s.checkoutOptions)
		r.Get("/checkout/options/date", s.checkoutDateOptions)
		r.Get("/checkout/calendar", s.checkoutCalendar)
		limiter := newClientLimiter(s.CheckoutPerSecond, s.CheckoutBurst)
		r.With(limiter.middleware, orgCredential(s.B2B)).Post("/checkout", s.submitCheckout)

		r.Post("/b2b/applications", s.submitApplication)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin(s.AdminTokens))

			r.Get("/orders", s.adminListOrders)
			r.Get("/orders/{id}", s.adminGetOrder)
			r.Post("/orders/{id}/status/validate", s.adminValidateStatus)
			r.Post("/orders/{id}/status", s.adminApplyStatus)

			r.Put("/stores/{id}/hours/{weekday}", s.adminPutHours)
			r.Put("/stores/{id}/exceptions/{date}", s.adminPutException)
			r.Delete("/stores/{id}/exceptions/{date}", s.adminDeleteException)

			r.Put("/categories", s.adminPutCategory)
			r.Put("/products", s.adminPutProduct)
			r.Get("/price-tiers", s.adminListPriceTiers)
			r.Put("/price-tiers", s.adminPutPriceTier)

			r.Get("/b2b/applications", s.adminListApplications)
			r.Post("/b2b/applications/{id}/approve", s.adminApprove)
			r.Post("/b2b/applications/{id}/reject", s.adminReject)
			r.Post("/organizations/{id}/token", s.adminRotateOrgToken)

			r.Get("/reports/orders.xlsx", s.adminOrdersReport)
		})
	})
	return r
}
