// Package api exposes the storefront over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/etotom/safarov-shop/internal/logger"
	"github.com/etotom/safarov-shop/internal/metrics"
	"github.com/etotom/safarov-shop/internal/session"
	"github.com/etotom/safarov-shop/internal/store"
)

type Config struct {
	WebhookSecret    string
	WebhookTolerance time.Duration
}

type Server struct {
	store    *store.Store
	sessions *session.Manager
	metrics  *metrics.Metrics
	cfg      Config
	log      *slog.Logger
}

// New builds the HTTP layer. m may be nil, in which case no metrics are
// recorded and /metrics is not mounted.
func New(st *store.Store, sessions *session.Manager, m *metrics.Metrics, cfg Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{store: st, sessions: sessions, metrics: m, cfg: cfg, log: log}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(s.sessions.Middleware)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Get("/metrics", s.metrics.Handler())
	}

	r.Post("/auth/signup", s.handleSignup)
	r.Post("/auth/signin", s.handleSignin)

	r.Get("/products", s.handleListProducts)
	r.Get("/products/{slug}", s.handleGetProduct)
	r.Get("/search", s.handleSearch)
	r.Get("/categories", s.handleListCategories)
	r.Get("/currencies", s.handleCurrencies)
	r.Get("/currencies/convert", s.handleConvert)

	r.Post("/webhooks/payment", s.handlePaymentWebhook)

	r.Group(func(r chi.Router) {
		r.Use(session.RequireUser)

		r.Get("/me", s.handleMe)

		r.Get("/cart", s.handleGetCart)
		r.Post("/cart", s.handleAddToCart)
		r.Patch("/cart", s.handleUpdateCartItem)
		r.Delete("/cart", s.handleRemoveCartItem)

		r.Post("/checkout", s.handleCheckout)
		r.Get("/orders", s.handleListOrders)
		r.Get("/orders/{id}", s.handleGetOrder)

		r.Get("/addresses", s.handleListAddresses)
		r.Post("/addresses", s.handleCreateAddress)
		r.Put("/addresses/{id}", s.handleUpdateAddress)
		r.Delete("/addresses/{id}", s.handleDeleteAddress)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(session.RequireAdmin)

		r.Get("/stats", s.handleStats)

		r.Post("/products", s.handleCreateProduct)
		r.Put("/products/{id}", s.handleUpdateProduct)
		r.Delete("/products/{id}", s.handleDeleteProduct)
		r.Put("/products/{id}/inventory", s.handleSetInventory)

		r.Get("/categories", s.handleAdminCategories)
		r.Post("/categories", s.handleCreateCategory)
		r.Get("/categories/{id}", s.handleGetCategory)
		r.Put("/categories/{id}", s.handleUpdateCategory)

		r.Get("/users", s.handleListUsers)
		r.Patch("/users/{id}", s.handleUpdateUser)
		r.Delete("/users/{id}", s.handleDeleteUser)

		r.Get("/orders", s.handleListAllOrders)
		r.Patch("/orders/{id}", s.handleSetOrderStatus)
	})

	return r
}

// requestLogger tags a per-request logger with the chi request id and logs
// one line per request once it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqLog := s.log.With("request_id", middleware.GetReqID(r.Context()))
		r = r.WithContext(logger.WithContext(r.Context(), reqLog))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		reqLog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start).String(),
			"ip", r.RemoteAddr,
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
