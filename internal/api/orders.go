package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/etotom/safarov-shop/internal/logger"
	"github.com/etotom/safarov-shop/internal/payment"
	"github.com/etotom/safarov-shop/internal/session"
	"github.com/etotom/safarov-shop/internal/store"
)

type checkoutRequest struct {
	ShippingAddressID string              `json:"shippingAddressId"`
	ShippingAddress   *store.AddressInput `json:"shippingAddress"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p := session.FromContext(r.Context())
	result, err := s.store.Checkout(r.Context(), store.CheckoutRequest{
		UserID:            p.ID,
		Email:             p.Email,
		ShippingAddressID: req.ShippingAddressID,
		ShippingAddress:   req.ShippingAddress,
	})
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	p := session.FromContext(r.Context())
	orders, err := s.store.ListOrders(r.Context(), p.ID)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// handleGetOrder hides other users' orders behind a 404. Admins see any order.
func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	p := session.FromContext(r.Context())
	order, err := s.store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if order.UserID != p.ID && !p.IsAdmin() {
		respondStoreError(w, r, store.ErrOrderNotFound)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	log := logger.FromContext(r.Context())
	event, err := payment.ConstructEvent(payload, r.Header.Get(payment.SignatureHeader), s.cfg.WebhookSecret, s.cfg.WebhookTolerance)
	if err != nil {
		log.Warn("rejected payment webhook", "error", err)
		respondError(w, http.StatusBadRequest, "Webhook Error: "+err.Error())
		return
	}

	switch event.Type {
	case payment.EventCheckoutCompleted:
		obj := event.Data.Object
		n, err := s.store.ConfirmPayment(r.Context(), obj.ID, obj.Metadata["userId"])
		if err != nil {
			respondStoreError(w, r, err)
			return
		}
		log.Info("checkout completed", "event_id", event.ID, "payment_id", obj.ID, "orders", n)
	default:
		log.Debug("ignored payment webhook", "event_id", event.ID, "type", event.Type)
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
