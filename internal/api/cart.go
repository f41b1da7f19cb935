package api

import (
	"net/http"

	"github.com/etotom/safarov-shop/internal/models"
	"github.com/etotom/safarov-shop/internal/session"
	"github.com/etotom/safarov-shop/internal/store"
)

type addToCartRequest struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

type updateCartRequest struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	p := session.FromContext(r.Context())
	cart, err := s.store.GetCart(r.Context(), p.ID)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "productId is required")
		return
	}

	p := session.FromContext(r.Context())
	item, err := s.store.AddToCart(r.Context(), p.ID, store.CartInput{
		ProductID: req.ProductID,
		VariantID: models.StringPtr(req.VariantID),
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

// handleUpdateCartItem sets a line's quantity. Zero or less removes the line.
func (s *Server) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p := session.FromContext(r.Context())
	item, err := s.store.UpdateCartItem(r.Context(), p.ID, req.ItemID, req.Quantity)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if item == nil {
		respondJSON(w, http.StatusOK, map[string]bool{"removed": true})
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// handleRemoveCartItem deletes the line named by ?itemId, or the whole cart
// when no id is given.
func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	p := session.FromContext(r.Context())

	id := r.URL.Query().Get("itemId")
	if id == "" {
		n, err := s.store.ClearCart(r.Context(), p.ID)
		if err != nil {
			respondStoreError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]int{"removed": n})
		return
	}

	if err := s.store.RemoveCartItem(r.Context(), p.ID, id); err != nil {
		respondStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
