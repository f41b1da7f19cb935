package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/etotom/safarov-shop/internal/session"
	"github.com/etotom/safarov-shop/internal/store"
)

func (s *Server) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	p := session.FromContext(r.Context())
	addrs, err := s.store.ListAddresses(r.Context(), p.ID)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, addrs)
}

func (s *Server) handleCreateAddress(w http.ResponseWriter, r *http.Request) {
	var in store.AddressInput
	if !decodeJSON(w, r, &in) {
		return
	}

	p := session.FromContext(r.Context())
	addr, err := s.store.CreateAddress(r.Context(), p.ID, in)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, addr)
}

func (s *Server) handleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	var patch store.AddressPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	p := session.FromContext(r.Context())
	addr, err := s.store.UpdateAddress(r.Context(), p.ID, chi.URLParam(r, "id"), patch)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, addr)
}

func (s *Server) handleDeleteAddress(w http.ResponseWriter, r *http.Request) {
	p := session.FromContext(r.Context())
	if err := s.store.DeleteAddress(r.Context(), p.ID, chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
