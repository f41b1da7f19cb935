package api

import (
	"net/http"
	"time"

	"github.com/etotom/safarov-shop/internal/models"
	"github.com/etotom/safarov-shop/internal/session"
	"github.com/etotom/safarov-shop/internal/store"
)

type signupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

func (s *Server) issue(w http.ResponseWriter, r *http.Request, status int, u *models.User) {
	token, expires, err := s.sessions.Issue(*u)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, status, authResponse{Token: token, ExpiresAt: expires, User: u.Public()})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.store.CreateUser(r.Context(), store.UserInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     models.RoleUser,
	})
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	s.issue(w, r, http.StatusCreated, user)
}

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.store.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	s.issue(w, r, http.StatusOK, user)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p := session.FromContext(r.Context())
	user, err := s.store.GetUser(r.Context(), p.ID)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user.Public())
}
