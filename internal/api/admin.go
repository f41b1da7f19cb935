package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/etotom/safarov-shop/internal/models"
	"github.com/etotom/safarov-shop/internal/session"
	"github.com/etotom/safarov-shop/internal/store"
)

type variantRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type productRequest struct {
	Name        string           `json:"name"`
	Slug        string           `json:"slug"`
	Description string           `json:"description"`
	Price       decimal.Decimal  `json:"price"`
	Currency    string           `json:"currency"`
	CategoryID  string           `json:"categoryId"`
	Material    string           `json:"material"`
	Featured    bool             `json:"featured"`
	Images      []string         `json:"images"`
	Sizes       []string         `json:"sizes"`
	Variants    []variantRequest `json:"variants"`
}

type productPatchRequest struct {
	Name        *string          `json:"name"`
	Slug        *string          `json:"slug"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Currency    *string          `json:"currency"`
	CategoryID  *string          `json:"categoryId"`
	Material    *string          `json:"material"`
	Featured    *bool            `json:"featured"`
}

type inventoryRequest struct {
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

type categoryRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	ParentID    string `json:"parentId"`
}

// categoryPatchRequest.ParentID set to null or "" moves the category to the
// top level; leaving the key out keeps the current parent.
type categoryPatchRequest struct {
	Name        *string        `json:"name"`
	Slug        *string        `json:"slug"`
	Description *string        `json:"description"`
	ParentID    optionalString `json:"parentId"`
}

type userPatchRequest struct {
	Name  *string      `json:"name"`
	Image *string      `json:"image"`
	Role  *models.Role `json:"role"`
}

type orderStatusRequest struct {
	Status models.OrderStatus `json:"status"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.DashboardStats(r.Context())
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in := store.ProductInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Price:       req.Price,
		Currency:    strings.ToUpper(req.Currency),
		CategoryID:  req.CategoryID,
		Material:    req.Material,
		Featured:    req.Featured,
		Images:      req.Images,
		Sizes:       req.Sizes,
	}
	for _, v := range req.Variants {
		in.Variants = append(in.Variants, store.VariantInput{Name: v.Name, Value: v.Value})
	}

	detail, err := s.store.CreateProduct(r.Context(), in)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, detail)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := s.store.UpdateProduct(r.Context(), chi.URLParam(r, "id"), store.ProductPatch{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Price:       req.Price,
		Currency:    req.Currency,
		CategoryID:  req.CategoryID,
		Material:    req.Material,
		Featured:    req.Featured,
	})
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetProduct(r.Context(), id); err != nil {
		respondStoreError(w, r, err)
		return
	}
	if err := s.store.DeleteProduct(r.Context(), id); err != nil {
		respondStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetInventory(w http.ResponseWriter, r *http.Request) {
	var req inventoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inv, err := s.store.SetInventory(r.Context(), chi.URLParam(r, "id"), models.StringPtr(req.VariantID), req.Quantity)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

func (s *Server) handleAdminCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.store.ListCategories(r.Context(), store.CategoryFilter{})
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cat, err := s.store.CreateCategory(r.Context(), store.CategoryInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		ParentID:    models.StringPtr(req.ParentID),
	})
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, cat)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	cat, err := s.store.GetCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cat)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cat, err := s.store.UpdateCategory(r.Context(), chi.URLParam(r, "id"), store.CategoryPatch{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		ParentID:    req.ParentID.Ptr(),
	})
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cat)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := s.store.ListUsers(r.Context(), queryInt(r, "page", 1), queryInt(r, "pageSize", store.DefaultPageSize))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req userPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.store.UpdateUser(r.Context(), chi.URLParam(r, "id"), store.UserPatch{
		Name:  req.Name,
		Image: req.Image,
		Role:  req.Role,
	})
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user.Public())
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	p := session.FromContext(r.Context())
	if err := s.store.DeleteUser(r.Context(), p.ID, chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAllOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.store.ListAllOrders(r.Context(), store.OrderFilter{
		Status:   models.OrderStatus(strings.ToUpper(q.Get("status"))),
		UserID:   q.Get("userId"),
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "pageSize", store.DefaultPageSize),
	})
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleSetOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req orderStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := s.store.SetOrderStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
