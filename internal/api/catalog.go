package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/etotom/safarov-shop/internal/currency"
	"github.com/etotom/safarov-shop/internal/store"
)

const relatedProducts = 4

type productResponse struct {
	*store.ProductDetail
	Related []store.ProductSummary `json:"related"`
}

func queryDecimal(r *http.Request, key string) (*decimal.Decimal, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", store.ErrInvalidInput, key)
	}
	return &d, nil
}

// resolveCategory accepts either a category id or a slug.
func (s *Server) resolveCategory(r *http.Request, ref string) (string, error) {
	cat, err := s.store.GetCategory(r.Context(), ref)
	if err == nil {
		return cat.ID, nil
	}
	if !errors.Is(err, store.ErrCategoryNotFound) {
		return "", err
	}
	cat, err = s.store.GetCategoryBySlug(r.Context(), ref)
	if err != nil {
		return "", err
	}
	return cat.ID, nil
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ProductFilter{
		Sort:     q.Get("sortBy"),
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "pageSize", store.DefaultPageSize),
	}

	var err error
	if ref := q.Get("category"); ref != "" {
		if f.CategoryID, err = s.resolveCategory(r, ref); err != nil {
			respondStoreError(w, r, err)
			return
		}
	}
	if f.MinPrice, err = queryDecimal(r, "minPrice"); err != nil {
		respondStoreError(w, r, err)
		return
	}
	if f.MaxPrice, err = queryDecimal(r, "maxPrice"); err != nil {
		respondStoreError(w, r, err)
		return
	}
	if f.Featured, err = queryBool(r, "featured"); err != nil {
		respondStoreError(w, r, err)
		return
	}

	page, err := s.store.ListProducts(r.Context(), f)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	detail, err := s.store.GetProductBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	related, err := s.store.RelatedProducts(r.Context(), detail.ID, relatedProducts)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, productResponse{ProductDetail: detail, Related: related})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	results, err := s.store.SearchProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("tree") == "true" {
		tree, err := s.store.CategoryTree(r.Context())
		if err != nil {
			respondStoreError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, tree)
		return
	}

	cats, err := s.store.ListCategories(r.Context(), store.CategoryFilter{
		TopLevel: q.Get("topLevel") == "true",
		ParentID: q.Get("parentId"),
	})
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cats)
}

type currencyRate struct {
	Code string          `json:"code"`
	Rate decimal.Decimal `json:"rate"`
}

func (s *Server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	base := s.store.Currency()
	codes := currency.Available()
	out := make([]currencyRate, 0, len(codes))
	for _, code := range codes {
		out = append(out, currencyRate{Code: code, Rate: currency.Rate(base, code)})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"base":       base,
		"currencies": out,
	})
}

type conversion struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Formatted string          `json:"formatted"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	amount, err := queryDecimal(r, "amount")
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if amount == nil {
		respondError(w, http.StatusBadRequest, "amount is required")
		return
	}

	q := r.URL.Query()
	from := strings.ToUpper(q.Get("from"))
	if from == "" {
		from = s.store.Currency()
	}
	to := strings.ToUpper(q.Get("to"))
	if !currency.Supported(from) || !currency.Supported(to) {
		respondError(w, http.StatusBadRequest, "Unsupported currency")
		return
	}

	converted := currency.Convert(*amount, from, to)
	respondJSON(w, http.StatusOK, conversion{
		Amount:    converted,
		Currency:  to,
		Formatted: currency.Format(converted, to),
	})
}
