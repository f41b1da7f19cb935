package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/etotom/safarov-shop/internal/docstore"
	"github.com/etotom/safarov-shop/internal/logger"
	"github.com/etotom/safarov-shop/internal/store"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode JSON response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// optionalString tells an absent key from an explicit null. Null decodes as
// set with an empty value.
type optionalString struct {
	Set   bool
	Value string
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = ""
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// Ptr returns nil when the key was absent.
func (o optionalString) Ptr() *string {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

var errorStatus = []struct {
	err    error
	status int
}{
	{store.ErrInvalidInput, http.StatusBadRequest},
	{store.ErrParentNotFound, http.StatusBadRequest},
	{store.ErrSelfParent, http.StatusBadRequest},
	{store.ErrCategoryCycle, http.StatusBadRequest},
	{store.ErrCartEmpty, http.StatusBadRequest},
	{store.ErrInvalidQuantity, http.StatusBadRequest},
	{store.ErrInvalidStatus, http.StatusBadRequest},
	{store.ErrCannotDeleteSelf, http.StatusBadRequest},
	{store.ErrVariantNotFound, http.StatusBadRequest},
	{docstore.ErrInvalidQuery, http.StatusBadRequest},

	{store.ErrInvalidCredentials, http.StatusUnauthorized},
	{store.ErrForbidden, http.StatusForbidden},

	{store.ErrUserNotFound, http.StatusNotFound},
	{store.ErrCategoryNotFound, http.StatusNotFound},
	{store.ErrProductNotFound, http.StatusNotFound},
	{store.ErrCartItemNotFound, http.StatusNotFound},
	{store.ErrAddressNotFound, http.StatusNotFound},
	{store.ErrOrderNotFound, http.StatusNotFound},
	{docstore.ErrNotFound, http.StatusNotFound},

	{store.ErrEmailTaken, http.StatusConflict},
	{store.ErrSlugTaken, http.StatusConflict},
	{docstore.ErrOptimisticLockFailed, http.StatusConflict},

	{store.ErrPaymentUnavailable, http.StatusServiceUnavailable},
}

// respondStoreError maps domain errors to a status code. The message starts
// at the sentinel so wrapping context stays out of responses. Anything
// unrecognised is logged and reported as a generic 500.
func respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			msg := err.Error()
			if i := strings.Index(msg, e.err.Error()); i >= 0 {
				msg = msg[i:]
			}
			respondError(w, e.status, msg)
			return
		}
	}

	logger.FromContext(r.Context()).Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	respondError(w, http.StatusInternalServerError, "Internal server error")
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func queryBool(r *http.Request, key string) (*bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a boolean", store.ErrInvalidInput, key)
	}
	return &b, nil
}
