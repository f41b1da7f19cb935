package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etotom/safarov-shop/internal/docstore"
	"github.com/etotom/safarov-shop/internal/models"
)

func testUser(role models.Role) models.User {
	return models.User{
		Meta:  docstore.Meta{ID: "user_1"},
		Email: "jane@example.com",
		Role:  role,
	}
}

func TestIssueAndParse(t *testing.T) {
	m := NewManager("secret", time.Hour)

	token, expires, err := m.Issue(testUser(models.RoleAdmin))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	p, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", p.ID)
	assert.Equal(t, "jane@example.com", p.Email)
	assert.True(t, p.IsAdmin())

	_, err = NewManager("other", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	m := NewManager("secret", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := m.Issue(testUser(models.RoleUser))
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddlewareAndGuards(t *testing.T) {
	m := NewManager("secret", time.Hour)
	userToken, _, err := m.Issue(testUser(models.RoleUser))
	require.NoError(t, err)
	adminToken, _, err := m.Issue(testUser(models.RoleAdmin))
	require.NoError(t, err)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	userOnly := m.Middleware(RequireUser(ok))
	adminOnly := m.Middleware(RequireAdmin(ok))

	tests := []struct {
		name    string
		handler http.Handler
		auth    string
		want    int
	}{
		{"anonymous user route", userOnly, "", http.StatusUnauthorized},
		{"user route", userOnly, "Bearer " + userToken, http.StatusNoContent},
		{"malformed header", userOnly, "Token " + userToken, http.StatusUnauthorized},
		{"bad token", userOnly, "Bearer nope", http.StatusUnauthorized},
		{"user on admin route", adminOnly, "Bearer " + userToken, http.StatusForbidden},
		{"admin route", adminOnly, "Bearer " + adminToken, http.StatusNoContent},
		{"anonymous admin route", adminOnly, "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
