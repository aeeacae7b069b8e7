package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authedHandler(t *testing.T) http.Handler {
	return Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Caller", GetCallerID(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuthAcceptsValidToken(t *testing.T) {
	token := signToken(t, testSecret, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "web-adapter",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scopes: []string{"turns"},
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	authedHandler(t).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "web-adapter", rec.Header().Get("X-Caller"))
}

func TestAuthRejects(t *testing.T) {
	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		authedHandler(t).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		authedHandler(t).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "other-secret", &Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "x"},
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		authedHandler(t).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, testSecret, &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "x",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		authedHandler(t).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireScope(t *testing.T) {
	handler := Auth(testSecret)(RequireScope("operator")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	t.Run("scope present", func(t *testing.T) {
		token := signToken(t, testSecret, &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "agent-desk",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Scopes: []string{"turns", "operator"},
		})
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("scope missing", func(t *testing.T) {
		token := signToken(t, testSecret, &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "web-adapter",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Scopes: []string{"turns"},
		})
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestValidateUserID(t *testing.T) {
	assert.NoError(t, ValidateUserID("user-42"))
	assert.Error(t, ValidateUserID(""))
	assert.Error(t, ValidateUserID(string(make([]byte, 65))))
}
