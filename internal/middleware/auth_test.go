package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bullionworks/checkout/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestValidateAuth(t *testing.T) {
	var gotCustomerID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCustomerID = r.Header.Get("UUID")
		w.WriteHeader(http.StatusOK)
	})
	handler := ValidateAuth(next, zap.NewNop().Sugar())

	t.Run("ValidToken", func(t *testing.T) {
		token, err := auth.BuildJWT("cust-1")
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/api/customer/orders", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "cust-1", gotCustomerID)
	})

	t.Run("MissingHeader", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/customer/orders", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("NotBearer", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/customer/orders", nil)
		r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("TamperedToken", func(t *testing.T) {
		token, err := auth.BuildJWT("cust-1")
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/api/customer/orders", nil)
		r.Header.Set("Authorization", "Bearer "+token+"x")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
