package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func signTestToken(t *testing.T, userID int64) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
		"iat":     time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(viper.GetString("jwt.secret_key")))
	assert.NoError(t, err)
	return signed
}

func TestAuthMiddleware(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")

	run := func(t *testing.T, authHeader string) (*httptest.ResponseRecorder, string) {
		var gotUserID string
		handler := AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUserID, _ = r.Context().Value("userID").(string)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/wallet", nil)
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec, gotUserID
	}

	t.Run("ValidToken", func(t *testing.T) {
		rec, userID := run(t, "Bearer "+signTestToken(t, 42))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "42", userID)
	})

	t.Run("LargeUserID", func(t *testing.T) {
		// BIGSERIAL ids past a million must not render in exponent form.
		rec, userID := run(t, "Bearer "+signTestToken(t, 1000000))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "1000000", userID)
	})

	t.Run("MissingHeader", func(t *testing.T) {
		rec, _ := run(t, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("MalformedHeader", func(t *testing.T) {
		rec, _ := run(t, "Token abc")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		claims := jwt.MapClaims{"user_id": int64(1), "exp": time.Now().Add(time.Hour).Unix()}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte("other-secret"))
		assert.NoError(t, err)

		rec, _ := run(t, "Bearer "+signed)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("MissingUserIDClaim", func(t *testing.T) {
		claims := jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(viper.GetString("jwt.secret_key")))
		assert.NoError(t, err)

		rec, _ := run(t, "Bearer "+signed)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestValidateTokenLargeID(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")

	got, err := validateToken(signTestToken(t, 1000000))
	assert.NoError(t, err)
	assert.Equal(t, "1000000", got)
}
