package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestSubjectFromToken(t *testing.T) {
	subject := uuid.New()

	t.Run("sub claim", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{"sub": subject.String()})
		got, err := SubjectFromToken(token, testSecret)
		require.NoError(t, err)
		assert.Equal(t, subject, got)
	})

	t.Run("legacy id claim", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{"id": subject.String()})
		got, err := SubjectFromToken(token, testSecret)
		require.NoError(t, err)
		assert.Equal(t, subject, got)
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		token := signToken(t, "other-secret", jwt.MapClaims{"sub": subject.String()})
		_, err := SubjectFromToken(token, testSecret)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{
			"sub": subject.String(),
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		_, err := SubjectFromToken(token, testSecret)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("non-uuid subject rejected", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{"sub": "not-a-uuid"})
		_, err := SubjectFromToken(token, testSecret)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := SubjectFromToken("not.a.token", testSecret)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestMiddleware(t *testing.T) {
	subject := uuid.New()

	var seen uuid.UUID
	var seenOK bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, seenOK = Subject(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Middleware(testSecret)(next)

	t.Run("valid bearer token passes through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.MapClaims{"sub": subject.String()}))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.True(t, seenOK)
		assert.Equal(t, subject, seen)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"unauthenticated","details":"missing or invalid bearer token"}`, rec.Body.String())
	})

	t.Run("non-bearer scheme rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic abc123")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
