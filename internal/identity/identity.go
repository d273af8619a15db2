// Package identity extracts the authenticated subject from the bearer
// assertion on each request. Token issuance lives elsewhere; this package
// only verifies the HMAC and pulls out a stable subject id.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrUnauthenticated = errors.New("missing or invalid identity assertion")

type contextKey string

const subjectKey contextKey = "identity_subject"

// SubjectFromToken verifies the token and returns the subject id, accepting
// either the registered "sub" claim or a legacy "id" claim.
func SubjectFromToken(tokenStr, secret string) (uuid.UUID, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, ErrUnauthenticated
	}

	raw, _ := claims["sub"].(string)
	if raw == "" {
		raw, _ = claims["id"].(string)
	}

	subject, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return subject, nil
}

// Middleware rejects requests without a valid bearer assertion and stores
// the subject id on the request context.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token := strings.TrimPrefix(auth, "Bearer ")
			if auth == "" || token == auth {
				unauthorized(w)
				return
			}

			subject, err := SubjectFromToken(token, secret)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Subject returns the authenticated subject id from the request context.
func Subject(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(subjectKey).(uuid.UUID)
	return id, ok
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthenticated","details":"missing or invalid bearer token"}`))
}
