package security

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTIssuer(secret []byte, ttl time.Duration) *JWTIssuer {
	return &JWTIssuer{
		secret: secret,
		ttl:    ttl,
	}
}

func (i *JWTIssuer) Issue(ctx context.Context, subject string) (string, int64, error) {
	now := time.Now()
	exp := now.Add(i.ttl)

	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": exp.Unix(),
		"iss": "hotspot-controller",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(i.secret)
	if err != nil {
		return "", 0, err
	}

	return s, int64(i.ttl.Seconds()), nil
}

// Verify parses a bearer token and returns its subject.
func (i *JWTIssuer) Verify(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid claims")
	}
	sub, _ := claims["sub"].(string)
	return sub, nil
}

type ctxKey string

// CtxKeyAdminSubject carries the verified admin subject through the
// request context.
const CtxKeyAdminSubject ctxKey = "admin_subject"

// AdminAuthMiddleware guards the admin surface with a bearer token.
func AdminAuthMiddleware(issuer *JWTIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			sub, err := issuer.Verify(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), CtxKeyAdminSubject, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
