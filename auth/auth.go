// Package auth guards the control API with a single access key. Logging in
// with the key yields a signed token that later requests present.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidKey   = errors.New("invalid access key")
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSecret     = errors.New("jwt secret is empty")
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 30 * 24 * time.Hour

// CookieName carries the token for browser clients such as EventSource,
// which cannot set headers.
const CookieName = "fxlab_token"

const issuer = "fxlab"

type Claims struct {
	jwt.RegisteredClaims
}

// HashKey returns the bcrypt hash stored in config for an access key.
func HashKey(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

type Service struct {
	keyHash   []byte
	jwtSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewService builds a service from the configured key hash and secret. An
// empty key hash disables authentication entirely.
func NewService(keyHash, secret string) (*Service, error) {
	if keyHash != "" && secret == "" {
		return nil, ErrNoSecret
	}
	return &Service{
		keyHash:   []byte(keyHash),
		jwtSecret: []byte(secret),
		ttl:       DefaultTTL,
		now:       time.Now,
	}, nil
}

// Enabled reports whether requests need a token.
func (s *Service) Enabled() bool {
	return len(s.keyHash) > 0
}

// Login checks key and returns a signed token.
func (s *Service) Login(key string) (string, time.Time, error) {
	if !s.Enabled() {
		return "", time.Time{}, errors.New("authentication is disabled")
	}
	if err := bcrypt.CompareHashAndPassword(s.keyHash, []byte(key)); err != nil {
		return "", time.Time{}, ErrInvalidKey
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenFromRequest looks for a bearer token, then the cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

type claimsKey struct{}

// FromContext returns the claims attached by Middleware.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// Middleware rejects requests without a valid token. It passes everything
// through when authentication is disabled.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := s.VerifyToken(TokenFromRequest(r))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="fxlab"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}
