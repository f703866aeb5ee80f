// Package auth verifies the platform-issued access tokens and carries the
// current user through request contexts. Sessions themselves are owned by
// the platform; this package only reads them.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// User is the authenticated principal extracted from an access token.
type User struct {
	ID      uuid.UUID
	Email   string
	Role    string
	AppRole string
}

// IsAdmin reports whether the token grants the admin application role.
func (u *User) IsAdmin() bool {
	return u != nil && u.AppRole == "admin"
}

type appMetadata struct {
	Role string `json:"role"`
}

type claims struct {
	Email       string      `json:"email"`
	Role        string      `json:"role"`
	AppMetadata appMetadata `json:"app_metadata"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 access tokens signed with the project secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// SecretFromEnv returns JWT_SECRET.
func SecretFromEnv() string {
	return os.Getenv("JWT_SECRET")
}

// Parse verifies token and returns its user.
func (v *Verifier) Parse(token string) (*User, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return &User{ID: id, Email: c.Email, Role: c.Role, AppRole: c.AppMetadata.Role}, nil
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < len("bearer ") || !strings.EqualFold(h[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[len("bearer "):])
}

type ctxKey struct{}

// WithUser stores u in ctx.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the user stored by the middleware, or nil.
func FromContext(ctx context.Context) *User {
	u, _ := ctx.Value(ctxKey{}).(*User)
	return u
}

// Middleware attaches the bearer's user to the request context. Requests
// without a token pass through anonymously; a token that fails
// verification is rejected with 401.
func (v *Verifier) Middleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := BearerToken(r)
			if tok == "" {
				next.ServeHTTP(w, r)
				return
			}
			u, err := v.Parse(tok)
			if err != nil {
				logger.Debugw("rejecting bearer token", "err", err, "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, "invalid_token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// RequireAdmin rejects requests whose user is missing or not an admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := FromContext(r.Context())
		if u == nil {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		if !u.IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
