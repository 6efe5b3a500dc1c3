package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/example/discussion-platform/internal/platform/api"
	"github.com/example/discussion-platform/internal/platform/httpserver"
)

type ctxKeyIdentity struct{}

// Identity is what RequireUser learns from a verified token.
type Identity struct {
	UserID   string
	Name     string
	Username *string
	Picture  *string
	Role     string
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(ctxKeyIdentity{}).(Identity)
	return v, ok && v.UserID != ""
}

// WithIdentity injects an identity into context. Useful for testing.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, id)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	return id.UserID, ok
}

// WithUserID injects a bare user id into context. Useful for testing.
func WithUserID(ctx context.Context, uid string) context.Context {
	id, _ := ctx.Value(ctxKeyIdentity{}).(Identity)
	id.UserID = uid
	return WithIdentity(ctx, id)
}

func RoleFromContext(ctx context.Context) (string, bool) {
	id, _ := ctx.Value(ctxKeyIdentity{}).(Identity)
	return id.Role, id.Role != ""
}

type Claims struct {
	jwt.RegisteredClaims
	Role              string `json:"role,omitempty"`
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Picture           string `json:"picture,omitempty"`
}

// Identity converts verified claims. A missing name falls back to the
// preferred username, then to the subject.
func (c Claims) Identity() Identity {
	id := Identity{
		UserID: strings.TrimSpace(c.Subject),
		Name:   strings.TrimSpace(c.Name),
		Role:   strings.TrimSpace(c.Role),
	}
	if u := strings.TrimSpace(c.PreferredUsername); u != "" {
		id.Username = &u
	}
	if p := strings.TrimSpace(c.Picture); p != "" {
		id.Picture = &p
	}
	if id.Name == "" {
		if id.Username != nil {
			id.Name = *id.Username
		} else {
			id.Name = id.UserID
		}
	}
	return id
}

type JWTVerifier struct {
	Secret []byte
}

func (v JWTVerifier) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return v.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Sign issues an HS256 token for claims.
func (v JWTVerifier) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.Secret)
}

// RequireUser middleware validates Bearer token and injects the identity into context.
func RequireUser(verifier JWTVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				api.Unauthorized(w, "UNAUTHORIZED", "bearer token required", httpserver.RequestIDFromContext(r.Context()))
				return
			}
			claims, err := verifier.Parse(strings.TrimSpace(parts[1]))
			if err != nil || strings.TrimSpace(claims.Subject) == "" {
				api.Unauthorized(w, "UNAUTHORIZED", "invalid token", httpserver.RequestIDFromContext(r.Context()))
				return
			}
			ctx := WithIdentity(r.Context(), claims.Identity())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalUser injects the identity when a valid bearer token is present and
// lets anonymous requests through unchanged. Invalid tokens are treated as
// anonymous.
func OptionalUser(verifier JWTVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parts := strings.SplitN(strings.TrimSpace(r.Header.Get("Authorization")), " ", 2)
			if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
				if claims, err := verifier.Parse(strings.TrimSpace(parts[1])); err == nil && strings.TrimSpace(claims.Subject) != "" {
					r = r.WithContext(WithIdentity(r.Context(), claims.Identity()))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
