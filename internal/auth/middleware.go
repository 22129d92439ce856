package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/foodshare/internal/apperror"
)

// contextKey is unexported so no other package can collide with our values.
type contextKey string

const identityKey contextKey = "identity"

// TokenCookie is the cookie the GitHub login stores the token in.
const TokenCookie = "token"

// RequireAuth rejects requests without a valid token with 401 and otherwise
// stores the caller's Identity in the request context.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := extractIdentity(r, tokens)
			if err != nil {
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// writeUnauthorized renders apperror.Unauthorized in the same shape the
// handler package uses for every other error.
func writeUnauthorized(w http.ResponseWriter) {
	body := struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}{Error: "unauthorized", Message: apperror.Unauthorized().Message}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(body)
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity stored by RequireAuth.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

// UserIDFromContext is a shorthand for IdentityFromContext(ctx).UserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := IdentityFromContext(ctx)
	return id.UserID, ok
}

var errNoToken = errors.New("auth: no token in request")

// extractIdentity prefers the Authorization header over the cookie.
func extractIdentity(r *http.Request, tokens *TokenService) (Identity, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return Identity{}, errNoToken
		}
		return tokens.Validate(strings.TrimSpace(token))
	}

	cookie, err := r.Cookie(TokenCookie)
	if err != nil {
		return Identity{}, errNoToken
	}
	return tokens.Validate(cookie.Value)
}
