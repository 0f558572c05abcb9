package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/echotherapy/backend/internal/auth"
	"github.com/echotherapy/backend/pkg/utils"
)

type contextKey struct{}

var identityKey contextKey

// IdentityFrom returns the verified identity attached by RequireIdentity.
func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(auth.Identity)
	return identity, ok
}

// RequireIdentity verifies the request's bearer token and injects the
// resulting identity into the request context. Handlers receive identity
// explicitly from the context; nothing downstream reads ambient auth state.
func RequireIdentity(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				utils.RespondError(w, http.StatusUnauthorized, "authorization header missing or malformed")
				return
			}
			token := strings.TrimPrefix(header, "Bearer ")

			identity, err := verifier.Verify(r.Context(), token)
			if errors.Is(err, auth.ErrUnauthorized) {
				utils.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			if err != nil {
				log.Printf("[auth] verifier error: %v", err)
				utils.RespondError(w, http.StatusInternalServerError, "identity verification unavailable")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
