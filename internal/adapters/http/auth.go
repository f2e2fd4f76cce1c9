package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/kirillkom/gapdrill/internal/core/domain"
	"github.com/kirillkom/gapdrill/internal/core/ports"
)

const accessTokenCookie = "access_token"

type principalContextKey struct{}

func principalFromContext(ctx context.Context) string {
	principal, _ := ctx.Value(principalContextKey{}).(string)
	return principal
}

// authMiddleware resolves the caller's principal from a bearer token or the
// access_token cookie. Requests without a valid token never reach handlers.
func authMiddleware(verifier ports.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				writeError(w, r, domain.WrapError(domain.ErrUnauthenticated, "authenticate", errors.New("missing access token")))
				return
			}
			principal, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if !domain.IsKind(err, domain.ErrUnauthenticated) {
					err = domain.WrapError(domain.ErrUnauthenticated, "authenticate", err)
				}
				writeError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractToken(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(accessTokenCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
