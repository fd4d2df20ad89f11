package http

import (
	"net/http"
	"strings"

	context_ "github.com/mkrupp/pantry/internal/infra/context"
	"github.com/mkrupp/pantry/internal/infra/logging"
	"github.com/mkrupp/pantry/internal/svc/authsvc/authclient"
)

// AuthorizationHeader carries the bearer token.
const AuthorizationHeader = "Authorization"

// BearerToken extracts the token from an Authorization header value.
// The "Bearer" scheme is optional and matched case-insensitively.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)

	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}

	return header
}

// AuthorizingMiddleware rejects requests without a valid bearer token.
// The token is validated through the AuthClient; on success the identity is
// added to the request context.
func AuthorizingMiddleware(
	next http.Handler,
	authClient authclient.AuthClient,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r.Header.Get(AuthorizationHeader))
		if token == "" {
			log.WarnContext(r.Context(), "no token provided")
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

			return
		}

		identity, ok, err := authClient.Validate(r.Context(), token)
		if err != nil {
			log.ErrorContext(r.Context(), "validate token failed", "error", err)
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)

			return
		} else if !ok {
			log.WarnContext(r.Context(), "invalid token")
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r.WithContext(context_.WithIdentity(r.Context(), identity)))
	})
}
