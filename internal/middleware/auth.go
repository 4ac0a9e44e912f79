package middleware

import (
	"net/http"
	"strings"

	"github.com/king-app/king/backend/internal/auth"
	"github.com/king-app/king/backend/pkg/utils"
)

// Authenticator validates an access token.
type Authenticator interface {
	Authenticate(token string) (auth.Identity, error)
}

const (
	websocketPrefix = "/api/ws/"
	refreshPath     = "/api/user/token-refresh"
	unauthorizedMsg = "accessToken is invalid"
)

// Authenticate requires a Bearer access token on every request except
// WebSocket upgrades, which authenticate in their own handler, and the
// token refresh call.
func Authenticate(tokens Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := LoggerFromContext(r.Context())

			if strings.HasPrefix(r.URL.Path, websocketPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := BearerToken(r)
			if !ok {
				if r.Method == http.MethodPost && r.URL.Path == refreshPath {
					next.ServeHTTP(w, r)
					return
				}
				logger.Warn("missing or malformed authorization header")
				utils.RespondError(w, http.StatusUnauthorized, unauthorizedMsg)
				return
			}

			identity, err := tokens.Authenticate(token)
			if err != nil {
				logger.Warn("token rejected", "err", err)
				utils.RespondError(w, http.StatusUnauthorized, unauthorizedMsg)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}
