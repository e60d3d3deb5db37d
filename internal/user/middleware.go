package user

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"ecoshare/internal/common"
)

// Authenticator turns a bearer token into the session identity.
type Authenticator interface {
	Authenticate(token string) (common.AuthenticatedUser, error)
}

// AuthMiddleware resolves the bearer token once per request and stores the
// resulting AuthenticatedUser in the request context.
func AuthMiddleware(auth Authenticator) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				common.WriteError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			user, err := auth.Authenticate(token)
			if err != nil {
				common.WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(common.WithUser(r.Context(), user)))
		})
	}
}
