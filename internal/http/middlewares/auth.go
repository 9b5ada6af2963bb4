package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/syncgate/internal/auth"
	httperrors "github.com/dropDatabas3/syncgate/internal/http/errors"
)

// RequireAuth valida Authorization: Bearer <JWT> y guarda el user ID en el
// contexto. Si el token es inválido o no está presente, responde 401.
func RequireAuth(verifier *auth.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := strings.TrimSpace(r.Header.Get("Authorization"))
			if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
				w.Header().Set("WWW-Authenticate", `Bearer realm="sync", error="invalid_token", error_description="missing bearer token"`)
				httperrors.WriteError(w, httperrors.ErrTokenMissing)
				return
			}
			raw := strings.TrimSpace(ah[len("Bearer "):])

			claims, err := verifier.Parse(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="sync", error="invalid_token"`)
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					httperrors.WriteError(w, httperrors.ErrTokenExpired)
				default:
					httperrors.WriteError(w, httperrors.ErrTokenInvalid)
				}
				return
			}

			sub := auth.Subject(claims)
			if sub == "" {
				httperrors.WriteError(w, httperrors.ErrTokenInvalid.WithDetail("token sin claim sub"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), sub)))
		})
	}
}
