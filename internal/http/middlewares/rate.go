package middlewares

import (
	"net/http"
	"strconv"

	httperrors "github.com/dropDatabas3/syncgate/internal/http/errors"
	"github.com/dropDatabas3/syncgate/internal/observability/logger"
	"github.com/dropDatabas3/syncgate/internal/rate"
)

// RateKeyFunc deriva la clave de rate limiting a partir del request.
type RateKeyFunc func(r *http.Request) string

// UserRateKey limita por usuario autenticado; cae a IP si no hay sesión.
func UserRateKey(r *http.Request) string {
	if uid := GetUserID(r.Context()); uid != "" {
		return "u:" + uid
	}
	return "ip:" + clientIP(r)
}

// WithRateLimit aplica un límite de ventana fija sobre el handler.
// Si el backend del limiter falla, deja pasar el request (fail-open):
// preferimos degradar el límite antes que tumbar el endpoint.
func WithRateLimit(limiter rate.Limiter, keyFn RateKeyFunc) Middleware {
	if keyFn == nil {
		keyFn = UserRateKey
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			res, err := limiter.Allow(r.Context(), keyFn(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter backend error", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				if res.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				}
				httperrors.WriteError(w, httperrors.ErrRateLimitExceeded)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
