package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/syncgate/internal/auth"
	healthctrl "github.com/dropDatabas3/syncgate/internal/http/controllers/health"
	syncctrl "github.com/dropDatabas3/syncgate/internal/http/controllers/sync"
	httperrors "github.com/dropDatabas3/syncgate/internal/http/errors"
	mw "github.com/dropDatabas3/syncgate/internal/http/middlewares"
	"github.com/dropDatabas3/syncgate/internal/rate"
)

// RouterDeps agrupa todo lo que el router necesita para armar la superficie HTTP.
type RouterDeps struct {
	Verifier *auth.Verifier
	Sync     *syncctrl.Controllers
	Health   *healthctrl.HealthController

	// Limiter puede ser nil: en ese caso authorize corre sin rate limiting.
	Limiter rate.Limiter

	CORSAllowedOrigins []string
	MetricsHandler     http.Handler
}

// NewRouter arma el chi.Mux con todas las rutas y middlewares.
//
// Orden de middlewares globales: request id -> recover -> security headers ->
// CORS -> métricas -> logging. El rate limiting y la autenticación se aplican
// por ruta, no globalmente: el callback del provider llega sin bearer token.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(mw.WithRequestID())
	r.Use(mw.WithRecover())
	r.Use(mw.WithSecurityHeaders())
	r.Use(mw.WithCORS(deps.CORSAllowedOrigins))
	r.Use(WithMetrics)
	r.Use(mw.WithLogging())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// Salud y métricas
	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	requireAuth := mw.RequireAuth(deps.Verifier)

	r.Route("/sync", func(r chi.Router) {
		// Callback: sin auth, lo visita el navegador redirigido por el provider.
		// La página de éxito y los errores no deben quedar en caches intermedios.
		r.Method(http.MethodGet, "/{provider}/oauth2callback",
			mw.ChainFunc(deps.Sync.Callback.Callback, mw.WithNoStore()))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(mw.WithNoStore())

			r.Get("/", deps.Sync.Attachments.List)
			r.Delete("/{id}", deps.Sync.Attachments.Revoke)

			r.Group(func(r chi.Router) {
				if deps.Limiter != nil {
					r.Use(mw.WithRateLimit(deps.Limiter, mw.UserRateKey))
				}
				r.Post("/{provider}/authorize", deps.Sync.Authorize.Authorize)
			})
		})
	})

	return r
}
