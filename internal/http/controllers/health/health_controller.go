// Package health contiene el controller para health checks.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/syncgate/internal/http/helpers"
	"github.com/dropDatabas3/syncgate/internal/observability/logger"
)

// Pinger abstrae el chequeo de disponibilidad del storage.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController maneja las rutas de health check.
type HealthController struct {
	store   Pinger
	version string
}

// NewHealthController crea un nuevo controller de health check.
// store puede ser nil (memoria); en ese caso readyz solo reporta el proceso.
func NewHealthController(store Pinger, version string) *HealthController {
	return &HealthController{store: store, version: version}
}

type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Components map[string]string `json:"components,omitempty"`
}

// Healthz maneja GET /healthz: vivo o no, sin tocar dependencias.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz maneja GET /readyz: listo para servir tráfico.
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("HealthController.Readyz"))

	resp := healthResponse{Status: "ready", Version: c.version, Components: map[string]string{}}
	status := http.StatusOK

	if c.store != nil {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := c.store.Ping(pctx); err != nil {
			log.Warn("storage ping failed", logger.Err(err))
			resp.Status = "unavailable"
			resp.Components["storage"] = "down"
			status = http.StatusServiceUnavailable
		} else {
			resp.Components["storage"] = "up"
		}
	}

	if c.version != "" {
		w.Header().Set("X-Service-Version", c.version)
	}
	helpers.WriteJSON(w, status, resp)
}
