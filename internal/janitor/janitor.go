// Package janitor expira attachments PENDING abandonados.
//
// Un authorize que nunca vuelve por el callback deja una fila PENDING para
// siempre; el janitor la pasa a REVOKED después de un TTL. Se usa REVOKED en
// vez de DELETE para que la transición quede dentro de la máquina de estados
// y la fila siga siendo auditable.
package janitor

import (
	"context"
	"time"

	"github.com/dropDatabas3/syncgate/internal/domain/repository"
	"github.com/dropDatabas3/syncgate/internal/observability/logger"
)

type Janitor struct {
	store    repository.SyncRepository
	ttl      time.Duration
	interval time.Duration
}

// New crea el janitor. Con ttl <= 0 queda desactivado.
func New(store repository.SyncRepository, ttl, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{store: store, ttl: ttl, interval: interval}
}

// Run corre el loop hasta que el contexto se cancele.
// Pensado para colgarse de un errgroup en main.
func (j *Janitor) Run(ctx context.Context) error {
	if j.ttl <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	log := logger.L().With(logger.Component("janitor"))
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-j.ttl)
			n, err := j.store.ExpirePending(ctx, cutoff)
			if err != nil {
				log.Warn("pending sweep failed", logger.Err(err))
				continue
			}
			if n > 0 {
				log.Info("expired stale pending attachments", logger.Any("revoked", n))
			}
		}
	}
}
