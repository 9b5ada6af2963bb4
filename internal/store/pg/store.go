// Package pg implementa SyncRepository sobre postgres via pgx.
package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/syncgate/internal/observability/logger"
)

type Store struct{ pool *pgxpool.Pool }

// Tuning agrupa los knobs opcionales del pool.
type Tuning struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

// New crea el pool. El ping inicial no es bloqueante: la app puede arrancar
// aunque la base esté temporalmente caída.
func New(ctx context.Context, dsn string, tuning Tuning) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	if tuning.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(tuning.MaxOpenConns)
	}
	// Mapear MaxIdleConns → MinConns (pgxpool)
	if tuning.MaxIdleConns > 0 {
		pcfg.MinConns = int32(tuning.MaxIdleConns)
	}
	if tuning.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(tuning.ConnMaxLifetime); err == nil {
			pcfg.MaxConnLifetime = d
			pcfg.MaxConnIdleTime = d
		}
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 5
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		logger.L().Warn("pg pool startup ping failed", logger.Err(err))
	} else {
		logger.L().Info("pg pool ready", logger.Any("max_conns", pcfg.MaxConns))
	}

	return &Store{pool: pool}, nil
}

// Pool expone el pool interno (migraciones, métricas).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}
