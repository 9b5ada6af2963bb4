package pg

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dropDatabas3/syncgate/internal/domain/repository"
)

// Nombres de constraint → error de dominio. La unicidad vive en la base
// (índices parciales); acá solo se traduce el 23505.
const (
	uqPendingName   = "uq_sync_pending_name"
	uqActiveAccount = "uq_sync_active_account"
)

const syncColumns = `id, user_id, name, provider, status, credentials, email, state_blob, created_at, updated_at`

func (s *Store) Create(ctx context.Context, in repository.CreateSyncInput) (*repository.SyncAttachment, error) {
	if in.UserID == "" || in.Provider == "" || in.Name == "" || in.StateBlob == "" {
		return nil, repository.ErrInvalidInput
	}

	id := uuid.NewString()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO sync_attachments (id, user_id, name, provider, status, credentials, email, state_blob)
		VALUES ($1, $2, $3, $4, 'PENDING', '{}'::jsonb, '', $5)
		RETURNING `+syncColumns,
		id, in.UserID, in.Name, in.Provider, in.StateBlob,
	)

	out, err := scanSync(row)
	if err != nil {
		return nil, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (*repository.SyncAttachment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+syncColumns+` FROM sync_attachments WHERE id = $1`, id)
	out, err := scanSync(row)
	if err != nil {
		return nil, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]repository.SyncAttachment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+syncColumns+`
		FROM sync_attachments
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.SyncAttachment
	for rows.Next() {
		a, err := scanSync(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Finalize es una transacción de una sola fila: el WHERE status='PENDING'
// es el punto de linearización entre callbacks concurrentes.
func (s *Store) Finalize(ctx context.Context, id string, credentials map[string]string, email string) (*repository.SyncAttachment, error) {
	if len(credentials) == 0 || strings.TrimSpace(email) == "" {
		return nil, repository.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE sync_attachments
		SET status = 'ACTIVE', credentials = $2, email = $3, state_blob = '', updated_at = now()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+syncColumns,
		id, credentials, email,
	)

	out, err := scanSync(row)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguir: no existe vs. ya no está PENDING.
		var status string
		qerr := s.pool.QueryRow(ctx, `SELECT status FROM sync_attachments WHERE id = $1`, id).Scan(&status)
		if errors.Is(qerr, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		if qerr != nil {
			return nil, qerr
		}
		return nil, repository.ErrInvalidTransition
	}
	return nil, mapPgErr(err)
}

func (s *Store) Revoke(ctx context.Context, id, userID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sync_attachments
		SET status = 'REVOKED', credentials = '{}'::jsonb, state_blob = '', updated_at = now()
		WHERE id = $1 AND user_id = $2 AND status IN ('PENDING', 'ACTIVE')`,
		id, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var one int
	qerr := s.pool.QueryRow(ctx, `SELECT 1 FROM sync_attachments WHERE id = $1 AND user_id = $2`, id, userID).Scan(&one)
	if errors.Is(qerr, pgx.ErrNoRows) {
		// No existe o es de otro usuario: misma respuesta.
		return repository.ErrNotFound
	}
	if qerr != nil {
		return qerr
	}
	return repository.ErrInvalidTransition
}

func (s *Store) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sync_attachments
		SET status = 'REVOKED', state_blob = '', updated_at = now()
		WHERE status = 'PENDING' AND updated_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanSync(row pgx.Row) (*repository.SyncAttachment, error) {
	var a repository.SyncAttachment
	var creds map[string]string
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Provider, &a.Status, &creds, &a.Email, &a.StateBlob, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if creds == nil {
		creds = map[string]string{}
	}
	a.Credentials = creds
	return &a, nil
}

func mapPgErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case uqPendingName:
			return repository.ErrConflict
		case uqActiveAccount:
			return repository.ErrDuplicateAccount
		}
		return repository.ErrConflict
	}
	return err
}
