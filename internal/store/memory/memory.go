// Package memory implementa SyncRepository en memoria.
// Útil para desarrollo sin base de datos y para tests unitarios.
// Replica los constraints que en postgres son índices parciales.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/syncgate/internal/domain/repository"
)

type Store struct {
	mu   sync.Mutex
	rows map[string]*repository.SyncAttachment
}

// New crea un store vacío.
func New() *Store {
	return &Store{rows: make(map[string]*repository.SyncAttachment)}
}

func (s *Store) Create(ctx context.Context, in repository.CreateSyncInput) (*repository.SyncAttachment, error) {
	if in.UserID == "" || in.Provider == "" || in.Name == "" || in.StateBlob == "" {
		return nil, repository.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// uq_sync_pending_name: un solo PENDING por (user, name)
	for _, row := range s.rows {
		if row.UserID == in.UserID && row.Name == in.Name && row.Status == repository.StatusPending {
			return nil, repository.ErrConflict
		}
	}

	now := time.Now().UTC()
	row := &repository.SyncAttachment{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		Name:        in.Name,
		Provider:    in.Provider,
		Status:      repository.StatusPending,
		Credentials: map[string]string{},
		StateBlob:   in.StateBlob,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.rows[row.ID] = row
	return clone(row), nil
}

func (s *Store) Get(ctx context.Context, id string) (*repository.SyncAttachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(row), nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]repository.SyncAttachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []repository.SyncAttachment
	for _, row := range s.rows {
		if row.UserID == userID {
			out = append(out, *clone(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) Finalize(ctx context.Context, id string, credentials map[string]string, email string) (*repository.SyncAttachment, error) {
	if len(credentials) == 0 || strings.TrimSpace(email) == "" {
		return nil, repository.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if row.Status != repository.StatusPending {
		return nil, repository.ErrInvalidTransition
	}

	// uq_sync_active_account: (user, provider, email) único entre ACTIVE
	for _, other := range s.rows {
		if other.ID != id &&
			other.Status == repository.StatusActive &&
			other.UserID == row.UserID &&
			other.Provider == row.Provider &&
			other.Email == email {
			return nil, repository.ErrDuplicateAccount
		}
	}

	row.Status = repository.StatusActive
	row.Credentials = copyMap(credentials)
	row.Email = email
	row.StateBlob = ""
	row.UpdatedAt = time.Now().UTC()
	return clone(row), nil
}

func (s *Store) Revoke(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok || row.UserID != userID {
		// No revelamos si la fila existe pero es de otro usuario.
		return repository.ErrNotFound
	}
	if !row.Status.CanTransition(repository.StatusRevoked) {
		return repository.ErrInvalidTransition
	}
	row.Status = repository.StatusRevoked
	row.Credentials = map[string]string{}
	row.StateBlob = ""
	row.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, row := range s.rows {
		if row.Status == repository.StatusPending && row.UpdatedAt.Before(cutoff) {
			row.Status = repository.StatusRevoked
			row.StateBlob = ""
			row.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}

func clone(row *repository.SyncAttachment) *repository.SyncAttachment {
	out := *row
	out.Credentials = copyMap(row.Credentials)
	return &out
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
