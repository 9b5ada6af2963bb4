package repository

import (
	"context"
	"time"
)

// Status es el estado de un SyncAttachment.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusRevoked Status = "REVOKED"
)

// CanTransition valida la máquina de estados:
// PENDING→ACTIVE, PENDING→REVOKED, ACTIVE→REVOKED.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusActive || to == StatusRevoked
	case StatusActive:
		return to == StatusRevoked
	default:
		return false
	}
}

// SyncAttachment representa el vínculo persistido entre un usuario y una
// cuenta en un provider externo (DropBox, GitHub, ...).
//
// Invariantes:
//   - (user_id, provider, email) es único entre filas ACTIVE.
//   - PENDING ⇒ credentials vacías y state_blob no vacío.
//   - ACTIVE  ⇒ credentials y email no vacíos; state_blob limpio.
type SyncAttachment struct {
	ID          string
	UserID      string
	Name        string
	Provider    string // tag canónico: "DropBox", "GitHub"
	Status      Status
	Credentials map[string]string
	Email       string
	// StateBlob guarda la serialización canónica del state token minteado
	// en authorize (sin attachment_id), para compararse byte a byte en el callback.
	StateBlob string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateSyncInput contiene los datos para crear un attachment PENDING.
type CreateSyncInput struct {
	UserID    string
	Provider  string
	Name      string
	StateBlob string
}

// SyncRepository define la persistencia de attachments.
// Todas las escrituras son transacciones de una sola fila; la unicidad
// se expresa como constraint en la base.
type SyncRepository interface {
	// Create inserta una fila PENDING y mintea el ID.
	// Retorna ErrConflict si el usuario ya tiene un PENDING con ese nombre.
	Create(ctx context.Context, in CreateSyncInput) (*SyncAttachment, error)

	// Get busca por ID. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, id string) (*SyncAttachment, error)

	// ListByUser lista los attachments de un usuario, más reciente primero.
	ListByUser(ctx context.Context, userID string) ([]SyncAttachment, error)

	// Finalize pasa PENDING→ACTIVE escribiendo credentials y email, y limpia
	// el state_blob. Es el único punto de linearización del flujo: un segundo
	// callback concurrente observa ErrInvalidTransition.
	// Retorna ErrDuplicateAccount si (user, provider, email) ya está ACTIVE.
	Finalize(ctx context.Context, id string, credentials map[string]string, email string) (*SyncAttachment, error)

	// Revoke pasa a REVOKED chequeando ownership.
	// Retorna ErrNotFound si el attachment no existe o no es del usuario.
	Revoke(ctx context.Context, id, userID string) error

	// ExpirePending pasa a REVOKED las filas PENDING no tocadas desde cutoff.
	// Retorna cuántas filas cambió.
	ExpirePending(ctx context.Context, cutoff time.Time) (int64, error)
}
