// Package dto holds the wire shapes for the sync endpoints.
package dto

import (
	"time"

	"github.com/dropDatabas3/syncgate/internal/domain/repository"
)

// AuthorizeResponse carries the provider URL the frontend must redirect to.
type AuthorizeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
}

// SyncResponse is the public view of a sync attachment. Credentials and the
// state blob never leave the service.
type SyncResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Provider  string    `json:"provider"`
	Status    string    `json:"status"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListResponse wraps the user's attachments.
type ListResponse struct {
	Syncs []SyncResponse `json:"syncs"`
}

// FromAttachment projects a stored attachment into its public view.
func FromAttachment(att *repository.SyncAttachment) SyncResponse {
	return SyncResponse{
		ID:        att.ID,
		Name:      att.Name,
		Provider:  att.Provider,
		Status:    string(att.Status),
		Email:     att.Email,
		CreatedAt: att.CreatedAt,
		UpdatedAt: att.UpdatedAt,
	}
}
