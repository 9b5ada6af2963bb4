package sync

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/syncgate/internal/domain/repository"
	dto "github.com/dropDatabas3/syncgate/internal/http/dto/sync"
	httperrors "github.com/dropDatabas3/syncgate/internal/http/errors"
	"github.com/dropDatabas3/syncgate/internal/http/helpers"
	"github.com/dropDatabas3/syncgate/internal/http/middlewares"
	"github.com/dropDatabas3/syncgate/internal/observability/logger"
	syncsvc "github.com/dropDatabas3/syncgate/internal/sync"
)

// AttachmentsController handles GET /sync and DELETE /sync/{id}.
type AttachmentsController struct {
	service *syncsvc.Service
}

// NewAttachmentsController creates a new attachments controller.
func NewAttachmentsController(service *syncsvc.Service) *AttachmentsController {
	return &AttachmentsController{service: service}
}

// List returns every attachment owned by the caller, all states included.
func (c *AttachmentsController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AttachmentsController.List"))

	userID := middlewares.GetUserID(ctx)
	if userID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	atts, err := c.service.List(ctx, syncsvc.UserIdentity{ID: userID})
	if err != nil {
		log.Error("list failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	resp := dto.ListResponse{Syncs: make([]dto.SyncResponse, 0, len(atts))}
	for i := range atts {
		resp.Syncs = append(resp.Syncs, dto.FromAttachment(&atts[i]))
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}

// Revoke closes an attachment. 404 for rows the caller does not own so the
// endpoint does not confirm other users' attachment ids.
func (c *AttachmentsController) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AttachmentsController.Revoke"))

	userID := middlewares.GetUserID(ctx)
	if userID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	id := chi.URLParam(r, "id")
	if err := c.service.Revoke(ctx, syncsvc.UserIdentity{ID: userID}, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			httperrors.WriteError(w, httperrors.ErrSyncNotFound)
		case errors.Is(err, repository.ErrInvalidTransition):
			httperrors.WriteError(w, httperrors.ErrConflict.WithDetail("sync already revoked"))
		default:
			log.Error("revoke failed", logger.SyncID(id), logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}

	log.Info("sync attachment revoked", logger.SyncID(id), logger.UserID(userID))
	w.WriteHeader(http.StatusNoContent)
}
