package sync

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/syncgate/internal/domain/repository"
	dto "github.com/dropDatabas3/syncgate/internal/http/dto/sync"
	httperrors "github.com/dropDatabas3/syncgate/internal/http/errors"
	"github.com/dropDatabas3/syncgate/internal/http/helpers"
	"github.com/dropDatabas3/syncgate/internal/http/middlewares"
	"github.com/dropDatabas3/syncgate/internal/observability/logger"
	"github.com/dropDatabas3/syncgate/internal/observability/metrics"
	syncsvc "github.com/dropDatabas3/syncgate/internal/sync"
)

// AuthorizeController handles POST /sync/{provider}/authorize.
type AuthorizeController struct {
	service *syncsvc.Service
}

// NewAuthorizeController creates a new authorize controller.
func NewAuthorizeController(service *syncsvc.Service) *AuthorizeController {
	return &AuthorizeController{service: service}
}

// Authorize starts the OAuth flow: mints the pending attachment and returns
// the provider authorization URL for the frontend to redirect to.
func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AuthorizeController.Authorize"))

	userID := middlewares.GetUserID(ctx)
	if userID == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	provider := chi.URLParam(r, "provider")
	name := strings.TrimSpace(r.URL.Query().Get("name"))

	result, err := c.service.Begin(ctx, syncsvc.UserIdentity{ID: userID}, provider, name)
	if err != nil {
		switch {
		case errors.Is(err, syncsvc.ErrMissingName):
			httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail("query parameter name is required"))
		case errors.Is(err, syncsvc.ErrProviderUnknown):
			httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail("unsupported provider: "+provider))
		case errors.Is(err, repository.ErrConflict):
			metrics.RecordFlow(provider, "begin", "conflict")
			httperrors.WriteError(w, httperrors.ErrSyncNamePending)
		default:
			metrics.RecordFlow(provider, "begin", "error")
			log.Error("authorize failed", logger.Provider(provider), logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}

	metrics.RecordFlow(provider, "begin", "ok")
	helpers.WriteJSON(w, http.StatusOK, dto.AuthorizeResponse{
		AuthorizationURL: result.AuthorizationURL,
	})
}
