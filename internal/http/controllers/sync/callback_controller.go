package sync

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dropDatabas3/syncgate/internal/domain/repository"
	httperrors "github.com/dropDatabas3/syncgate/internal/http/errors"
	"github.com/dropDatabas3/syncgate/internal/observability/logger"
	"github.com/dropDatabas3/syncgate/internal/observability/metrics"
	syncsvc "github.com/dropDatabas3/syncgate/internal/sync"
	"github.com/dropDatabas3/syncgate/internal/sync/providers"
)

// CallbackController handles GET /sync/{provider}/oauth2callback.
//
// This endpoint is hit by a browser redirect from the provider, not by the
// frontend: every outcome must be a terminal page or a clean 4xx, never a 500
// that would strand the user on an opaque error.
type CallbackController struct {
	service *syncsvc.Service
}

// NewCallbackController creates a new callback controller.
func NewCallbackController(service *syncsvc.Service) *CallbackController {
	return &CallbackController{service: service}
}

// Callback finalizes the flow and serves the success page.
func (c *CallbackController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("CallbackController.Callback"))

	provider := chi.URLParam(r, "provider")

	att, err := c.service.Callback(ctx, provider, r.URL.Query())
	if err != nil {
		writeCallbackError(w, log, provider, err)
		return
	}

	metrics.RecordFlow(att.Provider, "callback", "ok")
	log.Info("sync attachment activated",
		logger.Provider(att.Provider),
		logger.SyncID(att.ID),
		logger.UserID(att.UserID),
	)

	// The success page is the one HTML response in the service; relax the
	// API CSP just enough for its inline stylesheet.
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none'; base-uri 'none'")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(successPage))
}

// writeCallbackError maps flow errors to coarse statuses. The mapping is
// deliberately vague about which validation failed: this response goes to
// whoever crafted the redirect, which may not be the legitimate user.
func writeCallbackError(w http.ResponseWriter, log *zap.Logger, provider string, err error) {
	switch {
	case errors.Is(err, repository.ErrDuplicateAccount):
		metrics.RecordFlow(provider, "callback", "conflict")
	case errors.Is(err, providers.ErrProviderRejected),
		errors.Is(err, providers.ErrNetwork),
		errors.Is(err, providers.ErrMalformedResponse),
		errors.Is(err, context.DeadlineExceeded):
		metrics.RecordFlow(provider, "callback", "rejected")
	default:
		metrics.RecordFlow(provider, "callback", "invalid")
	}

	switch {
	case errors.Is(err, syncsvc.ErrProviderUnknown):
		httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail("unsupported provider: "+provider))

	case errors.Is(err, syncsvc.ErrMalformedState),
		errors.Is(err, syncsvc.ErrStateMismatch),
		errors.Is(err, syncsvc.ErrUserMismatch):
		httperrors.WriteError(w, httperrors.ErrInvalidState)

	case errors.Is(err, syncsvc.ErrReplayOrClosed):
		httperrors.WriteError(w, httperrors.ErrInvalidState.WithDetail("authorization already completed or revoked"))

	case errors.Is(err, syncsvc.ErrUnknownAttachment):
		httperrors.WriteError(w, httperrors.ErrSyncNotFound)

	case errors.Is(err, repository.ErrDuplicateAccount):
		// The account is already linked, but this caller is unauthenticated:
		// keep the response indistinguishable from any other invalid state.
		log.Warn("callback for already-linked account", logger.Provider(provider))
		httperrors.WriteError(w, httperrors.ErrInvalidState.WithDetail("authorization could not be completed"))

	case errors.Is(err, providers.ErrProviderRejected):
		httperrors.WriteError(w, httperrors.ErrProviderRejected)

	case errors.Is(err, providers.ErrNetwork),
		errors.Is(err, providers.ErrMalformedResponse),
		errors.Is(err, context.DeadlineExceeded):
		// Upstream hiccup: the row stays PENDING and a retry of the whole
		// flow is possible, so report it as a client-recoverable failure.
		log.Warn("callback upstream failure", logger.Provider(provider), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrProviderRejected.WithDetail("provider exchange failed, retry the connection"))

	default:
		log.Error("callback failed", logger.Provider(provider), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInvalidState.WithDetail("authorization could not be completed"))
	}
}
