// Package sync drives the two-phase onboarding flow that attaches an external
// content provider account to a user: authorize mints a pending attachment
// and hands out the provider URL; the OAuth2 callback revalidates the state,
// exchanges the code and finalizes the attachment.
//
// The service is stateless; every durable fact lives in the repository. The
// PENDING→ACTIVE check inside Finalize is the single linearization point, so
// concurrent callbacks for the same attachment cannot both win.
package sync

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/syncgate/internal/domain/repository"
	"github.com/dropDatabas3/syncgate/internal/observability/logger"
	"github.com/dropDatabas3/syncgate/internal/sync/providers"
	"github.com/dropDatabas3/syncgate/internal/sync/state"
)

// Flow errors. The HTTP layer maps these to coarse status codes without
// leaking which specific check failed.
var (
	// ErrProviderUnknown: the provider segment names no registered adapter.
	ErrProviderUnknown = errors.New("sync: unknown provider")

	// ErrMissingName: authorize called without a name.
	ErrMissingName = errors.New("sync: name required")

	// ErrMalformedState: the callback state is absent, unparseable, or
	// carries no attachment id.
	ErrMalformedState = errors.New("sync: malformed state")

	// ErrUnknownAttachment: the state references an attachment that is not
	// in the store.
	ErrUnknownAttachment = errors.New("sync: unknown attachment")

	// ErrStateMismatch: the inbound token does not match the state blob
	// persisted at authorize time.
	ErrStateMismatch = errors.New("sync: state mismatch")

	// ErrUserMismatch: the token's user is not the attachment's owner.
	ErrUserMismatch = errors.New("sync: user mismatch")

	// ErrReplayOrClosed: the attachment already left PENDING.
	ErrReplayOrClosed = errors.New("sync: attachment not pending")
)

// UserIdentity is the authenticated caller, resolved by the AuthN middleware.
type UserIdentity struct {
	ID string
}

// Service orchestrates the flow across providers.
type Service struct {
	store           repository.SyncRepository
	registry        *providers.Registry
	upstreamTimeout time.Duration
}

// NewService wires the orchestrator.
func NewService(store repository.SyncRepository, registry *providers.Registry, upstreamTimeout time.Duration) *Service {
	if upstreamTimeout <= 0 {
		upstreamTimeout = 15 * time.Second
	}
	return &Service{store: store, registry: registry, upstreamTimeout: upstreamTimeout}
}

// BeginResult is the outcome of a successful authorize.
type BeginResult struct {
	AuthorizationURL string
	Attachment       *repository.SyncAttachment
}

// Begin mints the state token, persists the PENDING attachment and returns
// the provider authorization URL.
//
// The persisted state blob deliberately omits the attachment id (the row id
// does not exist before the insert); the outgoing state carries it, and the
// callback compares the two with the same omission.
func (s *Service) Begin(ctx context.Context, user UserIdentity, providerName, name string) (*BeginResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("sync.begin"))

	if strings.TrimSpace(name) == "" {
		return nil, ErrMissingName
	}
	adapter, ok := s.registry.Get(providerName)
	if !ok {
		return nil, ErrProviderUnknown
	}

	token := state.Token{Name: name, UserID: user.ID}
	att, err := s.store.Create(ctx, repository.CreateSyncInput{
		UserID:    user.ID,
		Provider:  adapter.Tag(),
		Name:      name,
		StateBlob: state.Canonical(token),
	})
	if err != nil {
		return nil, err
	}

	token.AttachmentID = att.ID
	authURL, err := adapter.AuthorizeURL(state.Encode(token))
	if err != nil {
		// La fila PENDING queda; el janitor la limpia si el usuario no reintenta.
		log.Error("authorize URL build failed", logger.Provider(adapter.Tag()), logger.Err(err))
		return nil, err
	}

	log.Info("sync authorization started",
		logger.Provider(adapter.Tag()),
		logger.UserID(user.ID),
		logger.SyncID(att.ID),
	)
	return &BeginResult{AuthorizationURL: authURL, Attachment: att}, nil
}

// Callback handles the provider redirect: revalidates the state against the
// stored blob, exchanges the code, resolves the identity and finalizes the
// attachment. Upstream failures leave the row PENDING so the user can retry.
func (s *Service) Callback(ctx context.Context, providerName string, query url.Values) (*repository.SyncAttachment, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("sync.callback"))

	adapter, ok := s.registry.Get(providerName)
	if !ok {
		return nil, ErrProviderUnknown
	}

	raw := query.Get("state")
	if raw == "" {
		return nil, ErrMalformedState
	}

	_, payload := adapter.SplitState(raw)
	token, err := state.Decode(payload)
	if err != nil {
		return nil, ErrMalformedState
	}
	if token.AttachmentID == "" {
		return nil, ErrMalformedState
	}

	att, err := s.store.Get(ctx, token.AttachmentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUnknownAttachment
		}
		return nil, err
	}

	// Integrity checks, in this order: blob equality, owner, liveness.
	if state.Canonical(token) != att.StateBlob {
		log.Warn("state blob mismatch", logger.SyncID(att.ID))
		return nil, ErrStateMismatch
	}
	if att.UserID != token.UserID {
		log.Warn("state user mismatch", logger.SyncID(att.ID))
		return nil, ErrUserMismatch
	}
	if att.Status != repository.StatusPending {
		log.Warn("callback replay against closed attachment", logger.SyncID(att.ID))
		return nil, ErrReplayOrClosed
	}
	// A state minted for one provider must not drive another's callback.
	if att.Provider != adapter.Tag() {
		return nil, ErrStateMismatch
	}

	creds, err := withDeadline(ctx, s.upstreamTimeout, func(ctx context.Context) (*providers.RawCredentials, error) {
		return adapter.Exchange(ctx, query, raw)
	})
	if err != nil {
		log.Warn("code exchange failed", logger.Provider(adapter.Tag()), logger.SyncID(att.ID), logger.Err(err))
		return nil, err
	}

	identity, err := withDeadline(ctx, s.upstreamTimeout, func(ctx context.Context) (*providers.Identity, error) {
		return adapter.FetchIdentity(ctx, creds)
	})
	if err != nil {
		log.Warn("identity fetch failed", logger.Provider(adapter.Tag()), logger.SyncID(att.ID), logger.Err(err))
		return nil, err
	}

	mapping, err := adapter.Normalize(creds)
	if err != nil {
		return nil, err
	}

	// El exchange ya consumió el code: aunque el browser corte la conexión,
	// el finalize se intenta igual.
	finCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.upstreamTimeout)
	defer cancel()

	finalized, err := s.store.Finalize(finCtx, att.ID, mapping, identity.Email)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			return nil, ErrReplayOrClosed
		}
		return nil, err
	}

	log.Info("sync finalized",
		logger.Provider(adapter.Tag()),
		logger.UserID(finalized.UserID),
		logger.SyncID(finalized.ID),
		logger.Email(identity.Email),
	)
	return finalized, nil
}

// List returns the caller's attachments.
func (s *Service) List(ctx context.Context, user UserIdentity) ([]repository.SyncAttachment, error) {
	return s.store.ListByUser(ctx, user.ID)
}

// Revoke retires one of the caller's attachments.
func (s *Service) Revoke(ctx context.Context, user UserIdentity, id string) error {
	return s.store.Revoke(ctx, id, user.ID)
}

// withDeadline acota una llamada saliente al provider.
func withDeadline[T any](ctx context.Context, d time.Duration, fn func(context.Context) (*T, error)) (*T, error) {
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(cctx)
}
