// Package providers defines the per-provider strategy used by the sync
// onboarding flow.
//
// Each provider (DropBox, GitHub, ...) implements the same capability set:
// build the authorization URL, exchange the callback code, fetch the account
// identity and normalize credentials. New providers plug in by implementing
// Adapter and registering by name.
//
// Design Patterns:
// - Strategy: each provider is a strategy for the OAuth2 dance
// - Adapter: normalize different token/identity responses to a common shape
package providers

import (
	"context"
	"errors"
	"net/url"
	"time"
)

// Upstream error kinds. Adapters wrap these so callers can classify failures
// without knowing the provider.
var (
	// ErrProviderRejected: the provider refused the exchange (bad code,
	// CSRF mismatch, revoked app, ...).
	ErrProviderRejected = errors.New("provider rejected")

	// ErrNetwork: the outbound call failed or timed out.
	ErrNetwork = errors.New("provider network error")

	// ErrMalformedResponse: the provider answered something we cannot parse.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// RawCredentials is the untouched result of a code exchange.
type RawCredentials struct {
	AccessToken  string
	RefreshToken string
	AccountID    string

	// ExpiresAt is the absolute expiry; zero for providers whose tokens are
	// intrinsically long-lived.
	ExpiresAt time.Time

	// Raw holds the token-endpoint response verbatim, string-valued.
	Raw map[string]string
}

// Identity is the provider-side account identity.
type Identity struct {
	Email     string
	AccountID string
}

// Adapter is the capability set every provider implements.
type Adapter interface {
	// Name is the lowercase route segment ("dropbox", "github").
	Name() string

	// Tag is the canonical value persisted in the provider column
	// ("DropBox", "GitHub" - historical casing kept for downstream readers).
	Tag() string

	// AuthorizeURL builds the provider authorization URL carrying the state
	// string. Providers that need a CSRF seed prepend it to the state with a
	// "|" delimiter before embedding it.
	AuthorizeURL(state string) (string, error)

	// SplitState recovers the CSRF seed and the token payload from a raw
	// callback state. Providers without a seed return ("", raw).
	SplitState(raw string) (seed, payload string)

	// Exchange performs the authorization-code exchange. rawState is the
	// state exactly as it came back from the provider; adapters with a CSRF
	// seed verify it before exchanging.
	Exchange(ctx context.Context, params url.Values, rawState string) (*RawCredentials, error)

	// FetchIdentity resolves the account email (and id) behind the
	// credentials, falling back to secondary endpoints when the primary
	// profile hides the email.
	FetchIdentity(ctx context.Context, creds *RawCredentials) (*Identity, error)

	// Normalize yields the credential mapping persisted on finalize.
	Normalize(creds *RawCredentials) (map[string]string, error)
}
