// Package dropbox implements the Dropbox OAuth 2.0 sync provider.
//
// Dropbox's flow splits a CSRF seed from the application state with a "|"
// delimiter inside the state parameter itself: the authorize URL carries
// "<seed>|<payload>" and the callback recovers the seed from the prefix. No
// server-side session is needed for the seed; the server-side integrity check
// happens against the persisted state blob.
package dropbox

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/syncgate/internal/sync/providers"
)

const (
	// ProviderName is the route segment.
	ProviderName = "dropbox"
	// ProviderTag is the value persisted in the provider column.
	ProviderTag = "DropBox"

	// stateDelim separates the CSRF seed from the token payload.
	stateDelim = "|"
)

// Scopes requested on authorize. Fixed: downstream workers list and download
// files and read the account profile.
var Scopes = []string{"files.metadata.read", "account_info.read", "files.content.read"}

// Adapter implements providers.Adapter for Dropbox.
type Adapter struct {
	appKey      string
	appSecret   string
	redirectURI string

	authEndpoint    string
	tokenEndpoint   string
	accountEndpoint string

	http *http.Client
}

// Option tweaks the adapter; used by tests.
type Option func(*Adapter)

// WithBaseURLs overrides the Dropbox endpoints.
func WithBaseURLs(apiBase, webBase string) Option {
	return func(a *Adapter) {
		a.authEndpoint = webBase + "/oauth2/authorize"
		a.tokenEndpoint = apiBase + "/oauth2/token"
		a.accountEndpoint = apiBase + "/2/users/get_current_account"
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.http = c }
}

// New creates a Dropbox adapter.
func New(appKey, appSecret, redirectURI string, opts ...Option) *Adapter {
	a := &Adapter{
		appKey:          appKey,
		appSecret:       appSecret,
		redirectURI:     redirectURI,
		authEndpoint:    "https://www.dropbox.com/oauth2/authorize",
		tokenEndpoint:   "https://api.dropboxapi.com/oauth2/token",
		accountEndpoint: "https://api.dropboxapi.com/2/users/get_current_account",
		http:            &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return ProviderName }
func (a *Adapter) Tag() string  { return ProviderTag }

// AuthorizeURL builds the Dropbox authorization URL. A fresh CSRF seed is
// minted per call and prepended to the state. token_access_type=offline asks
// for a refresh token so downstream fetches outlive the access token.
func (a *Adapter) AuthorizeURL(state string) (string, error) {
	seed, err := newSeed()
	if err != nil {
		return "", err
	}

	u, err := url.Parse(a.authEndpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("client_id", a.appKey)
	q.Set("response_type", "code")
	q.Set("redirect_uri", a.redirectURI)
	q.Set("token_access_type", "offline")
	q.Set("scope", strings.Join(Scopes, " "))
	q.Set("state", seed+stateDelim+state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SplitState recovers the CSRF seed (before the first "|") and the payload.
func (a *Adapter) SplitState(raw string) (string, string) {
	if i := strings.Index(raw, stateDelim); i >= 0 {
		return raw[:i], raw[i+1:]
	}
	return "", raw
}

// tokenResponse is Dropbox's token endpoint payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	AccountID    string `json:"account_id"`
	ExpiresIn    int64  `json:"expires_in"` // seconds until expiry
	Error        string `json:"error,omitempty"`
	ErrorDesc    string `json:"error_description,omitempty"`
}

// Exchange trades the authorization code for tokens. The exchange only runs
// when the echoed state carries the CSRF seed it was minted with.
func (a *Adapter) Exchange(ctx context.Context, params url.Values, rawState string) (*providers.RawCredentials, error) {
	seed, _ := a.SplitState(rawState)
	if seed == "" {
		return nil, fmt.Errorf("%w: csrf seed missing from state", providers.ErrProviderRejected)
	}
	if echoed := params.Get("state"); echoed != rawState {
		return nil, fmt.Errorf("%w: csrf check failed", providers.ErrProviderRejected)
	}

	code := params.Get("code")
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", providers.ErrProviderRejected)
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", a.redirectURI)
	form.Set("client_id", a.appKey)
	form.Set("client_secret", a.appSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrNetwork, err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%w: decode token response: %v", providers.ErrMalformedResponse, err)
	}
	if resp.StatusCode != http.StatusOK || tr.Error != "" {
		return nil, fmt.Errorf("%w: %s %s (status %d)", providers.ErrProviderRejected, tr.Error, tr.ErrorDesc, resp.StatusCode)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access_token in response", providers.ErrMalformedResponse)
	}

	creds := &providers.RawCredentials{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		AccountID:    tr.AccountID,
	}
	if tr.ExpiresIn > 0 {
		creds.ExpiresAt = time.Now().UTC().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return creds, nil
}

// accountInfo is the subset of users/get_current_account we read.
type accountInfo struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
}

// FetchIdentity calls users/get_current_account with the fresh token.
func (a *Adapter) FetchIdentity(ctx context.Context, creds *providers.RawCredentials) (*providers.Identity, error) {
	// Dropbox RPC endpoints take POST with a JSON (or null) body.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.accountEndpoint, strings.NewReader("null"))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: get_current_account status %d", providers.ErrProviderRejected, resp.StatusCode)
	}

	var info accountInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: decode account: %v", providers.ErrMalformedResponse, err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("%w: account has no email", providers.ErrMalformedResponse)
	}
	return &providers.Identity{Email: info.Email, AccountID: info.AccountID}, nil
}

// Normalize yields the canonical Dropbox credential mapping:
//
//	{access_token, refresh_token, account_id, expires_in}
//
// expires_in keeps its historical key name but holds the ABSOLUTE expiry as
// unix seconds, stringified. Downstream consumers key on that name.
func (a *Adapter) Normalize(creds *providers.RawCredentials) (map[string]string, error) {
	if creds == nil || creds.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty credentials", providers.ErrMalformedResponse)
	}
	if creds.RefreshToken == "" {
		// offline access was requested; a missing refresh token means the
		// grant cannot be renewed later.
		return nil, fmt.Errorf("%w: no refresh_token in offline grant", providers.ErrMalformedResponse)
	}
	out := map[string]string{
		"access_token":  creds.AccessToken,
		"refresh_token": creds.RefreshToken,
		"account_id":    creds.AccountID,
	}
	if !creds.ExpiresAt.IsZero() {
		out["expires_in"] = strconv.FormatInt(creds.ExpiresAt.Unix(), 10)
	}
	return out, nil
}

func newSeed() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
