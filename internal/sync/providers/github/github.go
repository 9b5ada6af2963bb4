// Package github implements the GitHub OAuth 2.0 sync provider.
// GitHub has no ID tokens, so a separate API call fetches the account
// identity, with a fallback to the emails endpoint when the profile email
// is private.
package github

import (
	"context"
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
	ProviderName = "github"
	// ProviderTag is the value persisted in the provider column.
	ProviderTag = "GitHub"
)

// Scopes requested on authorize. Fixed: downstream workers clone repos and
// read the user profile.
var Scopes = []string{"repo", "user"}

// Adapter implements providers.Adapter for GitHub.
type Adapter struct {
	clientID     string
	clientSecret string
	redirectURI  string

	// Endpoints are fields so tests can point them at a stub server.
	authEndpoint  string
	tokenEndpoint string
	userEndpoint  string
	emailEndpoint string

	http *http.Client
}

// Option tweaks the adapter; used by tests.
type Option func(*Adapter)

// WithBaseURLs overrides the GitHub endpoints.
func WithBaseURLs(apiBase, webBase string) Option {
	return func(a *Adapter) {
		a.authEndpoint = webBase + "/login/oauth/authorize"
		a.tokenEndpoint = webBase + "/login/oauth/access_token"
		a.userEndpoint = apiBase + "/user"
		a.emailEndpoint = apiBase + "/user/emails"
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.http = c }
}

// New creates a GitHub adapter.
func New(clientID, clientSecret, redirectURI string, opts ...Option) *Adapter {
	a := &Adapter{
		clientID:      clientID,
		clientSecret:  clientSecret,
		redirectURI:   redirectURI,
		authEndpoint:  "https://github.com/login/oauth/authorize",
		tokenEndpoint: "https://github.com/login/oauth/access_token",
		userEndpoint:  "https://api.github.com/user",
		emailEndpoint: "https://api.github.com/user/emails",
		http:          &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return ProviderName }
func (a *Adapter) Tag() string  { return ProviderTag }

// AuthorizeURL builds the GitHub authorization URL with the state verbatim.
func (a *Adapter) AuthorizeURL(state string) (string, error) {
	u, err := url.Parse(a.authEndpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("client_id", a.clientID)
	q.Set("redirect_uri", a.redirectURI)
	q.Set("scope", strings.Join(Scopes, " "))
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SplitState: GitHub carries no CSRF seed; the whole state is the payload.
func (a *Adapter) SplitState(raw string) (string, string) {
	return "", raw
}

// Exchange trades the authorization code for an access token.
// The state is echoed in the form per GitHub's token contract.
func (a *Adapter) Exchange(ctx context.Context, params url.Values, rawState string) (*providers.RawCredentials, error) {
	code := params.Get("code")
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", providers.ErrProviderRejected)
	}

	form := url.Values{}
	form.Set("client_id", a.clientID)
	form.Set("client_secret", a.clientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", a.redirectURI)
	form.Set("state", rawState)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: token endpoint status %d", providers.ErrProviderRejected, resp.StatusCode)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode token response: %v", providers.ErrMalformedResponse, err)
	}

	if e, _ := raw["error"].(string); e != "" {
		desc, _ := raw["error_description"].(string)
		return nil, fmt.Errorf("%w: %s %s", providers.ErrProviderRejected, e, desc)
	}

	accessToken, _ := raw["access_token"].(string)
	if accessToken == "" {
		return nil, fmt.Errorf("%w: no access_token in response", providers.ErrMalformedResponse)
	}

	return &providers.RawCredentials{
		AccessToken: accessToken,
		Raw:         stringify(raw),
	}, nil
}

// userInfo is the subset of /user we read.
type userInfo struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"`
}

// emailInfo is one entry of /user/emails.
type emailInfo struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// FetchIdentity resolves the account email. Some GitHub users keep their
// profile email private; the emails endpoint is the fallback, preferring the
// primary verified entry.
func (a *Adapter) FetchIdentity(ctx context.Context, creds *providers.RawCredentials) (*providers.Identity, error) {
	var info userInfo
	if err := a.getJSON(ctx, a.userEndpoint, creds.AccessToken, &info); err != nil {
		return nil, err
	}

	id := &providers.Identity{
		Email:     info.Email,
		AccountID: fmt.Sprintf("%d", info.ID),
	}
	if id.Email != "" {
		return id, nil
	}

	var emails []emailInfo
	if err := a.getJSON(ctx, a.emailEndpoint, creds.AccessToken, &emails); err != nil {
		return nil, err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			id.Email = e.Email
			return id, nil
		}
	}
	for _, e := range emails {
		if e.Primary {
			id.Email = e.Email
			return id, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			id.Email = e.Email
			return id, nil
		}
	}
	return nil, fmt.Errorf("%w: no usable email", providers.ErrMalformedResponse)
}

// Normalize stores the token response verbatim. GitHub tokens minted through
// the web flow do not expire, so there is no refresh token to carry.
func (a *Adapter) Normalize(creds *providers.RawCredentials) (map[string]string, error) {
	if creds == nil || creds.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty credentials", providers.ErrMalformedResponse)
	}
	out := make(map[string]string, len(creds.Raw))
	for k, v := range creds.Raw {
		out[k] = v
	}
	out["access_token"] = creds.AccessToken
	return out, nil
}

func (a *Adapter) getJSON(ctx context.Context, endpoint, accessToken string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", providers.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s status %d", providers.ErrProviderRejected, endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", providers.ErrMalformedResponse, endpoint, err)
	}
	return nil
}

// stringify flattens a JSON object into the string-valued mapping the store
// persists. Token responses are flat string fields in practice.
func stringify(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = fmt.Sprintf("%t", t)
		case nil:
			// skip
		default:
			b, _ := json.Marshal(t)
			out[k] = string(b)
		}
	}
	return out
}
