package dropbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/syncgate/internal/sync/providers"
)

func newTestAdapter(srv *httptest.Server) *Adapter {
	return New("appkey", "appsecret", "https://backend.example/sync/dropbox/oauth2callback",
		WithBaseURLs(srv.URL, srv.URL),
		WithHTTPClient(srv.Client()),
	)
}

func TestAuthorizeURLCarriesSeedPrefix(t *testing.T) {
	a := New("appkey", "appsecret", "https://backend.example/cb")

	raw, err := a.AuthorizeURL(`{"name":"n","user_id":"u"}`)
	if err != nil {
		t.Fatalf("AuthorizeURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()

	if got := q.Get("client_id"); got != "appkey" {
		t.Errorf("client_id = %q", got)
	}
	if got := q.Get("response_type"); got != "code" {
		t.Errorf("response_type = %q", got)
	}
	if got := q.Get("token_access_type"); got != "offline" {
		t.Errorf("token_access_type = %q", got)
	}
	if got := q.Get("scope"); got != "files.metadata.read account_info.read files.content.read" {
		t.Errorf("scope = %q", got)
	}

	state := q.Get("state")
	seed, payload := a.SplitState(state)
	if seed == "" {
		t.Fatalf("state has no seed prefix: %q", state)
	}
	if payload != `{"name":"n","user_id":"u"}` {
		t.Errorf("payload = %q", payload)
	}
}

func TestAuthorizeURLSeedIsFreshPerCall(t *testing.T) {
	a := New("appkey", "appsecret", "cb")

	first, _ := a.AuthorizeURL("x")
	second, _ := a.AuthorizeURL("x")

	seedOf := func(raw string) string {
		u, _ := url.Parse(raw)
		seed, _ := a.SplitState(u.Query().Get("state"))
		return seed
	}
	if seedOf(first) == seedOf(second) {
		t.Fatalf("seed repeated across calls")
	}
}

func TestSplitState(t *testing.T) {
	a := New("k", "s", "cb")

	seed, payload := a.SplitState(`abc|{"name":"n|pipe","user_id":"u"}`)
	if seed != "abc" {
		t.Errorf("seed = %q", seed)
	}
	// solo el primer "|" separa; el resto es payload
	if payload != `{"name":"n|pipe","user_id":"u"}` {
		t.Errorf("payload = %q", payload)
	}

	seed, payload = a.SplitState("no-delimiter")
	if seed != "" || payload != "no-delimiter" {
		t.Errorf("SplitState sin delimitador = (%q, %q)", seed, payload)
	}
}

func TestExchangeRejectsMissingSeed(t *testing.T) {
	a := New("k", "s", "cb")
	params := url.Values{"code": {"c"}, "state": {"payload-only"}}

	_, err := a.Exchange(context.Background(), params, "payload-only")
	if !errors.Is(err, providers.ErrProviderRejected) {
		t.Fatalf("err = %v, want ErrProviderRejected", err)
	}
}

func TestExchangeRejectsEchoMismatch(t *testing.T) {
	a := New("k", "s", "cb")
	params := url.Values{"code": {"c"}, "state": {"seed|tampered"}}

	_, err := a.Exchange(context.Background(), params, "seed|original")
	if !errors.Is(err, providers.ErrProviderRejected) {
		t.Fatalf("err = %v, want ErrProviderRejected", err)
	}
}

func TestExchangeAndNormalize(t *testing.T) {
	start := time.Now().UTC()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2/token" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "authorization_code" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("code") != "the-code" {
			t.Errorf("code = %q", r.PostForm.Get("code"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "sl.abc",
			"refresh_token": "rt.def",
			"account_id":    "dbid:xyz",
			"expires_in":    14400,
		})
	}))
	defer srv.Close()

	a := newTestAdapter(srv)
	raw := "seed123|payload"
	params := url.Values{"code": {"the-code"}, "state": {raw}}

	creds, err := a.Exchange(context.Background(), params, raw)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}

	normalized, err := a.Normalize(creds)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if normalized["access_token"] != "sl.abc" ||
		normalized["refresh_token"] != "rt.def" ||
		normalized["account_id"] != "dbid:xyz" {
		t.Fatalf("normalized = %v", normalized)
	}

	// expires_in guarda el vencimiento ABSOLUTO en unix seconds
	expiry, err := strconv.ParseInt(normalized["expires_in"], 10, 64)
	if err != nil {
		t.Fatalf("expires_in no numérico: %q", normalized["expires_in"])
	}
	lo := start.Add(14400 * time.Second).Unix() - 5
	hi := time.Now().UTC().Add(14400 * time.Second).Unix() + 5
	if expiry < lo || expiry > hi {
		t.Fatalf("expires_in = %d fuera de rango [%d, %d]", expiry, lo, hi)
	}
}

func TestNormalizeRequiresRefreshToken(t *testing.T) {
	a := New("k", "s", "cb")
	_, err := a.Normalize(&providers.RawCredentials{AccessToken: "tok"})
	if !errors.Is(err, providers.ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestFetchIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/users/get_current_account" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer sl.abc" {
			t.Errorf("missing bearer auth")
		}
		body, _ := io.ReadAll(r.Body)
		if strings.TrimSpace(string(body)) != "null" {
			t.Errorf("body = %q, want null", string(body))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"account_id": "dbid:xyz",
			"email":      "user@example.com",
		})
	}))
	defer srv.Close()

	a := newTestAdapter(srv)
	id, err := a.FetchIdentity(context.Background(), &providers.RawCredentials{AccessToken: "sl.abc"})
	if err != nil {
		t.Fatalf("FetchIdentity: %v", err)
	}
	if id.Email != "user@example.com" || id.AccountID != "dbid:xyz" {
		t.Fatalf("identity = %+v", id)
	}
}
