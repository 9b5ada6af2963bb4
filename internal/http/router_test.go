package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/syncgate/internal/auth"
	healthctrl "github.com/dropDatabas3/syncgate/internal/http/controllers/health"
	syncctrl "github.com/dropDatabas3/syncgate/internal/http/controllers/sync"
	"github.com/dropDatabas3/syncgate/internal/rate"
	"github.com/dropDatabas3/syncgate/internal/store/memory"
	syncsvc "github.com/dropDatabas3/syncgate/internal/sync"
	"github.com/dropDatabas3/syncgate/internal/sync/providers"
)

const (
	testSecret = "test-secret"
	testIssuer = "https://issuer.test"
)

type fakeAdapter struct {
	lastState string
}

func (f *fakeAdapter) Name() string { return "stubbox" }
func (f *fakeAdapter) Tag() string  { return "StubBox" }

func (f *fakeAdapter) AuthorizeURL(st string) (string, error) {
	f.lastState = st
	return "https://provider.example/authorize?state=" + url.QueryEscape(st), nil
}

func (f *fakeAdapter) SplitState(raw string) (string, string) { return "", raw }

func (f *fakeAdapter) Exchange(ctx context.Context, params url.Values, rawState string) (*providers.RawCredentials, error) {
	return &providers.RawCredentials{AccessToken: "at", RefreshToken: "rt", AccountID: "acct"}, nil
}

func (f *fakeAdapter) FetchIdentity(ctx context.Context, creds *providers.RawCredentials) (*providers.Identity, error) {
	return &providers.Identity{Email: "user@example.com", AccountID: "acct"}, nil
}

func (f *fakeAdapter) Normalize(creds *providers.RawCredentials) (map[string]string, error) {
	return map[string]string{"access_token": creds.AccessToken}, nil
}

func newTestRouter(t *testing.T, limiter rate.Limiter) (http.Handler, *fakeAdapter) {
	t.Helper()

	store := memory.New()
	adapter := &fakeAdapter{}
	registry := providers.NewRegistry()
	registry.Register(adapter)
	service := syncsvc.NewService(store, registry, 5*time.Second)

	router := NewRouter(RouterDeps{
		Verifier:           auth.NewVerifier(testSecret, testIssuer),
		Sync:               syncctrl.NewControllers(service),
		Health:             healthctrl.NewHealthController(nil, "test"),
		Limiter:            limiter,
		CORSAllowedOrigins: []string{"https://app.test"},
	})
	return router, adapter
}

func mintToken(t *testing.T, sub string) string {
	t.Helper()
	claims := jwtv5.MapClaims{
		"sub": sub,
		"iss": testIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	raw, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return raw
}

func doAuthorize(t *testing.T, h http.Handler, token, name string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/sync/stubbox/authorize?name="+url.QueryEscape(name), nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthorizeRequiresAuth(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := doAuthorize(t, h, "", "docs")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// token con firma inválida
	bad := mintToken(t, "u1") + "x"
	rec = doAuthorize(t, h, bad, "docs")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthorizeHappyPath(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := doAuthorize(t, h, mintToken(t, "u1"), "docs")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var out struct {
		AuthorizationURL string `json:"authorization_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Contains(t, out.AuthorizationURL, "https://provider.example/authorize")
}

func TestAuthorizeValidation(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	token := mintToken(t, "u1")

	rec := doAuthorize(t, h, token, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/sync/nope/authorize?name=docs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAuthorizeDuplicateNameConflict(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	token := mintToken(t, "u1")

	require.Equal(t, http.StatusOK, doAuthorize(t, h, token, "docs").Code)

	rec := doAuthorize(t, h, token, "docs")
	require.Equal(t, http.StatusConflict, rec.Code)

	var out struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "SYNC_NAME_PENDING", out.Code)
}

func TestCallbackServesSuccessPage(t *testing.T) {
	h, adapter := newTestRouter(t, nil)

	require.Equal(t, http.StatusOK, doAuthorize(t, h, mintToken(t, "u1"), "docs").Code)

	cb := "/sync/stubbox/oauth2callback?code=c&state=" + url.QueryEscape(adapter.lastState)
	req := httptest.NewRequest(http.MethodGet, cb, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rec.Body.String(), "connected")

	// la lista del dueño refleja el attachment activo
	req = httptest.NewRequest(http.MethodGet, "/sync", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "u1"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Syncs []struct {
			Status string `json:"status"`
			Email  string `json:"email"`
		} `json:"syncs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Syncs, 1)
	require.Equal(t, "ACTIVE", out.Syncs[0].Status)
	require.Equal(t, "user@example.com", out.Syncs[0].Email)
}

func TestCallbackBadState(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/sync/stubbox/oauth2callback?code=c&state=garbage", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// state bien formado pero sin fila en el store
	st := url.QueryEscape(`{"name":"n","user_id":"u1","attachment_id":"missing"}`)
	req = httptest.NewRequest(http.MethodGet, "/sync/stubbox/oauth2callback?code=c&state="+st, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCallbackAlreadyLinkedAccountStaysOpaque(t *testing.T) {
	h, adapter := newTestRouter(t, nil)
	token := mintToken(t, "u1")

	// primer flujo completo deja vinculada la cuenta del provider
	require.Equal(t, http.StatusOK, doAuthorize(t, h, token, "first").Code)
	cb := "/sync/stubbox/oauth2callback?code=c&state=" + url.QueryEscape(adapter.lastState)
	req := httptest.NewRequest(http.MethodGet, cb, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	// segundo flujo contra la misma cuenta: el endpoint no está autenticado,
	// la respuesta debe ser indistinguible de cualquier otro state inválido
	require.Equal(t, http.StatusOK, doAuthorize(t, h, token, "second").Code)
	cb = "/sync/stubbox/oauth2callback?code=c&state=" + url.QueryEscape(adapter.lastState)
	req = httptest.NewRequest(http.MethodGet, cb, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var out struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "INVALID_STATE", out.Code)
}

func TestRevoke(t *testing.T) {
	h, adapter := newTestRouter(t, nil)
	token := mintToken(t, "u1")

	require.Equal(t, http.StatusOK, doAuthorize(t, h, token, "docs").Code)
	cb := "/sync/stubbox/oauth2callback?code=c&state=" + url.QueryEscape(adapter.lastState)
	req := httptest.NewRequest(http.MethodGet, cb, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// obtener el id desde la lista
	req = httptest.NewRequest(http.MethodGet, "/sync", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out struct {
		Syncs []struct {
			ID string `json:"id"`
		} `json:"syncs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Syncs, 1)
	id := out.Syncs[0].ID

	// otro usuario: 404, no filtra existencia
	req = httptest.NewRequest(http.MethodDelete, "/sync/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "intruder"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// dueño: 204
	req = httptest.NewRequest(http.MethodDelete, "/sync/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// repetido: ya está revocado
	req = httptest.NewRequest(http.MethodDelete, "/sync/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthorizeRateLimited(t *testing.T) {
	h, _ := newTestRouter(t, rate.NewMemoryLimiter(1, time.Minute))
	token := mintToken(t, "u1")

	require.Equal(t, http.StatusOK, doAuthorize(t, h, token, "one").Code)

	rec := doAuthorize(t, h, token, "two")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "ready"))
}

func TestRouteNotFound(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var out struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "ROUTE_NOT_FOUND", out.Code)
}
