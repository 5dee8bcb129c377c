package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Egham-7/custom-endpoint-proxy/internal/config"
	"github.com/Egham-7/custom-endpoint-proxy/internal/models"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/auth"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/chatclient"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/database"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/endpoint"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/headers"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/modelfetch"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/request"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/response"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/tokenconfig"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/userkeys"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const (
	testCredsKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	testUserID   = "user-1"
)

const completionJSON = `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"m1",` +
	`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hi"}}]}`

const chunkJSON = `{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"m1",` +
	`"choices":[{"index":0,"delta":{"content":"hi"}}]}`

type providerCall struct {
	path string
	auth string
	body string
}

type provider struct {
	mu    sync.Mutex
	calls []providerCall
}

func (p *provider) last() providerCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return providerCall{}
	}
	return p.calls[len(p.calls)-1]
}

func (p *provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	p.mu.Lock()
	p.calls = append(p.calls, providerCall{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: string(body)})
	p.mu.Unlock()

	if gjson.GetBytes(body, "stream").Bool() {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: "+chunkJSON+"\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, completionJSON)
}

type testEnv struct {
	app      *fiber.App
	provider *provider
	keys     *userkeys.Service
	db       *database.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	prov := &provider{}
	srv := httptest.NewServer(prov)
	t.Cleanup(srv.Close)

	db, err := database.New(models.DatabaseConfig{Type: models.SQLite, FilePath: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	sealer, err := userkeys.NewSealer(testCredsKey)
	require.NoError(t, err)
	keys := userkeys.NewService(db.DB, sealer)

	cfg := &config.Config{Endpoints: models.EndpointsConfig{Custom: []models.CustomEndpointConfig{
		{
			Name:    "Local",
			APIKey:  "sk-static",
			BaseURL: srv.URL + "/v1",
			Models:  models.EndpointModels{Default: []string{"m1", "m2"}},
		},
		{
			Name:    "Byok",
			APIKey:  models.AuthTypeUserProvided,
			BaseURL: srv.URL + "/v1",
			Models:  models.EndpointModels{Default: []string{"m1"}},
		},
	}}}

	cache := tokenconfig.NewMemoryCache(16, time.Minute)
	resolver := endpoint.NewResolver(endpoint.Dependencies{
		Configs: config.NewStaticStore(cfg),
		Keys:    keys,
		Headers: headers.NewResolver(),
		Cache:   cache,
		Fetcher: modelfetch.NewFetcher(cache, time.Minute, nil),
		Factory: chatclient.NewFactory(8),
	}, models.GlobalOptions{}, nil)

	reqSvc := request.NewBaseService()
	respSvc := response.NewBaseService()
	custom := NewCustomEndpointHandler(resolver, reqSvc, respSvc)
	keyHandler := NewKeyHandler(keys, reqSvc, respSvc)
	health := NewHealthHandler(db, nil)

	app := fiber.New()
	app.Get("/health", health.HealthCheck)
	app.Use(func(c *fiber.Ctx) error {
		if c.Get("X-Anonymous") == "" {
			auth.SetAuthContext(c, &auth.AuthContext{UserID: testUserID})
		}
		return c.Next()
	})
	app.Post("/api/endpoints/custom/chat", custom.Chat)
	app.Get("/api/endpoints/custom/:endpoint/models", custom.Models)
	app.Put("/api/keys", keyHandler.Update)
	app.Get("/api/keys", keyHandler.GetExpiry)
	app.Delete("/api/keys", keyHandler.DeleteAll)
	app.Delete("/api/keys/:name", keyHandler.Delete)

	return &testEnv{app: app, provider: prov, keys: keys, db: db}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(out)
}

func chatBody(endpointName, extra string) string {
	return `{"endpoint":"` + endpointName + `","model":"m1","messages":[{"role":"user","content":"hello"}]` + extra + `}`
}

func TestChat_StaticEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/endpoints/custom/chat", chatBody("Local", `,"temperature":0.3`))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "chatcmpl-1", gjson.Get(body, "id").String())

	call := env.provider.last()
	assert.Equal(t, "/v1/chat/completions", call.path)
	assert.Equal(t, "Bearer sk-static", call.auth)
	assert.Equal(t, "m1", gjson.Get(call.body, "model").String())
	assert.InDelta(t, 0.3, gjson.Get(call.body, "temperature").Float(), 1e-9)
}

func TestChat_Stream(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/endpoints/custom/chat", chatBody("Local", `,"stream":true`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, `"content":"hi"`)
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
}

func TestChat_Errors(t *testing.T) {
	env := newTestEnv(t)
	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)

	tests := []struct {
		name     string
		body     string
		status   int
		errType  string
		errCode  string
		noRemote bool
	}{
		{"unknown endpoint", chatBody("Nope", ""), http.StatusNotFound, "not_found", models.CodeEndpointNotFound, true},
		{"missing user key", chatBody("Byok", ""), http.StatusBadRequest, "no_user_key", models.CodeMissingUserKey, true},
		{"expired client key", chatBody("Byok", `,"key":"`+past+`"`), http.StatusUnauthorized, "expired_user_key", models.CodeCredentialExpired, true},
		{"bad key timestamp", chatBody("Local", `,"key":"tomorrow"`), http.StatusBadRequest, "validation", "", true},
		{"no messages", `{"endpoint":"Local","messages":[]}`, http.StatusBadRequest, "validation", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, "/api/endpoints/custom/chat", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, body)
			assert.Equal(t, tt.errType, gjson.Get(body, "error.type").String())
			assert.Equal(t, tt.errCode, gjson.Get(body, "error.code").String())
		})
	}
	assert.Empty(t, env.provider.calls)
}

func TestChat_UserProvidedKey(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPut, "/api/keys", `{"name":"Byok","value":{"apiKey":"sk-user"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	resp, body = env.do(t, http.MethodPost, "/api/endpoints/custom/chat", chatBody("Byok", `,"key":"`+future+`"`))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Bearer sk-user", env.provider.last().auth)
}

func TestChat_RequiresUser(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/endpoints/custom/chat", strings.NewReader(chatBody("Local", "")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Anonymous", "1")
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestModels(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/endpoints/custom/Local/models", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var out models.ModelListResponse
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, "Local", out.Endpoint)
	assert.Equal(t, []string{"m1", "m2"}, out.Models)

	resp, _ = env.do(t, http.MethodGet, "/api/endpoints/custom/Nope/models", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestKeys(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/keys?name=Byok", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	expires := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	resp, body := env.do(t, http.MethodPut, "/api/keys",
		`{"name":"Byok","value":{"apiKey":"sk-user"},"expiresAt":"`+expires.Format(time.RFC3339)+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	resp, body = env.do(t, http.MethodGet, "/api/keys?name=Byok", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	got, err := time.Parse(time.RFC3339, gjson.Get(body, "expiresAt").String())
	require.NoError(t, err)
	assert.True(t, expires.Equal(got))

	resp, _ = env.do(t, http.MethodGet, "/api/keys", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/keys/Byok", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/keys/Byok", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestKeys_DeleteAll(t *testing.T) {
	env := newTestEnv(t)

	for _, name := range []string{"Byok", "Other"} {
		resp, body := env.do(t, http.MethodPut, "/api/keys", `{"name":"`+name+`","value":{"apiKey":"k"}}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	}

	resp, _ := env.do(t, http.MethodDelete, "/api/keys", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/keys?all=true", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err := env.keys.GetExpiry(context.Background(), testUserID, "Other")
	assert.ErrorIs(t, err, userkeys.ErrKeyNotFound)
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", gjson.Get(body, "status").String())
	assert.Equal(t, "healthy", gjson.Get(body, "checks.database").String())
	assert.Equal(t, "disabled", gjson.Get(body, "checks.redis").String())

	require.NoError(t, env.db.Close())
	resp, body = env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unhealthy", gjson.Get(body, "checks.database").String())
}
