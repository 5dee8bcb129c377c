package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: "${TEST_PORT:-8080}"
  allowed_origins: "*"
  log_level: debug
database:
  type: sqlite
  file_path: ":memory:"
cache:
  redis_url: "${TEST_REDIS_URL}"
  ttl_seconds: 60
auth:
  jwt_secret: "${TEST_JWT_SECRET}"
security:
  creds_key: "${TEST_CREDS_KEY}"
proxy: "http://proxy.local:3128"
endpoints:
  all:
    stream_rate: 25
  custom:
    - name: OpenRouter
      api_key: "${OPENROUTER_KEY}"
      base_url: "https://openrouter.ai/api/v1"
      headers:
        x-portkey-metadata: '{"user": "${userIdQuery}"}'
      models:
        default: ["meta-llama/llama-3-70b-instruct"]
        fetch: true
      add_params:
        temperature: 0.2
      drop_params: ["stop"]
      summarize: true
    - name: Mistral
      api_key: user_provided
      base_url: user_provided
      token_config:
        mistral-large:
          prompt: 2
          completion: 6
          context: 32000
`

func TestParse(t *testing.T) {
	t.Setenv("TEST_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("TEST_JWT_SECRET", "secret")
	t.Setenv("TEST_CREDS_KEY", "00")
	t.Setenv("OPENROUTER_KEY", "sk-or")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	assert.Equal(t, models.CacheBackendRedis, cfg.Cache.Backend)
	assert.Equal(t, "secret", cfg.Auth.JWTSecret)

	require.Len(t, cfg.Endpoints.Custom, 2)
	or := cfg.Endpoints.Custom[0]
	assert.Equal(t, "${OPENROUTER_KEY}", or.APIKey, "endpoint templates are expanded per request, not at load")
	assert.True(t, or.Models.Fetch)
	assert.Equal(t, []string{"stop"}, or.DropParams)
	assert.Equal(t, 0.2, or.AddParams["temperature"])
	assert.False(t, or.HasStaticTokenConfig())

	mistral := cfg.Endpoints.Custom[1]
	assert.True(t, mistral.HasStaticTokenConfig())
	assert.Equal(t, int64(32000), mistral.TokenConfig["mistral-large"].Context)

	global := cfg.GlobalOptions()
	require.NotNil(t, global.StreamRate)
	assert.Equal(t, 25, *global.StreamRate)
	assert.Equal(t, "http://proxy.local:3128", global.Proxy)

	assert.Equal(t, []string{"openrouter"}, cfg.FetchTokenConfig)
	assert.Equal(t, models.DefaultIdentityHeader, cfg.Headers.Identity.Header)
	assert.Equal(t, models.DefaultIdentityPlaceholder, cfg.Headers.Identity.Placeholder)
	assert.Equal(t, int64(60), int64(cfg.TokenConfigTTL().Seconds()))

	require.NoError(t, cfg.Validate())
}

func TestParse_MemoryBackendDefault(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  port: \"9000\"\n"))
	require.NoError(t, err)
	assert.Equal(t, models.CacheBackendMemory, cfg.Cache.Backend)
	assert.Equal(t, defaultCacheCapacity, cfg.Cache.Capacity)
	assert.Equal(t, defaultTokenConfigTTL, cfg.TokenConfigTTL())
}

func TestValidate_MissingFields(t *testing.T) {
	cfg, err := Parse([]byte("endpoints:\n  custom:\n    - api_key: x\n"))
	require.NoError(t, err)

	err = cfg.Validate()
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.MissingFields, "server.port")
	assert.Contains(t, vErr.MissingFields, "auth.jwt_secret")
	assert.Contains(t, vErr.MissingFields, "security.creds_key")
	assert.Contains(t, vErr.MissingFields, "endpoints.custom[0].name")
}

func TestLoadFromFile_RejectsBadPaths(t *testing.T) {
	_, err := LoadFromFile("../config.yaml")
	require.Error(t, err)

	_, err = LoadFromFile("config.json")
	require.Error(t, err)
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	store := NewFileStore(path)

	endpoints, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, endpoints, "missing file yields no config")

	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	endpoints, err = store.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, endpoints, "result is cached until reload")

	store.Reload()
	endpoints, err = store.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, endpoints)

	ep, ok := endpoints.FindCustom("Mistral")
	require.True(t, ok)
	assert.Equal(t, models.AuthTypeUserProvided, ep.APIKey)

	_, ok = endpoints.FindCustom("mistral")
	assert.False(t, ok, "endpoint names match exactly")
}

func TestStaticStore(t *testing.T) {
	store := NewStaticStore(nil)
	endpoints, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, endpoints)

	store = NewStaticStore(&Config{Endpoints: models.EndpointsConfig{
		Custom: []models.CustomEndpointConfig{{Name: "X"}},
	}})
	endpoints, err = store.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, endpoints)
	assert.Len(t, endpoints.Custom, 1)
}
