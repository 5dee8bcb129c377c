// Package config provides fluent configuration builders and the server runtime
// for the custom endpoint proxy.
package config

import (
	"time"

	"github.com/Egham-7/custom-endpoint-proxy/internal/config"
	"github.com/Egham-7/custom-endpoint-proxy/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Builder provides a fluent interface for building proxy configurations.
type Builder struct {
	cfg             *config.Config
	middlewares     []fiber.Handler
	rateLimitConfig *models.RateLimitConfig
	timeoutConfig   *models.TimeoutConfig
}

// New creates a new configuration builder with minimal defaults.
func New() *Builder {
	return &Builder{
		cfg: &config.Config{
			Server: models.ServerConfig{
				Port:           "8080",
				AllowedOrigins: "*",
				Environment:    "development",
				LogLevel:       "info",
			},
			Cache: models.CacheConfig{
				Backend: models.CacheBackendMemory,
			},
			FetchTokenConfig: append([]string(nil), models.FetchTokenConfigEndpoints...),
		},
		middlewares: []fiber.Handler{},
	}
}

// Server configuration

func (b *Builder) Port(port string) *Builder {
	b.cfg.Server.Port = port
	return b
}

func (b *Builder) AllowedOrigins(origins string) *Builder {
	b.cfg.Server.AllowedOrigins = origins
	return b
}

func (b *Builder) Environment(env string) *Builder {
	b.cfg.Server.Environment = env
	return b
}

func (b *Builder) LogLevel(level string) *Builder {
	b.cfg.Server.LogLevel = level
	return b
}

// Infrastructure

// WithDatabase sets the SQL backend for users and stored keys.
func (b *Builder) WithDatabase(cfg models.DatabaseConfig) *Builder {
	b.cfg.Database = &cfg
	return b
}

// WithRedis switches the token config cache to Redis.
func (b *Builder) WithRedis(url string) *Builder {
	b.cfg.Cache.Backend = models.CacheBackendRedis
	b.cfg.Cache.RedisURL = url
	return b
}

// WithTokenConfigTTL sets how long fetched token metadata is cached.
func (b *Builder) WithTokenConfigTTL(ttl time.Duration) *Builder {
	b.cfg.Cache.TTLSeconds = int(ttl / time.Second)
	return b
}

// WithAuth sets the HMAC secret and optional issuer of caller tokens.
func (b *Builder) WithAuth(secret, issuer string) *Builder {
	b.cfg.Auth = models.AuthConfig{JWTSecret: secret, Issuer: issuer}
	return b
}

// WithCredsKey sets the hex-encoded key sealing stored user credentials.
func (b *Builder) WithCredsKey(hexKey string) *Builder {
	b.cfg.Security.CredsKey = hexKey
	return b
}

// WithProxy routes provider calls through an outbound HTTP proxy.
func (b *Builder) WithProxy(proxyURL string) *Builder {
	b.cfg.Proxy = proxyURL
	return b
}

// WithFetchTokenConfig replaces the endpoint names whose token metadata is fetched.
func (b *Builder) WithFetchTokenConfig(names ...string) *Builder {
	b.cfg.FetchTokenConfig = names
	return b
}

// WithStreamRate sets the stream rate applied to every endpoint, in milliseconds.
func (b *Builder) WithStreamRate(ms int) *Builder {
	if b.cfg.Endpoints.All == nil {
		b.cfg.Endpoints.All = &models.AllEndpointsConfig{}
	}
	b.cfg.Endpoints.All.StreamRate = &ms
	return b
}

// WithIdentityFallback makes identity header lookups substitute value instead
// of failing the request.
func (b *Builder) WithIdentityFallback(value string) *Builder {
	if b.cfg.Headers.Identity == nil {
		b.cfg.Headers.Identity = &models.IdentityHeaderConfig{
			Header:      models.DefaultIdentityHeader,
			Placeholder: models.DefaultIdentityPlaceholder,
		}
	}
	b.cfg.Headers.Identity.Fallback = &value
	return b
}

// EndpointBuilder builds one custom endpoint configuration.
type EndpointBuilder struct {
	ep models.CustomEndpointConfig
}

// NewEndpointBuilder creates a builder for the endpoint name. apiKey and
// baseURL may be literals, ${ENV} templates or "user_provided".
func NewEndpointBuilder(name, apiKey, baseURL string) *EndpointBuilder {
	return &EndpointBuilder{ep: models.CustomEndpointConfig{
		Name:    name,
		APIKey:  apiKey,
		BaseURL: baseURL,
		Headers: make(map[string]string),
	}}
}

// WithModels sets the default models and whether the list is fetched from the provider.
func (eb *EndpointBuilder) WithModels(fetch bool, defaults ...string) *EndpointBuilder {
	eb.ep.Models.Default = defaults
	eb.ep.Models.Fetch = fetch
	return eb
}

// WithHeader adds a header template.
func (eb *EndpointBuilder) WithHeader(key, value string) *EndpointBuilder {
	eb.ep.Headers[key] = value
	return eb
}

// WithTokenConfig sets static token metadata, which disables fetching.
func (eb *EndpointBuilder) WithTokenConfig(tc models.TokenConfig) *EndpointBuilder {
	eb.ep.TokenConfig = tc
	return eb
}

func (eb *EndpointBuilder) WithAddParams(params map[string]any) *EndpointBuilder {
	eb.ep.AddParams = params
	return eb
}

func (eb *EndpointBuilder) WithDropParams(params ...string) *EndpointBuilder {
	eb.ep.DropParams = params
	return eb
}

// WithStreamRate sets the delay between streamed chunks, in milliseconds.
func (eb *EndpointBuilder) WithStreamRate(ms int) *EndpointBuilder {
	eb.ep.StreamRate = &ms
	return eb
}

// Build builds the endpoint configuration.
func (eb *EndpointBuilder) Build() models.CustomEndpointConfig {
	return eb.ep
}

// AddCustomEndpoint registers an OpenAI-compatible custom endpoint.
func (b *Builder) AddCustomEndpoint(ep models.CustomEndpointConfig) *Builder {
	b.cfg.Endpoints.Custom = append(b.cfg.Endpoints.Custom, ep)
	return b
}

// Middleware configuration

// WithRateLimit configures rate limiting middleware.
func (b *Builder) WithRateLimit(max int, expiration time.Duration, keyFunc ...func(*fiber.Ctx) string) *Builder {
	cfg := &models.RateLimitConfig{
		Max:        max,
		Expiration: expiration,
	}
	if len(keyFunc) > 0 {
		cfg.KeyFunc = keyFunc[0]
	}
	b.rateLimitConfig = cfg
	return b
}

// WithTimeout configures request timeout middleware.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeoutConfig = &models.TimeoutConfig{
		Timeout: timeout,
	}
	return b
}

// WithMiddleware adds a custom middleware.
func (b *Builder) WithMiddleware(middleware fiber.Handler) *Builder {
	b.middlewares = append(b.middlewares, middleware)
	return b
}

func (b *Builder) GetMiddlewares() []fiber.Handler {
	return b.middlewares
}

func (b *Builder) GetRateLimitConfig() *models.RateLimitConfig {
	return b.rateLimitConfig
}

func (b *Builder) GetTimeoutConfig() *models.TimeoutConfig {
	return b.timeoutConfig
}

// Build returns the constructed configuration with ${ENV} placeholders in
// infrastructure fields substituted.
func (b *Builder) Build() *config.Config {
	b.cfg.Normalize()
	return b.cfg
}

// FromYAML creates a Builder from a YAML configuration file.
// The envFiles are loaded first, in order (first has highest priority).
func FromYAML(path string, envFiles []string) (*Builder, error) {
	if len(envFiles) > 0 {
		config.LoadEnvFiles(envFiles)
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	return &Builder{
		cfg:         cfg,
		middlewares: []fiber.Handler{},
	}, nil
}
