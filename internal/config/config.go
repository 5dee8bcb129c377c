package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTokenConfigTTL = 30 * time.Minute
	defaultCacheCapacity  = 1000
)

// Config represents the complete application configuration
type Config struct {
	Server    models.ServerConfig    `yaml:"server"`
	Endpoints models.EndpointsConfig `yaml:"endpoints"`
	Database  *models.DatabaseConfig `yaml:"database,omitempty"`
	Cache     models.CacheConfig     `yaml:"cache"`
	Auth      models.AuthConfig      `yaml:"auth"`
	Security  models.SecurityConfig  `yaml:"security"`
	Headers   models.HeadersConfig   `yaml:"headers"`
	// Proxy is the outbound HTTP proxy used for provider calls.
	Proxy string `yaml:"proxy,omitempty"`
	// FetchTokenConfig lists endpoint names (case-insensitive) whose token
	// metadata is fetched from the provider.
	FetchTokenConfig []string `yaml:"fetch_token_config,omitempty"`
}

// LoadFromFile loads configuration from a YAML file. Environment placeholders in
// infrastructure sections are substituted at load; custom endpoint templates are
// kept verbatim and expanded per request.
func LoadFromFile(configPath string) (*Config, error) {
	cleanPath := filepath.Clean(configPath)

	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid config path: path traversal not allowed")
	}

	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid config file: only .yaml and .yml files are allowed")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.Normalize()

	return &config, nil
}

// Normalize substitutes environment placeholders in infrastructure fields and
// applies defaults. Parse calls it; configs built in code should too.
func (c *Config) Normalize() {
	c.expandInfraEnv()
	c.applyDefaults()
}

// LoadEnvFiles loads environment variables from .env files in order of precedence
// Loads files in the order provided (first has highest priority)
func LoadEnvFiles(envFiles []string) {
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err == nil {
				fiberlog.Infof("Loaded environment variables from %s", envFile)
			}
		}
	}
}

// New creates a new Config instance by loading from the specified config file path
func New(configPath string) (*Config, error) {
	return LoadFromFile(configPath)
}

func (c *Config) expandInfraEnv() {
	c.Server.Port = substituteEnvVars(c.Server.Port)
	c.Server.AllowedOrigins = substituteEnvVars(c.Server.AllowedOrigins)
	c.Server.Environment = substituteEnvVars(c.Server.Environment)
	c.Server.LogLevel = substituteEnvVars(c.Server.LogLevel)

	if c.Database != nil {
		c.Database.DSN = substituteEnvVars(c.Database.DSN)
		c.Database.Host = substituteEnvVars(c.Database.Host)
		c.Database.Username = substituteEnvVars(c.Database.Username)
		c.Database.Password = substituteEnvVars(c.Database.Password)
		c.Database.Database = substituteEnvVars(c.Database.Database)
		c.Database.FilePath = substituteEnvVars(c.Database.FilePath)
	}

	c.Cache.RedisURL = substituteEnvVars(c.Cache.RedisURL)
	c.Auth.JWTSecret = substituteEnvVars(c.Auth.JWTSecret)
	c.Security.CredsKey = substituteEnvVars(c.Security.CredsKey)
	c.Proxy = substituteEnvVars(c.Proxy)
}

func (c *Config) applyDefaults() {
	if c.Cache.Backend == "" {
		if c.Cache.RedisURL != "" {
			c.Cache.Backend = models.CacheBackendRedis
		} else {
			c.Cache.Backend = models.CacheBackendMemory
		}
	}
	if c.Cache.Capacity <= 0 {
		c.Cache.Capacity = defaultCacheCapacity
	}
	if len(c.FetchTokenConfig) == 0 {
		c.FetchTokenConfig = append([]string(nil), models.FetchTokenConfigEndpoints...)
	}
	if c.Headers.Identity == nil {
		c.Headers.Identity = &models.IdentityHeaderConfig{}
	}
	if c.Headers.Identity.Header == "" {
		c.Headers.Identity.Header = models.DefaultIdentityHeader
	}
	if c.Headers.Identity.Placeholder == "" {
		c.Headers.Identity.Placeholder = models.DefaultIdentityPlaceholder
	}
}

// TokenConfigTTL returns how long fetched token metadata stays cached.
func (c *Config) TokenConfigTTL() time.Duration {
	if c.Cache.TTLSeconds > 0 {
		return time.Duration(c.Cache.TTLSeconds) * time.Second
	}
	return defaultTokenConfigTTL
}

// GlobalOptions returns the process-wide client options.
func (c *Config) GlobalOptions() models.GlobalOptions {
	opts := models.GlobalOptions{Proxy: c.Proxy}
	if c.Endpoints.All != nil {
		opts.StreamRate = c.Endpoints.All.StreamRate
	}
	return opts
}

// GetNormalizedLogLevel returns the log level in lowercase for consistent comparison
func (c *Config) GetNormalizedLogLevel() string {
	return strings.ToLower(c.Server.LogLevel)
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate checks if all required configuration values are set
func (c *Config) Validate() error {
	var missing []string

	if c.Server.Port == "" {
		missing = append(missing, "server.port")
	}
	if c.Server.AllowedOrigins == "" {
		missing = append(missing, "server.allowed_origins")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "auth.jwt_secret")
	}
	if c.Database == nil {
		missing = append(missing, "database")
	}
	if c.Security.CredsKey == "" {
		missing = append(missing, "security.creds_key")
	}
	if c.Cache.Backend == models.CacheBackendRedis && c.Cache.RedisURL == "" {
		missing = append(missing, "cache.redis_url")
	}

	seen := make(map[string]bool, len(c.Endpoints.Custom))
	for i, ep := range c.Endpoints.Custom {
		if ep.Name == "" {
			missing = append(missing, fmt.Sprintf("endpoints.custom[%d].name", i))
			continue
		}
		if seen[ep.Name] {
			fiberlog.Warnf("Duplicate custom endpoint %q, only the first entry is used", ep.Name)
		}
		seen[ep.Name] = true
	}

	if len(missing) > 0 {
		return &ValidationError{MissingFields: missing}
	}

	return nil
}

// ValidationError represents configuration validation errors
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return "missing required configuration fields: " + strings.Join(e.MissingFields, ", ")
}
