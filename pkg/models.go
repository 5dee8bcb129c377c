package pkg

import "github.com/Egham-7/custom-endpoint-proxy/internal/models"

type (
	ServerConfig         = models.ServerConfig
	CustomEndpointConfig = models.CustomEndpointConfig
	EndpointsConfig      = models.EndpointsConfig
	EndpointModels       = models.EndpointModels
	TokenConfig          = models.TokenConfig
	TokenRate            = models.TokenRate
	CacheConfig          = models.CacheConfig
	DatabaseConfig       = models.DatabaseConfig
	RateLimitConfig      = models.RateLimitConfig
	TimeoutConfig        = models.TimeoutConfig
	ClientOptions        = models.ClientOptions
)
