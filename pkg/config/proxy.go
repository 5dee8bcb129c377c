package config

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/Egham-7/custom-endpoint-proxy/internal/api"
	"github.com/Egham-7/custom-endpoint-proxy/internal/config"
	"github.com/Egham-7/custom-endpoint-proxy/internal/models"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/auth"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/chatclient"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/database"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/endpoint"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/headers"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/middleware"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/modelfetch"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/request"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/response"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/tokenconfig"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/userkeys"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/users"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/redis/go-redis/v9"
)

const (
	clientCacheSize = 256
	shutdownTimeout = 30 * time.Second
)

// Proxy represents a custom endpoint proxy server instance.
type Proxy struct {
	config     *config.Config
	configPath string
	app        *fiber.App
	redis      *redis.Client
	db         *database.DB
	store      *config.FileStore
	builder    *Builder
}

type proxyInfrastructure struct {
	redis *redis.Client
	db    *database.DB
}

// NewProxy creates a new Proxy instance with the given configuration.
// The cfg parameter is required and must not be nil.
func NewProxy(cfg *config.Config) *Proxy {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() or the config builder to create config")
	}

	return &Proxy{config: cfg}
}

// NewProxyWithBuilder creates a new Proxy instance with a configuration builder.
// This allows full control over middlewares.
func NewProxyWithBuilder(b *Builder) *Proxy {
	return &Proxy{
		config:  b.Build(),
		builder: b,
	}
}

// WithConfigFile serves custom endpoints from path, re-read on SIGHUP, instead
// of the endpoints loaded at startup.
func (p *Proxy) WithConfigFile(path string) *Proxy {
	p.configPath = path
	return p
}

// App returns the fiber app once Setup has run.
func (p *Proxy) App() *fiber.App {
	return p.app
}

// Setup connects infrastructure and registers middleware and routes without
// listening. Run calls it.
func (p *Proxy) Setup() error {
	if err := p.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(p.config)

	p.app = createFiberApp(p.config)

	infra, err := initializeInfrastructure(p.config)
	if err != nil {
		return err
	}
	p.redis = infra.redis
	p.db = infra.db

	if p.configPath != "" {
		p.store = config.NewFileStore(p.configPath)
	} else {
		p.store = config.NewStaticStore(p.config)
	}

	setupMiddleware(p.app, p.config, p)

	if err := setupRoutes(p.app, p.config, p.store, p.redis, p.db); err != nil {
		return fmt.Errorf("failed to setup routes: %w", err)
	}

	p.app.Get("/", welcomeHandler())
	return nil
}

// Close releases the Redis and database connections.
func (p *Proxy) Close() {
	if p.redis != nil {
		if err := p.redis.Close(); err != nil {
			fiberlog.Errorf("Failed to close Redis client: %v", err)
		}
	}
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			fiberlog.Errorf("Failed to close database connection: %v", err)
		}
	}
}

// Run starts the proxy server and blocks until shutdown.
func (p *Proxy) Run() error {
	if err := p.Setup(); err != nil {
		return err
	}
	defer p.Close()

	port := p.config.Server.Port
	if port == "" {
		port = "8080"
	}
	listenAddr := ":" + port

	fmt.Printf("🚀 Custom endpoint proxy starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", p.config.Server.Environment)
	fmt.Printf("   Custom endpoints: %d\n", len(p.config.Endpoints.Custom))
	fmt.Printf("   Go version: %s\n", runtime.Version())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	reloadChan := make(chan os.Signal, 1)
	signal.Notify(reloadChan, syscall.SIGHUP)
	defer signal.Stop(reloadChan)

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- p.app.Listen(listenAddr)
	}()

wait:
	for {
		select {
		case <-reloadChan:
			fiberlog.Info("Received SIGHUP, reloading custom endpoint config")
			p.store.Reload()
		case sig := <-sigChan:
			fiberlog.Infof("Received %v, shutting down", sig)
			break wait
		case err := <-listenErr:
			return fmt.Errorf("server error: %w", err)
		}
	}

	fiberlog.Info("Draining connections...")
	if err := p.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	fiberlog.Info("Server stopped")
	return nil
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := cfg.IsProduction()

	return fiber.New(fiber.Config{
		AppName:           "CustomEndpointProxy v1.0",
		EnablePrintRoutes: !isProd,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		ReadBufferSize:    8192,
		WriteBufferSize:   8192,
		CaseSensitive:     true,
		StrictRouting:     false,
		Network:           "tcp",
		ServerHeader:      "CustomEndpointProxy",
	})
}

// rateLimitKey limits per bearer token, falling back to the client IP. It runs
// before authentication, so the token is not validated here.
func rateLimitKey(c *fiber.Ctx) string {
	if token := c.Get(fiber.HeaderAuthorization); token != "" {
		return token
	}
	return c.IP()
}

func setupMiddleware(app *fiber.App, cfg *config.Config, p *Proxy) {
	isProd := cfg.IsProduction()

	// Recover middleware (must be first)
	app.Use(recover.New(recover.Config{
		EnableStackTrace: !isProd,
	}))

	app.Use(request.NewBaseService().Middleware())

	maxRequests, expiration := 1000, time.Minute
	keyFunc := rateLimitKey
	if p.builder != nil && p.builder.GetRateLimitConfig() != nil {
		rlCfg := p.builder.GetRateLimitConfig()
		maxRequests, expiration = rlCfg.Max, rlCfg.Expiration
		if rlCfg.KeyFunc != nil {
			keyFunc = rlCfg.KeyFunc
		}
	}
	app.Use(limiter.New(limiter.Config{
		Max:               maxRequests,
		Expiration:        expiration,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      keyFunc,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(response.ErrorResponse{
				Error: response.ErrorDetail{
					Message: fmt.Sprintf("%d requests per %v", maxRequests, expiration),
					Type:    "rate_limit",
					Code:    "RATE_LIMITED",
				},
			})
		},
	}))

	if p.builder != nil && p.builder.GetTimeoutConfig() != nil {
		timeoutDuration := p.builder.GetTimeoutConfig().Timeout
		app.Use(func(c *fiber.Ctx) error {
			handler := func(c *fiber.Ctx) error {
				return c.Next()
			}
			return timeout.NewWithContext(handler, timeoutDuration)(c)
		})
	} else {
		app.Use(func(c *fiber.Ctx) error {
			const (
				defaultTimeout = 60 * time.Second
				maxTimeout     = 5 * time.Minute
			)

			timeout := defaultTimeout
			if customTimeout := c.Get("X-Request-Timeout"); customTimeout != "" {
				if d, err := time.ParseDuration(customTimeout); err == nil && d > 0 {
					timeout = min(d, maxTimeout)
				}
			}

			ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
			defer cancel()
			c.SetUserContext(ctx)

			return c.Next()
		})
	}

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c *fiber.Ctx) bool {
			// Streamed chat responses must be flushed per event.
			return strings.HasSuffix(c.Path(), "/chat")
		},
	}))

	accessLog := "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n"
	if isProd {
		accessLog = "${time} ${status} ${method} ${path} ${latency} ${bytesSent}b ${locals:request_id}\n"
	}
	app.Use(logger.New(logger.Config{Format: accessLog, Output: os.Stdout}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, User-Agent, X-Request-ID, X-Request-Timeout",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: cfg.Server.AllowedOrigins != "*",
		MaxAge:           86400,
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
	}))

	if p.builder != nil {
		for _, mw := range p.builder.GetMiddlewares() {
			app.Use(mw)
		}
	}

	if !isProd {
		app.Use(pprof.New())
	}
}

var logLevels = map[string]fiberlog.Level{
	"trace":   fiberlog.LevelTrace,
	"debug":   fiberlog.LevelDebug,
	"info":    fiberlog.LevelInfo,
	"":        fiberlog.LevelInfo,
	"warn":    fiberlog.LevelWarn,
	"warning": fiberlog.LevelWarn,
	"error":   fiberlog.LevelError,
}

func setupLogLevel(cfg *config.Config) {
	name := cfg.GetNormalizedLogLevel()
	level, ok := logLevels[name]
	if !ok {
		level = fiberlog.LevelInfo
		defer fiberlog.Warnf("Unknown log level %q, using info", name)
	}
	fiberlog.SetLevel(level)
}

func createRedisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.Cache.Backend != models.CacheBackendRedis {
		fiberlog.Info("Token config cache uses the in-memory backend")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.Cache.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	// Token config entries are small and read once per request.
	opt.PoolSize = 20
	opt.MinIdleConns = 2
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 2 * time.Second
	opt.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opt)
	if err := pingRedis(client, 3); err != nil {
		if cerr := client.Close(); cerr != nil {
			fiberlog.Errorf("Failed to close Redis client: %v", cerr)
		}
		return nil, err
	}
	return client, nil
}

// pingRedis retries with linear backoff until Redis answers.
func pingRedis(client *redis.Client, attempts int) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = client.Ping(ctx).Err()
		cancel()
		if err == nil {
			fiberlog.Infof("Connected to Redis (attempt %d/%d)", attempt, attempts)
			return nil
		}

		fiberlog.Warnf("Redis ping failed (attempt %d/%d): %v", attempt, attempts, err)
		if attempt < attempts {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}
	return fmt.Errorf("redis unreachable after %d attempts: %w", attempts, err)
}

func setupRoutes(app *fiber.App, cfg *config.Config, store *config.FileStore, redisClient *redis.Client, db *database.DB) error {
	reqSvc := request.NewBaseService()
	respSvc := response.NewBaseService()

	userSvc := users.NewService(db.DB)

	sealer, err := userkeys.NewSealer(cfg.Security.CredsKey)
	if err != nil {
		return fmt.Errorf("credential sealer: %w", err)
	}
	keySvc := userkeys.NewService(db.DB, sealer)

	validator, err := auth.NewTokenValidator(cfg.Auth)
	if err != nil {
		return fmt.Errorf("token validator: %w", err)
	}
	authMiddleware := middleware.NewAuthMiddleware(validator, userSvc, middleware.DefaultAuthMiddlewareConfig())

	ttl := cfg.TokenConfigTTL()
	cache, err := tokenconfig.New(cfg.Cache, redisClient, ttl)
	if err != nil {
		return fmt.Errorf("token config cache: %w", err)
	}

	httpClient, err := chatclient.NewHTTPClient(cfg.Proxy)
	if err != nil {
		return fmt.Errorf("http client: %w", err)
	}

	resolver := endpoint.NewResolver(endpoint.Dependencies{
		Configs: store,
		Keys:    keySvc,
		Headers: headers.NewFromConfig(cfg.Headers, userSvc),
		Cache:   cache,
		Fetcher: modelfetch.NewFetcher(cache, ttl, httpClient),
		Factory: chatclient.NewFactory(clientCacheSize),
	}, cfg.GlobalOptions(), cfg.FetchTokenConfig)

	customHandler := api.NewCustomEndpointHandler(resolver, reqSvc, respSvc)
	keyHandler := api.NewKeyHandler(keySvc, reqSvc, respSvc)
	healthHandler := api.NewHealthHandler(db, redisClient)

	app.Get("/health", healthHandler.HealthCheck)

	apiGroup := app.Group("/api", authMiddleware.RequireAuth())

	endpoints := apiGroup.Group("/endpoints/custom")
	endpoints.Post("/chat", customHandler.Chat)
	endpoints.Get("/:endpoint/models", customHandler.Models)

	keys := apiGroup.Group("/keys")
	keys.Put("/", keyHandler.Update)
	keys.Get("/", keyHandler.GetExpiry)
	keys.Delete("/", keyHandler.DeleteAll)
	keys.Delete("/:name", keyHandler.Delete)

	return nil
}

func welcomeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":    "Welcome to the custom endpoint proxy!",
			"version":    "1.0.0",
			"go_version": runtime.Version(),
			"status":     "running",
			"endpoints": fiber.Map{
				"chat":   "/api/endpoints/custom/chat",
				"models": "/api/endpoints/custom/:endpoint/models",
				"keys":   "/api/keys",
				"health": "/health",
			},
		})
	}
}

func initializeInfrastructure(cfg *config.Config) (*proxyInfrastructure, error) {
	infra := &proxyInfrastructure{}

	redisClient, err := createRedisClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client: %w", err)
	}
	infra.redis = redisClient

	db, err := database.New(*cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	infra.db = db
	fiberlog.Infof("Database (%s) initialized successfully", db.DriverName())

	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	fiberlog.Info("Database migrations completed successfully")

	return infra, nil
}
