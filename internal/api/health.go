package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Pinger is a dependency whose reachability is reported by the health check.
type Pinger interface {
	Ping() error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db          Pinger
	redisClient *redis.Client
}

// NewHealthHandler creates a health handler. redisClient is nil when the
// memory cache backend is used.
func NewHealthHandler(db Pinger, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redisClient: redisClient}
}

// HealthCheck returns the health status of the service and its dependencies
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	checks := fiber.Map{
		"database": h.checkDatabase(),
		"redis":    h.checkRedis(),
	}

	overallStatus := "healthy"
	statusCode := fiber.StatusOK
	for _, status := range checks {
		if status == "unhealthy" {
			overallStatus = "degraded"
			statusCode = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (h *HealthHandler) checkDatabase() string {
	if h.db == nil {
		return "disabled"
	}
	if err := h.db.Ping(); err != nil {
		return "unhealthy"
	}
	return "healthy"
}

func (h *HealthHandler) checkRedis() string {
	if h.redisClient == nil {
		return "disabled"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		return "unhealthy"
	}
	return "healthy"
}
