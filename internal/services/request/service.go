package request

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	requestIDLocalKey  = "request_id"
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 256
)

// BaseService provides request helpers shared by handlers
type BaseService struct{}

func NewBaseService() *BaseService {
	return &BaseService{}
}

func (s *BaseService) sanitizeRequestID(reqID string) string {
	sanitized := strings.TrimSpace(reqID)
	if len(sanitized) > maxRequestIDLength {
		sanitized = sanitized[:maxRequestIDLength]
	}
	return sanitized
}

// GetRequestID returns the request ID from locals or the X-Request-ID header,
// generating one when neither is set.
func (s *BaseService) GetRequestID(c *fiber.Ctx) string {
	if cachedID, ok := c.Locals(requestIDLocalKey).(string); ok && cachedID != "" {
		return cachedID
	}

	requestID := s.sanitizeRequestID(c.Get(requestIDHeader))
	if requestID == "" {
		requestID = s.GenerateRequestID()
	}

	c.Locals(requestIDLocalKey, requestID)
	return requestID
}

func (s *BaseService) GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

// Middleware assigns a request ID to every request and echoes it back.
func (s *BaseService) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(requestIDHeader, s.GetRequestID(c))
		return c.Next()
	}
}

// ParseKeyExpiry parses the client's cached credential expiry. An empty value
// means the client supplied none.
func (s *BaseService) ParseKeyExpiry(value string) (*time.Time, error) {
	if value == "" || value == "never" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
