package response

import (
	"github.com/Egham-7/custom-endpoint-proxy/internal/models"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// BaseService renders JSON success and error responses
type BaseService struct{}

func NewBaseService() *BaseService {
	return &BaseService{}
}

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information. Type is the machine-readable tag
// clients use to decide whether to prompt for a key.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Error sends an error response with specified status, type, and code
func (s *BaseService) Error(c *fiber.Ctx, status int, message, errorType, code string) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Code:    code,
		},
	})
}

// AppError renders err with the status of its kind. Causes are logged, not returned.
func (s *BaseService) AppError(c *fiber.Ctx, err error, requestID string) error {
	sanitized := models.SanitizeError(err)
	status := sanitized.GetStatusCode()

	if status >= fiber.StatusInternalServerError {
		fiberlog.Errorf("[%s] %v", requestID, err)
	} else {
		fiberlog.Warnf("[%s] %v", requestID, err)
	}

	return s.Error(c, status, sanitized.Message, string(sanitized.Type), sanitized.Code)
}

// Success sends a 200 OK response with the provided data
func (s *BaseService) Success(c *fiber.Ctx, data any) error {
	return c.JSON(data)
}
