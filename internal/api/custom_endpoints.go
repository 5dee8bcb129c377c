package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/auth"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/endpoint"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/request"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/response"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/stream"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/openai/openai-go/v2"
)

// ClientResolver resolves per-request clients for custom endpoints.
type ClientResolver interface {
	Resolve(ctx context.Context, req endpoint.ResolveRequest, overrides *models.ClientOptions) (*endpoint.Result, error)
	ListModels(ctx context.Context, req endpoint.ResolveRequest) ([]string, error)
}

// CustomEndpointHandler serves chat completions and model listings for
// user-configured, OpenAI-compatible endpoints.
type CustomEndpointHandler struct {
	resolver ClientResolver
	reqSvc   *request.BaseService
	respSvc  *response.BaseService
}

func NewCustomEndpointHandler(resolver ClientResolver, reqSvc *request.BaseService, respSvc *response.BaseService) *CustomEndpointHandler {
	return &CustomEndpointHandler{
		resolver: resolver,
		reqSvc:   reqSvc,
		respSvc:  respSvc,
	}
}

// Chat resolves a client for the requested endpoint and proxies the completion,
// streaming it as server-sent events when requested.
func (h *CustomEndpointHandler) Chat(c *fiber.Ctx) error {
	reqID := h.reqSvc.GetRequestID(c)

	userID, ok := auth.GetUserID(c)
	if !ok {
		return h.respSvc.Error(c, fiber.StatusUnauthorized, "authentication required",
			string(models.ErrorTypeAuthentication), "UNAUTHORIZED")
	}

	var req models.CustomChatRequest
	if err := c.BodyParser(&req); err != nil {
		return h.respSvc.AppError(c, models.NewValidationError("invalid request body", err), reqID)
	}
	if req.Endpoint == "" || len(req.Messages) == 0 {
		return h.respSvc.AppError(c, models.NewValidationError("endpoint and messages are required", nil), reqID)
	}

	expiresAt, err := h.reqSvc.ParseKeyExpiry(req.Key)
	if err != nil {
		return h.respSvc.AppError(c, models.NewValidationError("key must be an RFC 3339 timestamp", err), reqID)
	}

	fiberlog.Infof("[%s] chat request for custom endpoint %s", reqID, req.Endpoint)

	result, err := h.resolver.Resolve(c.UserContext(), endpoint.ResolveRequest{
		Endpoint:  req.Endpoint,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}, &models.ClientOptions{ModelOptions: req.ModelOptions()})
	if err != nil {
		return h.respSvc.AppError(c, err, reqID)
	}
	fiberlog.Debugf("[%s] resolved %s with key %s", reqID, req.Endpoint, keyFingerprint(result.APIKey))

	params := openai.ChatCompletionNewParams{Messages: req.Messages}

	if req.Stream {
		// The stream outlives the handler; client disconnects are detected by the writer.
		s := result.Client.ChatCompletionStream(context.Background(), params)
		return stream.HandleChat(c, s, reqID, result.Client.StreamRate())
	}

	resp, err := result.Client.ChatCompletion(c.UserContext(), params)
	if err != nil {
		return h.respSvc.AppError(c, models.NewProviderError(req.Endpoint, "completion request failed", err), reqID)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendString(resp.RawJSON())
}

// Models returns the models offered by a custom endpoint for the caller.
func (h *CustomEndpointHandler) Models(c *fiber.Ctx) error {
	reqID := h.reqSvc.GetRequestID(c)

	userID, ok := auth.GetUserID(c)
	if !ok {
		return h.respSvc.Error(c, fiber.StatusUnauthorized, "authentication required",
			string(models.ErrorTypeAuthentication), "UNAUTHORIZED")
	}

	name, err := url.PathUnescape(c.Params("endpoint"))
	if err != nil || name == "" {
		return h.respSvc.AppError(c, models.NewValidationError("invalid endpoint name", err), reqID)
	}

	ids, err := h.resolver.ListModels(c.UserContext(), endpoint.ResolveRequest{Endpoint: name, UserID: userID})
	if err != nil {
		return h.respSvc.AppError(c, err, reqID)
	}
	if ids == nil {
		ids = []string{}
	}

	return h.respSvc.Success(c, models.ModelListResponse{Endpoint: name, Models: ids})
}

// keyFingerprint identifies an API key in logs without revealing it.
func keyFingerprint(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:4])
}
