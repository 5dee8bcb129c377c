package api

import (
	"context"
	"errors"
	"time"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/auth"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/request"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/response"
	"github.com/Egham-7/custom-endpoint-proxy/internal/services/userkeys"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// KeyStore is the write side of per-user endpoint credentials.
type KeyStore interface {
	Update(ctx context.Context, userID, name string, values models.UserKeyValues, expiresAt *time.Time) error
	GetExpiry(ctx context.Context, userID, name string) (*time.Time, error)
	Delete(ctx context.Context, userID, name string) error
	DeleteAll(ctx context.Context, userID string) (int64, error)
}

type KeyHandler struct {
	store   KeyStore
	reqSvc  *request.BaseService
	respSvc *response.BaseService
}

func NewKeyHandler(store KeyStore, reqSvc *request.BaseService, respSvc *response.BaseService) *KeyHandler {
	return &KeyHandler{store: store, reqSvc: reqSvc, respSvc: respSvc}
}

func (h *KeyHandler) Update(c *fiber.Ctx) error {
	reqID := h.reqSvc.GetRequestID(c)
	userID, ok := auth.GetUserID(c)
	if !ok {
		return h.unauthorized(c)
	}

	var req models.UserKeyUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return h.respSvc.AppError(c, models.NewValidationError("invalid request body", err), reqID)
	}

	if err := h.store.Update(c.UserContext(), userID, req.Name, req.Value, req.ExpiresAt); err != nil {
		return h.respSvc.AppError(c, err, reqID)
	}

	fiberlog.Infof("[%s] stored key %s", reqID, req.Name)
	return c.SendStatus(fiber.StatusCreated)
}

// GetExpiry returns when the caller's key for ?name= expires.
func (h *KeyHandler) GetExpiry(c *fiber.Ctx) error {
	reqID := h.reqSvc.GetRequestID(c)
	userID, ok := auth.GetUserID(c)
	if !ok {
		return h.unauthorized(c)
	}

	name := c.Query("name")
	if name == "" {
		return h.respSvc.AppError(c, models.NewValidationError("name is required", nil), reqID)
	}

	expiresAt, err := h.store.GetExpiry(c.UserContext(), userID, name)
	if errors.Is(err, userkeys.ErrKeyNotFound) {
		return h.notFound(c, name)
	}
	if err != nil {
		return h.respSvc.AppError(c, err, reqID)
	}

	return h.respSvc.Success(c, models.UserKeyExpiryResponse{ExpiresAt: expiresAt})
}

func (h *KeyHandler) Delete(c *fiber.Ctx) error {
	reqID := h.reqSvc.GetRequestID(c)
	userID, ok := auth.GetUserID(c)
	if !ok {
		return h.unauthorized(c)
	}

	name := c.Params("name")
	err := h.store.Delete(c.UserContext(), userID, name)
	if errors.Is(err, userkeys.ErrKeyNotFound) {
		return h.notFound(c, name)
	}
	if err != nil {
		return h.respSvc.AppError(c, err, reqID)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteAll removes every key of the caller; it requires ?all=true.
func (h *KeyHandler) DeleteAll(c *fiber.Ctx) error {
	reqID := h.reqSvc.GetRequestID(c)
	userID, ok := auth.GetUserID(c)
	if !ok {
		return h.unauthorized(c)
	}

	if c.Query("all") != "true" {
		return h.respSvc.AppError(c, models.NewValidationError("set all=true to delete every key", nil), reqID)
	}

	n, err := h.store.DeleteAll(c.UserContext(), userID)
	if err != nil {
		return h.respSvc.AppError(c, err, reqID)
	}

	fiberlog.Infof("[%s] deleted %d keys", reqID, n)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *KeyHandler) unauthorized(c *fiber.Ctx) error {
	return h.respSvc.Error(c, fiber.StatusUnauthorized, "authentication required",
		string(models.ErrorTypeAuthentication), "UNAUTHORIZED")
}

func (h *KeyHandler) notFound(c *fiber.Ctx, name string) error {
	return h.respSvc.Error(c, fiber.StatusNotFound, "no key stored for "+name,
		string(models.ErrorTypeNotFound), "KEY_NOT_FOUND")
}
