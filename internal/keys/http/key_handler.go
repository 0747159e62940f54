package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/tenantkeys/internal/httputil"
	"github.com/allisson/tenantkeys/internal/keys/http/dto"
	keysUsecase "github.com/allisson/tenantkeys/internal/keys/usecase"
)

// KeyHandler serves key administration: rotation, listing and destruction.
type KeyHandler struct {
	lifecycle keysUsecase.LifecycleUseCase
	logger    *slog.Logger
}

// NewKeyHandler creates a KeyHandler.
func NewKeyHandler(lifecycle keysUsecase.LifecycleUseCase, logger *slog.Logger) *KeyHandler {
	return &KeyHandler{
		lifecycle: lifecycle,
		logger:    logger,
	}
}

func (h *KeyHandler) parseKeyID(c *gin.Context) (uuid.UUID, bool) {
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid key id: must be a valid UUID"), h.logger)
		return uuid.Nil, false
	}
	return keyID, true
}

// RotateHandler replaces an ACTIVE key with a new version. Without force the call is a
// no-op until the rotation policy is due.
// POST /v1/encryption/keys/:id/rotate
func (h *KeyHandler) RotateHandler(c *gin.Context) {
	keyID, ok := h.parseKeyID(c)
	if !ok {
		return
	}

	var req dto.RotateKeyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.HandleBadRequestGin(c, err, h.logger)
			return
		}
	}

	ctx := c.Request.Context()
	siteID, _ := GetSiteID(ctx)

	output, err := h.lifecycle.Rotate(ctx, keysUsecase.RotateInput{
		SiteID:       siteID,
		PrincipalID:  GetPrincipalID(ctx),
		KeyID:        keyID,
		Force:        req.Force,
		BackupOldKey: req.BackupOldKey,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRotateOutputToResponse(output))
}

// ProcessRotationsHandler rotates every due ACTIVE key of the caller's site.
// Per-key failures are reported in the body, never as a request failure.
// POST /v1/encryption/rotations
func (h *KeyHandler) ProcessRotationsHandler(c *gin.Context) {
	ctx := c.Request.Context()
	siteID, _ := GetSiteID(ctx)

	report, err := h.lifecycle.ProcessAutomaticRotations(ctx, siteID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRotationReportToResponse(report))
}

// ListHandler returns key metadata for the caller's site.
// GET /v1/encryption/keys
func (h *KeyHandler) ListHandler(c *gin.Context) {
	ctx := c.Request.Context()
	siteID, _ := GetSiteID(ctx)

	keys, err := h.lifecycle.ListKeys(ctx, siteID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapKeysToListResponse(keys))
}

// DestroyHandler erases the material of a RETIRED key once its grace period has passed.
// DELETE /v1/encryption/keys/:id
func (h *KeyHandler) DestroyHandler(c *gin.Context) {
	keyID, ok := h.parseKeyID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	siteID, _ := GetSiteID(ctx)

	key, err := h.lifecycle.Destroy(ctx, keysUsecase.DestroyInput{
		SiteID:      siteID,
		PrincipalID: GetPrincipalID(ctx),
		KeyID:       keyID,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapKeyToResponse(key))
}
