package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	"github.com/allisson/tenantkeys/internal/httputil"
	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
	"github.com/allisson/tenantkeys/internal/keys/http/dto"
	keysUsecase "github.com/allisson/tenantkeys/internal/keys/usecase"
	customValidation "github.com/allisson/tenantkeys/internal/validation"
)

// EncryptionHandler serves encrypt and decrypt for the caller's tenant.
type EncryptionHandler struct {
	lifecycle keysUsecase.LifecycleUseCase
	logger    *slog.Logger
}

// NewEncryptionHandler creates an EncryptionHandler.
func NewEncryptionHandler(lifecycle keysUsecase.LifecycleUseCase, logger *slog.Logger) *EncryptionHandler {
	return &EncryptionHandler{
		lifecycle: lifecycle,
		logger:    logger,
	}
}

// EncryptHandler encrypts base64 data under the site's ACTIVE key for the purpose,
// creating the key on first use.
// POST /v1/encryption/encrypt
func (h *EncryptionHandler) EncryptHandler(c *gin.Context) {
	var req dto.EncryptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	plaintext, err := req.Plaintext()
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	defer cryptoDomain.Zero(plaintext)

	ctx := c.Request.Context()
	siteID, _ := GetSiteID(ctx)

	output, err := h.lifecycle.Encrypt(ctx, keysUsecase.EncryptInput{
		SiteID:      siteID,
		PrincipalID: GetPrincipalID(ctx),
		Purpose:     keysDomain.Purpose(req.Purpose),
		Plaintext:   plaintext,
		Metadata:    req.Metadata,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEncryptOutputToResponse(output))
}

// DecryptHandler decrypts a blob produced by EncryptHandler.
// POST /v1/encryption/decrypt
func (h *EncryptionHandler) DecryptHandler(c *gin.Context) {
	var req dto.DecryptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	ctx := c.Request.Context()
	siteID, _ := GetSiteID(ctx)

	output, err := h.lifecycle.Decrypt(ctx, keysUsecase.DecryptInput{
		SiteID:        siteID,
		PrincipalID:   GetPrincipalID(ctx),
		KeyID:         req.ParsedKeyID(),
		EncryptedData: req.EncryptedData,
	})
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	// SECURITY: zero plaintext once the response has been serialized
	defer cryptoDomain.Zero(output.Plaintext)

	c.JSON(http.StatusOK, dto.MapDecryptOutputToResponse(output))
}
