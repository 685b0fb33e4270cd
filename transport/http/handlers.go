package http

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumenpay/lumenvault/service"
	"github.com/rs/zerolog/log"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService  *service.AuthService
	metrics      *Metrics
	cleanupToken string
}

// NewAuthHandlers creates new auth handlers. An empty cleanupToken leaves
// the cleanup route open.
func NewAuthHandlers(authService *service.AuthService, metrics *Metrics, cleanupToken string) *AuthHandlers {
	return &AuthHandlers{
		authService:  authService,
		metrics:      metrics,
		cleanupToken: cleanupToken,
	}
}

type nonceResponse struct {
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expiresAt"`
	Message   string    `json:"message"`
}

// Nonce issues a challenge for the publicKey query parameter
func (h *AuthHandlers) Nonce(c *gin.Context) {
	var req struct {
		PublicKey string `form:"publicKey" binding:"required,stellar_pubkey"`
	}

	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Stellar public key"})
		return
	}

	challenge, err := h.authService.RequestNonce(c.Request.Context(), req.PublicKey)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.metrics.nonceIssued()

	c.JSON(http.StatusOK, nonceResponse{
		Nonce:     challenge.Nonce,
		ExpiresAt: challenge.ExpiresAt,
		Message:   challenge.Message,
	})
}

type verifyRequest struct {
	PublicKey string `json:"publicKey" binding:"required,stellar_pubkey"`
	Signature string `json:"signature" binding:"required"`
	Nonce     string `json:"nonce" binding:"required"`
}

type userResponse struct {
	ID        string `json:"id"`
	PublicKey string `json:"publicKey"`
	IsNew     bool   `json:"isNew"`
}

type verifyResponse struct {
	Success   bool         `json:"success"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

// Verify checks the signed nonce and issues a session token
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.authService.Authenticate(c.Request.Context(), req.PublicKey, req.Signature, req.Nonce)
	h.metrics.verified(err)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, verifyResponse{
		Success:   true,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User: userResponse{
			ID:        result.User.ID,
			PublicKey: result.User.PublicKey,
			IsNew:     result.IsNew,
		},
	})
}

// Cleanup removes expired nonces. Schedulers call it when no in-process
// ticker runs.
func (h *AuthHandlers) Cleanup(c *gin.Context) {
	if h.cleanupToken != "" {
		given := c.GetHeader("X-Cleanup-Token")
		if subtle.ConstantTimeCompare([]byte(given), []byte(h.cleanupToken)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
	}

	removed, err := h.authService.CleanupExpiredNonces(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("nonce cleanup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cleanup failed"})
		return
	}
	h.metrics.cleaned(removed)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"cleaned": removed,
	})
}

// Session describes the bearer's token
func (h *AuthHandlers) Session(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Identity not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"publicKey": identity.PublicKey,
		"userId":    identity.UserID,
		"expiresAt": identity.ExpiresAt,
	})
}
