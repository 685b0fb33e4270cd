package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lumenpay/lumenvault/core"
	"github.com/lumenpay/lumenvault/ports"
)

// WalletHandlers relay payments between clients and the Stellar network.
// Clients sign locally; the server never sees a secret key.
type WalletHandlers struct {
	network ports.Network
	metrics *Metrics
}

// NewWalletHandlers creates new wallet handlers
func NewWalletHandlers(network ports.Network, metrics *Metrics) *WalletHandlers {
	return &WalletHandlers{network: network, metrics: metrics}
}

type buildRequest struct {
	Destination string `json:"destination" binding:"required,stellar_pubkey"`
	Amount      string `json:"amount" binding:"required"`
	Asset       string `json:"asset" binding:"omitempty,oneof=native usdc"`
	Memo        string `json:"memo" binding:"max=28"`
}

// BuildTransaction returns an unsigned payment from the bearer's account
func (h *WalletHandlers) BuildTransaction(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Identity not found in context"})
		return
	}

	var req buildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	envelope, err := h.network.BuildPayment(c.Request.Context(), core.Payment{
		Source:      identity.PublicKey,
		Destination: req.Destination,
		Amount:      req.Amount,
		Asset:       req.Asset,
		Memo:        req.Memo,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction":       envelope,
		"networkPassphrase": h.network.Passphrase(),
	})
}

// SubmitTransaction relays a signed envelope to Horizon
func (h *WalletHandlers) SubmitTransaction(c *gin.Context) {
	var req struct {
		SignedXDR string `json:"signedXdr" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.network.Submit(c.Request.Context(), req.SignedXDR)
	h.metrics.submitted(err)
	if err != nil {
		var rejected *core.SubmitError
		if errors.As(err, &rejected) {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":           messageFor(err),
				"transactionCode": rejected.TransactionCode,
				"operationCodes":  rejected.OperationCodes,
			})
			return
		}
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"hash":    result.Hash,
		"ledger":  result.Ledger,
	})
}

// Balance reports the bearer's native, USDC and other asset balances
func (h *WalletHandlers) Balance(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Identity not found in context"})
		return
	}

	balances, err := h.network.Balances(c.Request.Context(), identity.PublicKey)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, balances)
}
