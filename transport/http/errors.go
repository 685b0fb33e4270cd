package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lumenpay/lumenvault/core"
)

var kindStatus = map[core.Kind]int{
	core.KindValidation:     http.StatusBadRequest,
	core.KindAuthentication: http.StatusUnauthorized,
	core.KindCryptographic:  http.StatusBadRequest,
	core.KindStorage:        http.StatusInternalServerError,
	core.KindSession:        http.StatusUnauthorized,
	core.KindNetwork:        http.StatusBadGateway,
	core.KindInternal:       http.StatusInternalServerError,
}

// statusFor maps an error to its HTTP status by kind
func statusFor(err error) int {
	if errors.Is(err, core.ErrAccountNotFound) {
		return http.StatusNotFound
	}
	return kindStatus[core.KindOf(err)]
}

// messageFor returns the client-facing text. Internal and storage details
// never leave the process.
func messageFor(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidPublicKey):
		return "Invalid Stellar public key"
	case errors.Is(err, core.ErrNonceNotFound):
		return "Nonce not found. Request a new one."
	case errors.Is(err, core.ErrNonceMismatch):
		return "Nonce mismatch"
	case errors.Is(err, core.ErrNonceExpired):
		return "Nonce expired. Request a new one."
	case errors.Is(err, core.ErrInvalidSignature):
		return "Invalid signature"
	case errors.Is(err, core.ErrTokenExpired):
		return "Token expired"
	case errors.Is(err, core.ErrInvalidToken):
		return "Invalid token"
	case errors.Is(err, core.ErrInvalidAmount):
		return "Invalid amount"
	case errors.Is(err, core.ErrInvalidAsset):
		return "Invalid asset"
	case errors.Is(err, core.ErrInvalidMemo):
		return "Invalid memo"
	case errors.Is(err, core.ErrAccountNotFound):
		return "Account not found"
	case errors.Is(err, core.ErrMalformedTransaction):
		return "Invalid transaction"
	case errors.Is(err, core.ErrTransactionRejected):
		return "Transaction rejected"
	case errors.Is(err, core.ErrNetwork):
		return "Stellar network unavailable"
	default:
		return "Internal server error"
	}
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": messageFor(err)})
}
