package lumenvault

import (
	"context"
	"time"

	"github.com/lumenpay/lumenvault/vault"
)

// Client represents the public interface for interacting with the LumenPay API
type Client interface {
	// RequestNonce asks the server for a challenge bound to publicKey
	RequestNonce(ctx context.Context, publicKey string) (Challenge, error)

	// Verify submits a signed challenge and stores the returned session token
	Verify(ctx context.Context, publicKey, signature, nonce string) (Login, error)

	// Login runs the full challenge flow, signing locally with signer
	Login(ctx context.Context, signer Signer, walletID string) (Login, error)

	// Session describes the current session token
	Session(ctx context.Context) (SessionInfo, error)

	// Balances returns the session account's balances
	Balances(ctx context.Context) (Balances, error)

	// BuildPayment asks the relay for an unsigned payment from the session's account
	BuildPayment(ctx context.Context, payment PaymentRequest) (UnsignedTransaction, error)

	// Submit relays a signed envelope to the network
	Submit(ctx context.Context, signedXDR string) (Submission, error)

	// Pay builds, signs locally and submits a payment
	Pay(ctx context.Context, signer Signer, walletID string, payment PaymentRequest) (Submission, error)
}

// Signer signs with a locally held key. *vault.Vault implements it.
type Signer interface {
	NetworkPassphrase() string
	SignMessage(walletID, message string) (vault.SignedMessage, error)
	SignTransaction(walletID, envelope string) (vault.SignedTransaction, error)
}

// Challenge is the server's nonce for a public key
type Challenge struct {
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expiresAt"`
	Message   string    `json:"message"`
}

// Login is the result of a successful verify
type Login struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      struct {
		ID        string `json:"id"`
		PublicKey string `json:"publicKey"`
		IsNew     bool   `json:"isNew"`
	} `json:"user"`
}

// SessionInfo mirrors GET /api/session
type SessionInfo struct {
	PublicKey string    `json:"publicKey"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Balances mirrors GET /api/wallet/balance
type Balances struct {
	Native string `json:"native"`
	USDC   string `json:"usdc"`
	Assets []struct {
		Code    string `json:"code"`
		Issuer  string `json:"issuer"`
		Balance string `json:"balance"`
	} `json:"assets"`
}

// PaymentRequest describes a payment to build
type PaymentRequest struct {
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
	Asset       string `json:"asset,omitempty"`
	Memo        string `json:"memo,omitempty"`
}

// UnsignedTransaction is an envelope built by the relay
type UnsignedTransaction struct {
	Transaction       string `json:"transaction"`
	NetworkPassphrase string `json:"networkPassphrase"`
}

// Submission is the network's answer to a relayed envelope
type Submission struct {
	Hash   string `json:"hash"`
	Ledger int32  `json:"ledger"`
}
