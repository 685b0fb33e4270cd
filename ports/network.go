package ports

import (
	"context"

	"github.com/lumenpay/lumenvault/core"
)

// Network builds unsigned envelopes and relays signed ones to Horizon
type Network interface {
	Passphrase() string
	BuildPayment(ctx context.Context, payment core.Payment) (string, error)
	Submit(ctx context.Context, signedXDR string) (core.SubmitResult, error)
	Balances(ctx context.Context, publicKey string) (core.Balances, error)
}
