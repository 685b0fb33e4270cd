package ports

import (
	"context"
	"time"

	"github.com/lumenpay/lumenvault/core"
)

// NonceStore keeps at most one live nonce per public key
type NonceStore interface {
	// Upsert replaces any nonce already stored for the public key
	Upsert(ctx context.Context, nonce core.Nonce) error

	// Get returns core.ErrNonceNotFound when no nonce is stored for the key
	Get(ctx context.Context, publicKey string) (core.Nonce, error)

	// Consume deletes the nonce only if its value still equals value.
	// It reports whether this call performed the delete.
	Consume(ctx context.Context, publicKey, value string) (bool, error)

	// DeleteExpired removes every nonce that expired before now
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// UserStore maps public keys to user records
type UserStore interface {
	// GetOrCreate returns the existing user for the public key, or stores
	// candidate and returns it with created set to true.
	GetOrCreate(ctx context.Context, candidate core.User) (user core.User, created bool, err error)
}
