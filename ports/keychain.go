package ports

import "context"

// Keychain is the platform secure storage the vault persists into.
// Get returns core.ErrNotFound for missing entries.
type Keychain interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Biometric fronts a platform key that can only be used after a successful
// biometric prompt.
type Biometric interface {
	// Available reports whether hardware is present and enrolled
	Available(ctx context.Context) (bool, error)

	// Seal encrypts data under the biometric-bound key
	Seal(ctx context.Context, data []byte) ([]byte, error)

	// Open prompts the user and decrypts sealed on success. It returns
	// core.ErrBiometricAuthFailed or core.ErrBiometricCancelled otherwise.
	Open(ctx context.Context, reason string, sealed []byte) ([]byte, error)
}
