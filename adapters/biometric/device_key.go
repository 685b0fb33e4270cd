package biometric

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/lumenpay/lumenvault/core"
	"github.com/lumenpay/lumenvault/ports"
)

// Prompt asks the user to confirm their presence. It returns false when the
// user rejected or failed the check.
type Prompt func(ctx context.Context, reason string) (bool, error)

// DeviceKey seals data under an AES key held outside the vault directory
// (hardware token, OS keyring) and releases it only after Prompt succeeds.
// It stands in for a platform authenticator such as a secure enclave key
// guarded by a fingerprint reader.
type DeviceKey struct {
	aead   cipher.AEAD
	prompt Prompt
}

// ParseDeviceKey decodes a hex encoded 32 byte key
func ParseDeviceKey(s string, prompt Prompt) (*DeviceKey, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("device key is not hex: %w", err)
	}
	defer clear(key)
	return NewDeviceKey(key, prompt)
}

// NewDeviceKey builds a DeviceKey from a 32 byte key
func NewDeviceKey(key []byte, prompt Prompt) (*DeviceKey, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("device key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return &DeviceKey{aead: aead, prompt: prompt}, nil
}

var _ ports.Biometric = (*DeviceKey)(nil)

func (d *DeviceKey) Available(ctx context.Context) (bool, error) {
	return d.prompt != nil, nil
}

// Seal does not prompt; enrolment is authorised by the vault passphrase
func (d *DeviceKey) Seal(ctx context.Context, data []byte) ([]byte, error) {
	nonce := make([]byte, d.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return d.aead.Seal(nonce, nonce, data, nil), nil
}

func (d *DeviceKey) Open(ctx context.Context, reason string, sealed []byte) ([]byte, error) {
	if d.prompt == nil {
		return nil, core.ErrBiometricUnavailable
	}

	ok, err := d.prompt(ctx, reason)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil, core.ErrBiometricCancelled
		}
		return nil, fmt.Errorf("%w: %v", core.ErrBiometricAuthFailed, err)
	}
	if !ok {
		return nil, core.ErrBiometricAuthFailed
	}

	size := d.aead.NonceSize()
	if len(sealed) < size {
		return nil, core.ErrBiometricAuthFailed
	}
	plain, err := d.aead.Open(nil, sealed[:size], sealed[size:], nil)
	if err != nil {
		return nil, core.ErrBiometricAuthFailed
	}
	return plain, nil
}
