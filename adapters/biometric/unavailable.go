package biometric

import (
	"context"

	"github.com/lumenpay/lumenvault/core"
	"github.com/lumenpay/lumenvault/ports"
)

// Unavailable is used on hosts with no biometric hardware
type Unavailable struct{}

var _ ports.Biometric = Unavailable{}

func (Unavailable) Available(ctx context.Context) (bool, error) {
	return false, nil
}

func (Unavailable) Seal(ctx context.Context, data []byte) ([]byte, error) {
	return nil, core.ErrBiometricUnavailable
}

func (Unavailable) Open(ctx context.Context, reason string, sealed []byte) ([]byte, error) {
	return nil, core.ErrBiometricUnavailable
}
