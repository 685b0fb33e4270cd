package biometric

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lumenpay/lumenvault/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allow(ctx context.Context, reason string) (bool, error) { return true, nil }

func deny(ctx context.Context, reason string) (bool, error) { return false, nil }

func TestUnavailable(t *testing.T) {
	ctx := context.Background()
	ok, err := Unavailable{}.Available(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Unavailable{}.Seal(ctx, []byte("x"))
	assert.ErrorIs(t, err, core.ErrBiometricUnavailable)
}

func TestDeviceKeyRoundTrip(t *testing.T) {
	ctx := context.Background()
	hexKey := strings.Repeat("ab", 32)

	dk, err := ParseDeviceKey(hexKey, allow)
	require.NoError(t, err)

	sealed, err := dk.Seal(ctx, []byte("seed"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "seed")

	// a second instance with the same key opens the blob
	again, err := ParseDeviceKey(hexKey+"\n", allow)
	require.NoError(t, err)

	plain, err := again.Open(ctx, "unlock", sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("seed"), plain)

	other, err := ParseDeviceKey(strings.Repeat("cd", 32), allow)
	require.NoError(t, err)
	_, err = other.Open(ctx, "unlock", sealed)
	assert.ErrorIs(t, err, core.ErrBiometricAuthFailed)

	_, err = ParseDeviceKey("zz", allow)
	assert.Error(t, err)
}

func TestDeviceKeyPromptOutcomes(t *testing.T) {
	ctx := context.Background()
	key := make([]byte, 32)

	dk, err := NewDeviceKey(key, deny)
	require.NoError(t, err)
	sealed, err := dk.Seal(ctx, []byte("seed"))
	require.NoError(t, err)

	_, err = dk.Open(ctx, "unlock", sealed)
	assert.ErrorIs(t, err, core.ErrBiometricAuthFailed)

	broken, err := NewDeviceKey(key, func(ctx context.Context, reason string) (bool, error) {
		return false, errors.New("sensor error")
	})
	require.NoError(t, err)
	_, err = broken.Open(ctx, "unlock", sealed)
	assert.ErrorIs(t, err, core.ErrBiometricAuthFailed)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	waiting, err := NewDeviceKey(key, func(ctx context.Context, reason string) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	})
	require.NoError(t, err)
	_, err = waiting.Open(cancelled, "unlock", sealed)
	assert.ErrorIs(t, err, core.ErrBiometricCancelled)

	none, err := NewDeviceKey(key, nil)
	require.NoError(t, err)
	ok, err := none.Available(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewDeviceKeyRejectsShortKey(t *testing.T) {
	_, err := NewDeviceKey(make([]byte, 16), allow)
	assert.Error(t, err)
}
