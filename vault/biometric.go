package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/lumenpay/lumenvault/core"
	"github.com/stellar/go/keypair"
)

const biometricReason = "Unlock your LumenVault wallet"

func (v *Vault) biometricAvailable(ctx context.Context) error {
	if v.biometric == nil {
		return core.ErrBiometricUnavailable
	}
	ok, err := v.biometric.Available(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrBiometricUnavailable, err)
	}
	if !ok {
		return core.ErrBiometricUnavailable
	}
	return nil
}

// EnableBiometric opts walletID into biometric unlock. The passphrase is
// checked and the seed is stored sealed by the biometric key.
func (v *Vault) EnableBiometric(ctx context.Context, walletID, passphrase string) error {
	if err := v.biometricAvailable(ctx); err != nil {
		return err
	}

	record, err := v.record(ctx, walletID)
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrInvalidPassphrase
	} else if err != nil {
		return err
	}

	seed, err := v.open(ctx, record, passphrase)
	if err != nil {
		return err
	}
	defer clear(seed[:])

	sealed, err := v.biometric.Seal(ctx, seed[:])
	if err != nil {
		return err
	}
	return v.put(ctx, biometricPrefix+walletID, sealed)
}

// DisableBiometric removes the sealed seed
func (v *Vault) DisableBiometric(ctx context.Context, walletID string) error {
	return v.del(ctx, biometricPrefix+walletID)
}

// BiometricEnabled reports whether walletID has opted in
func (v *Vault) BiometricEnabled(ctx context.Context, walletID string) (bool, error) {
	_, err := v.keychain.Get(ctx, biometricPrefix+walletID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// UnlockWithBiometric prompts the user and opens a session without a
// passphrase. A cancelled prompt leaves sessions untouched.
func (v *Vault) UnlockWithBiometric(ctx context.Context, walletID string) (Session, error) {
	if err := v.biometricAvailable(ctx); err != nil {
		return Session{}, err
	}

	sealed, err := v.keychain.Get(ctx, biometricPrefix+walletID)
	if errors.Is(err, core.ErrNotFound) {
		return Session{}, core.ErrBiometricUnavailable
	} else if err != nil {
		return Session{}, err
	}

	plain, err := v.biometric.Open(ctx, biometricReason, sealed)
	if cerr := ctx.Err(); cerr != nil {
		clear(plain)
		return Session{}, cerr
	}
	if err != nil {
		if errors.Is(err, core.ErrBiometricCancelled) || errors.Is(err, core.ErrBiometricAuthFailed) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("%w: %v", core.ErrBiometricAuthFailed, err)
	}

	var seed [32]byte
	defer clear(seed[:])
	if len(plain) != len(seed) {
		clear(plain)
		return Session{}, core.ErrBiometricAuthFailed
	}
	copy(seed[:], plain)
	clear(plain)

	kp, err := keypair.FromRawSeed(seed)
	if err != nil || kp.Address() != walletID {
		return Session{}, core.ErrBiometricAuthFailed
	}
	return v.startSession(walletID, seed), nil
}
