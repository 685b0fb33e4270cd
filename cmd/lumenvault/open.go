package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/lumenpay/lumenvault/adapters/biometric"
	"github.com/lumenpay/lumenvault/adapters/horizon"
	"github.com/lumenpay/lumenvault/adapters/keychain"
	"github.com/lumenpay/lumenvault/ports"
	"github.com/lumenpay/lumenvault/vault"
	"github.com/rs/zerolog/log"
)

const deviceKeyEnv = "LUMENVAULT_DEVICE_KEY"

// openVault loads settings first so the vault signs for the configured network
func openVault(ctx context.Context, flags *globalFlags) (*vault.Vault, vault.Settings, error) {
	kc, err := keychain.NewFileKeychain(flags.dir)
	if err != nil {
		return nil, vault.Settings{}, err
	}

	settings, err := vault.New(kc, nil, vault.Config{}).LoadSettings(ctx)
	if err != nil {
		return nil, vault.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	passphrase, err := horizon.NetworkPassphrase(settings.Network)
	if err != nil {
		return nil, vault.Settings{}, err
	}

	v := vault.New(kc, deviceAuthenticator(), vault.Config{
		AutoLock:          time.Duration(settings.AutoLockMinutes) * time.Minute,
		NetworkPassphrase: passphrase,
	})
	log.Debug().Str("dir", flags.dir).Str("network", settings.Network).Msg("vault opened")
	return v, settings, nil
}

func deviceAuthenticator() ports.Biometric {
	raw := os.Getenv(deviceKeyEnv)
	if raw == "" {
		return biometric.Unavailable{}
	}
	dk, err := biometric.ParseDeviceKey(raw, confirm)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring device key")
		return biometric.Unavailable{}
	}
	return dk
}

// walletID resolves --wallet, falling back to the primary wallet
func walletID(ctx context.Context, v *vault.Vault, flags *globalFlags) (string, error) {
	if flags.wallet != "" {
		return flags.wallet, nil
	}
	return v.Primary(ctx)
}

// unlock opens a signing session for id
func unlock(ctx context.Context, v *vault.Vault, flags *globalFlags, id string) (vault.Session, error) {
	if flags.device {
		return v.UnlockWithBiometric(ctx, id)
	}
	p, err := passphrase(fmt.Sprintf("Passphrase for %s: ", short(id)))
	if err != nil {
		return vault.Session{}, err
	}
	return v.Unlock(ctx, id, p)
}

func short(publicKey string) string {
	if len(publicKey) <= 12 {
		return publicKey
	}
	return publicKey[:6] + "..." + publicKey[len(publicKey)-6:]
}
