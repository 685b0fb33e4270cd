package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lumenpay/lumenvault/core"
)

// Settings are the user's vault preferences
type Settings struct {
	AutoLockMinutes int    `json:"autoLockMinutes"`
	Network         string `json:"network"` // testnet or public
}

// DefaultSettings is what a fresh device starts with
var DefaultSettings = Settings{AutoLockMinutes: int(DefaultAutoLock / time.Minute), Network: "testnet"}

// LoadSettings reads stored preferences, falling back to DefaultSettings.
// The auto-lock window is applied to the vault.
func (v *Vault) LoadSettings(ctx context.Context) (Settings, error) {
	raw, err := v.keychain.Get(ctx, settingsKey)
	if errors.Is(err, core.ErrNotFound) {
		return DefaultSettings, nil
	} else if err != nil {
		return Settings{}, err
	}

	settings := DefaultSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return Settings{}, fmt.Errorf("%w: corrupt settings: %v", core.ErrStore, err)
	}
	v.SetAutoLock(time.Duration(settings.AutoLockMinutes) * time.Minute)
	return settings, nil
}

// SaveSettings persists preferences and applies the auto-lock window
func (v *Vault) SaveSettings(ctx context.Context, settings Settings) error {
	if settings.AutoLockMinutes <= 0 {
		return fmt.Errorf("%w: auto-lock must be at least one minute", core.ErrInvalidSettings)
	}
	switch settings.Network {
	case "testnet", "public":
	default:
		return fmt.Errorf("%w: unknown network %q", core.ErrInvalidSettings, settings.Network)
	}

	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := v.put(ctx, settingsKey, raw); err != nil {
		return err
	}
	v.SetAutoLock(time.Duration(settings.AutoLockMinutes) * time.Minute)
	return nil
}
