package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lumenpay/lumenvault/core"
	"github.com/lumenpay/lumenvault/ports"
	"github.com/stellar/go/network"
)

const (
	walletPrefix    = "wallet/"
	biometricPrefix = "biometric/"
	primaryKey      = "pref/primary"
	settingsKey     = "pref/settings"

	// DefaultAutoLock is how long an unlocked session lasts
	DefaultAutoLock = 30 * time.Minute
)

// State is where a wallet sits in the vault lifecycle
type State int

const (
	StateNoWallet State = iota
	StateLocked
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	default:
		return "no_wallet"
	}
}

// Config tunes a Vault. Zero fields take defaults.
type Config struct {
	AutoLock          time.Duration
	NetworkPassphrase string
	KDF               KDFCost
}

// Vault keeps encrypted Stellar wallets in a keychain and hands out
// time-boxed signing sessions.
type Vault struct {
	keychain  ports.Keychain
	biometric ports.Biometric

	network string
	kdf     KDFCost
	now     func() time.Time

	mu       sync.Mutex
	autoLock time.Duration
	sessions map[string]*unlocked
}

// New creates a vault over kc. A nil biometric disables the biometric path.
func New(kc ports.Keychain, biometric ports.Biometric, cfg Config) *Vault {
	if cfg.AutoLock <= 0 {
		cfg.AutoLock = DefaultAutoLock
	}
	if cfg.NetworkPassphrase == "" {
		cfg.NetworkPassphrase = network.TestNetworkPassphrase
	}
	if cfg.KDF == (KDFCost{}) {
		cfg.KDF = DefaultKDFCost
	}

	return &Vault{
		keychain:  kc,
		biometric: biometric,
		network:   cfg.NetworkPassphrase,
		kdf:       cfg.KDF,
		now:       time.Now,
		autoLock:  cfg.AutoLock,
		sessions:  make(map[string]*unlocked),
	}
}

// NetworkPassphrase returns the network transactions are signed for
func (v *Vault) NetworkPassphrase() string {
	return v.network
}

// EncryptAndStore seals kp under passphrase and writes it to the keychain.
// The first stored wallet becomes the primary one. A wallet that is already
// stored is rejected with ErrWalletExists; use ChangePassphrase to re-key it.
func (v *Vault) EncryptAndStore(ctx context.Context, kp *Keypair, passphrase string) (core.EncryptedWallet, error) {
	if passphrase == "" {
		return core.EncryptedWallet{}, core.ErrWeakPassphrase
	}

	switch _, err := v.record(ctx, kp.PublicKey()); {
	case err == nil:
		return core.EncryptedWallet{}, fmt.Errorf("%w: %s", core.ErrWalletExists, kp.PublicKey())
	case !errors.Is(err, core.ErrNotFound):
		return core.EncryptedWallet{}, err
	}

	seed, err := kp.rawSeed()
	if err != nil {
		return core.EncryptedWallet{}, err
	}
	defer clear(seed[:])

	record, err := v.seal(ctx, seed, kp.PublicKey(), passphrase, v.now())
	if err != nil {
		return core.EncryptedWallet{}, err
	}
	if err := v.putRecord(ctx, record); err != nil {
		return core.EncryptedWallet{}, err
	}

	if _, err := v.Primary(ctx); errors.Is(err, core.ErrNotFound) {
		if err := v.put(ctx, primaryKey, []byte(record.PublicKey)); err != nil {
			return core.EncryptedWallet{}, err
		}
	}
	return record, nil
}

// Unlock decrypts the wallet and opens a session. An unknown wallet costs
// the same as a wrong passphrase and fails the same way.
func (v *Vault) Unlock(ctx context.Context, walletID, passphrase string) (Session, error) {
	record, err := v.record(ctx, walletID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		if _, err := v.dummyDerive(ctx, passphrase); err != nil {
			return Session{}, err
		}
		return Session{}, core.ErrInvalidPassphrase
	case err != nil:
		return Session{}, err
	}

	seed, err := v.open(ctx, record, passphrase)
	if err != nil {
		return Session{}, err
	}
	defer clear(seed[:])

	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	return v.startSession(walletID, seed), nil
}

// UnlockPrimary unlocks whichever wallet is marked primary
func (v *Vault) UnlockPrimary(ctx context.Context, passphrase string) (Session, error) {
	walletID, err := v.Primary(ctx)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return Session{}, err
	}
	return v.Unlock(ctx, walletID, passphrase)
}

// ChangePassphrase re-encrypts the wallet with a fresh salt and nonce
func (v *Vault) ChangePassphrase(ctx context.Context, walletID, oldPassphrase, newPassphrase string) error {
	if newPassphrase == "" {
		return core.ErrWeakPassphrase
	}

	record, err := v.record(ctx, walletID)
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrInvalidPassphrase
	} else if err != nil {
		return err
	}

	seed, err := v.open(ctx, record, oldPassphrase)
	if err != nil {
		return err
	}
	defer clear(seed[:])

	next, err := v.seal(ctx, seed, walletID, newPassphrase, record.CreatedAt)
	if err != nil {
		return err
	}
	return v.putRecord(ctx, next)
}

// Delete removes the wallet, its biometric blob and its session. The
// primary preference moves to another stored wallet if one is left.
func (v *Vault) Delete(ctx context.Context, walletID string) error {
	if _, err := v.record(ctx, walletID); err != nil {
		return err
	}

	v.Lock(walletID)

	// The biometric blob goes first so a failed delete never leaves a
	// sealed seed without its wallet record.
	if err := v.del(ctx, biometricPrefix+walletID); err != nil {
		return err
	}
	if err := v.del(ctx, walletPrefix+walletID); err != nil {
		return err
	}

	primary, err := v.Primary(ctx)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}
	if primary != walletID {
		return nil
	}

	remaining, err := v.Wallets(ctx)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		return v.del(ctx, primaryKey)
	}
	return v.put(ctx, primaryKey, []byte(remaining[0]))
}

// Wallets lists stored wallet IDs
func (v *Vault) Wallets(ctx context.Context) ([]string, error) {
	keys, err := v.keychain.Keys(ctx, walletPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, strings.TrimPrefix(key, walletPrefix))
	}
	return ids, nil
}

// Primary returns the preferred wallet ID or core.ErrNotFound
func (v *Vault) Primary(ctx context.Context) (string, error) {
	raw, err := v.keychain.Get(ctx, primaryKey)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// SetPrimary marks a stored wallet as primary
func (v *Vault) SetPrimary(ctx context.Context, walletID string) error {
	if _, err := v.record(ctx, walletID); err != nil {
		return err
	}
	return v.put(ctx, primaryKey, []byte(walletID))
}

// Status reports the lifecycle state of a wallet
func (v *Vault) Status(ctx context.Context, walletID string) (State, error) {
	if _, ok := v.Session(walletID); ok {
		return StateUnlocked, nil
	}
	_, err := v.record(ctx, walletID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return StateNoWallet, nil
	case err != nil:
		return StateNoWallet, err
	}
	return StateLocked, nil
}

// Record returns the stored encrypted wallet
func (v *Vault) Record(ctx context.Context, walletID string) (core.EncryptedWallet, error) {
	return v.record(ctx, walletID)
}

func (v *Vault) record(ctx context.Context, walletID string) (core.EncryptedWallet, error) {
	if !ValidPublicKey(walletID) {
		return core.EncryptedWallet{}, core.ErrNotFound
	}
	raw, err := v.keychain.Get(ctx, walletPrefix+walletID)
	if err != nil {
		return core.EncryptedWallet{}, err
	}

	var record core.EncryptedWallet
	if err := json.Unmarshal(raw, &record); err != nil {
		return core.EncryptedWallet{}, fmt.Errorf("%w: corrupt wallet record: %v", core.ErrStore, err)
	}
	if record.PublicKey != walletID {
		return core.EncryptedWallet{}, fmt.Errorf("%w: wallet record key mismatch", core.ErrStore)
	}
	return record, nil
}

func (v *Vault) putRecord(ctx context.Context, record core.EncryptedWallet) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %w", err)
	}
	return v.put(ctx, walletPrefix+record.PublicKey, raw)
}

func (v *Vault) put(ctx context.Context, key string, value []byte) error {
	if err := v.keychain.Put(ctx, key, value); err != nil {
		if errors.Is(err, core.ErrStorageWrite) {
			return err
		}
		return fmt.Errorf("%w: %w", core.ErrStorageWrite, err)
	}
	return nil
}

func (v *Vault) del(ctx context.Context, key string) error {
	if err := v.keychain.Delete(ctx, key); err != nil {
		if errors.Is(err, core.ErrStorageWrite) {
			return err
		}
		return fmt.Errorf("%w: %w", core.ErrStorageWrite, err)
	}
	return nil
}

// derive runs argon2id off the caller's goroutine so a cancelled context
// returns immediately.
func (v *Vault) derive(ctx context.Context, passphrase string, params core.KDFParams) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan []byte, 1)
	go func() {
		done <- deriveKey([]byte(passphrase), params)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case key := <-done:
		return key, nil
	}
}

func (v *Vault) dummyDerive(ctx context.Context, passphrase string) ([]byte, error) {
	params, err := newKDFParams(v.kdf)
	if err != nil {
		return nil, err
	}
	return v.derive(ctx, passphrase, params)
}

func (v *Vault) seal(ctx context.Context, seed [32]byte, publicKey, passphrase string, createdAt time.Time) (core.EncryptedWallet, error) {
	params, err := newKDFParams(v.kdf)
	if err != nil {
		return core.EncryptedWallet{}, err
	}
	key, err := v.derive(ctx, passphrase, params)
	if err != nil {
		return core.EncryptedWallet{}, err
	}
	defer clear(key)

	return sealSeed(key, seed, publicKey, params, createdAt)
}

func (v *Vault) open(ctx context.Context, record core.EncryptedWallet, passphrase string) ([32]byte, error) {
	if err := checkKDFParams(record.KDF); err != nil {
		if _, derr := v.dummyDerive(ctx, passphrase); derr != nil {
			return [32]byte{}, derr
		}
		return [32]byte{}, err
	}
	key, err := v.derive(ctx, passphrase, record.KDF)
	if err != nil {
		return [32]byte{}, err
	}
	defer clear(key)

	return openSeed(key, record)
}
