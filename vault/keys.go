package vault

import (
	"fmt"
	"strings"

	"github.com/lumenpay/lumenvault/core"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
)

const keyLength = 56

// Keypair is a Stellar signing key that has not been handed to the vault yet
type Keypair struct {
	full *keypair.Full
}

// PublicKey returns the G... account address
func (k *Keypair) PublicKey() string {
	return k.full.Address()
}

// SecretKey returns the S... seed. Callers show it once for backup and
// drop it.
func (k *Keypair) SecretKey() string {
	return k.full.Seed()
}

// Generate creates a fresh random keypair. Nothing is persisted.
func Generate() (*Keypair, error) {
	full, err := keypair.Random()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return &Keypair{full: full}, nil
}

// Import parses an S... secret seed
func Import(secret string) (*Keypair, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) != keyLength || secret[0] != 'S' || !strkey.IsValidEd25519SecretSeed(secret) {
		return nil, core.ErrInvalidKeyFormat
	}
	full, err := keypair.ParseFull(secret)
	if err != nil {
		return nil, core.ErrInvalidKeyFormat
	}
	return &Keypair{full: full}, nil
}

// ValidPublicKey reports whether s is a well formed G... address
func ValidPublicKey(s string) bool {
	return len(s) == keyLength && s[0] == 'G' && strkey.IsValidEd25519PublicKey(s)
}

func (k *Keypair) rawSeed() ([32]byte, error) {
	var seed [32]byte
	raw, err := strkey.Decode(strkey.VersionByteSeed, k.full.Seed())
	if err != nil {
		return seed, core.ErrInvalidKeyFormat
	}
	copy(seed[:], raw)
	clear(raw)
	return seed, nil
}
