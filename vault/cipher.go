package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/lumenpay/lumenvault/core"
	"github.com/stellar/go/keypair"
	"golang.org/x/crypto/argon2"
)

const (
	walletVersion = 1
	saltSize      = 16
	aesKeySize    = 32

	// records asking for more than 1 GiB are treated as tampered
	maxKDFMemory = 1 << 20
)

// KDFCost sets the argon2id work factors used for newly sealed wallets
type KDFCost struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKDFCost follows the RFC 9106 second recommended option
var DefaultKDFCost = KDFCost{Time: 3, Memory: 64 * 1024, Threads: 4}

func newKDFParams(cost KDFCost) (core.KDFParams, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return core.KDFParams{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	return core.KDFParams{
		Algo:    core.KDFArgon2id,
		Time:    cost.Time,
		Memory:  cost.Memory,
		Threads: cost.Threads,
		Salt:    salt,
	}, nil
}

func checkKDFParams(p core.KDFParams) error {
	if p.Algo != core.KDFArgon2id || p.Time == 0 || p.Threads == 0 ||
		p.Memory < 8*uint32(p.Threads) || p.Memory > maxKDFMemory || len(p.Salt) < 8 {
		return core.ErrInvalidPassphrase
	}
	return nil
}

func deriveKey(passphrase []byte, p core.KDFParams) []byte {
	return argon2.IDKey(passphrase, p.Salt, p.Time, p.Memory, p.Threads, aesKeySize)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// sealSeed encrypts the raw seed under key. The public key is bound as
// additional data so a blob cannot be moved to another wallet entry.
func sealSeed(key []byte, seed [32]byte, publicKey string, kdf core.KDFParams, createdAt time.Time) (core.EncryptedWallet, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return core.EncryptedWallet{}, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return core.EncryptedWallet{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return core.EncryptedWallet{
		Version:    walletVersion,
		PublicKey:  publicKey,
		KDF:        kdf,
		Nonce:      nonce,
		CipherText: aead.Seal(nil, nonce, seed[:], []byte(publicKey)),
		CreatedAt:  createdAt.UTC(),
	}, nil
}

// openSeed reverses sealSeed. Every failure is reported as
// core.ErrInvalidPassphrase.
func openSeed(key []byte, w core.EncryptedWallet) ([32]byte, error) {
	var seed [32]byte
	if w.Version != walletVersion {
		return seed, core.ErrInvalidPassphrase
	}

	aead, err := newAEAD(key)
	if err != nil || len(w.Nonce) != aead.NonceSize() {
		return seed, core.ErrInvalidPassphrase
	}
	plain, err := aead.Open(nil, w.Nonce, w.CipherText, []byte(w.PublicKey))
	if err != nil || len(plain) != len(seed) {
		return seed, core.ErrInvalidPassphrase
	}
	copy(seed[:], plain)
	clear(plain)

	kp, err := keypair.FromRawSeed(seed)
	if err != nil || kp.Address() != w.PublicKey {
		clear(seed[:])
		return seed, core.ErrInvalidPassphrase
	}
	return seed, nil
}
