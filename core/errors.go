package core

import "errors"

var (
	// Validation
	ErrInvalidPublicKey = errors.New("invalid public key")
	ErrInvalidKeyFormat = errors.New("invalid secret key format")
	ErrWeakPassphrase   = errors.New("passphrase must not be empty")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidAsset     = errors.New("invalid asset")
	ErrInvalidMemo      = errors.New("invalid memo")
	ErrInvalidSettings  = errors.New("invalid settings")
	ErrWalletExists     = errors.New("wallet already stored")
	ErrAccountNotFound  = errors.New("account not found on network")

	// Authentication
	ErrNonceNotFound    = errors.New("nonce not found")
	ErrNonceMismatch    = errors.New("nonce mismatch")
	ErrNonceExpired     = errors.New("nonce expired")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token has expired")

	// Cryptographic
	ErrInvalidPassphrase    = errors.New("invalid passphrase")
	ErrMalformedTransaction = errors.New("malformed transaction")

	// Storage
	ErrNotFound     = errors.New("not found")
	ErrStorageWrite = errors.New("secure storage write failed")
	ErrStore        = errors.New("store operation failed")

	// Session
	ErrSessionExpired       = errors.New("session expired")
	ErrBiometricUnavailable = errors.New("biometric authentication unavailable")
	ErrBiometricAuthFailed  = errors.New("biometric authentication failed")
	ErrBiometricCancelled   = errors.New("biometric prompt cancelled")

	// Network
	ErrTransactionRejected = errors.New("transaction rejected by network")
	ErrNetwork             = errors.New("network request failed")
)

// Kind groups errors by how callers are expected to react to them
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindCryptographic
	KindStorage
	KindSession
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindCryptographic:
		return "cryptographic"
	case KindStorage:
		return "storage"
	case KindSession:
		return "session"
	case KindNetwork:
		return "network"
	default:
		return "internal"
	}
}

var kinds = []struct {
	kind Kind
	errs []error
}{
	{KindValidation, []error{ErrInvalidPublicKey, ErrInvalidKeyFormat, ErrWeakPassphrase, ErrInvalidAmount, ErrInvalidAsset, ErrInvalidMemo, ErrInvalidSettings, ErrWalletExists, ErrAccountNotFound}},
	{KindAuthentication, []error{ErrNonceNotFound, ErrNonceMismatch, ErrNonceExpired, ErrInvalidSignature, ErrInvalidToken, ErrTokenExpired}},
	{KindCryptographic, []error{ErrInvalidPassphrase, ErrMalformedTransaction}},
	{KindSession, []error{ErrSessionExpired, ErrBiometricUnavailable, ErrBiometricAuthFailed, ErrBiometricCancelled}},
	{KindStorage, []error{ErrNotFound, ErrStorageWrite, ErrStore}},
	{KindNetwork, []error{ErrTransactionRejected, ErrNetwork}},
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, group := range kinds {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.kind
			}
		}
	}
	return KindInternal
}

// Retryable reports whether the caller may retry the failed operation.
// Only storage and network failures qualify.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindStorage, KindNetwork:
		return !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrTransactionRejected)
	default:
		return false
	}
}
