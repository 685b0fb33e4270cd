package core

import "time"

// KDFArgon2id names the only key derivation function written by the vault
const KDFArgon2id = "argon2id"

// KDFParams records how the wallet encryption key was derived from the passphrase
type KDFParams struct {
	Algo    string `json:"algo"`
	Time    uint32 `json:"t"`
	Memory  uint32 `json:"m"`
	Threads uint8  `json:"p"`
	Salt    []byte `json:"salt"`
}

// EncryptedWallet is the persisted form of a wallet. The secret seed only
// ever appears inside CipherText.
type EncryptedWallet struct {
	Version    int       `json:"version"`
	PublicKey  string    `json:"publicKey"`
	KDF        KDFParams `json:"kdf"`
	Nonce      []byte    `json:"nonce"`
	CipherText []byte    `json:"cipherText"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Payment describes an unsigned payment the relay builds for a client
type Payment struct {
	Source      string
	Destination string
	Amount      string
	Asset       string // "native" or "usdc"
	Memo        string
}

// AssetBalance is the holding of one issued asset
type AssetBalance struct {
	Code    string `json:"code"`
	Issuer  string `json:"issuer"`
	Balance string `json:"balance"`
}

// Balances summarises an account's holdings. Native and USDC are "0" when
// the account holds none.
type Balances struct {
	Native string         `json:"native"`
	USDC   string         `json:"usdc"`
	Assets []AssetBalance `json:"assets"`
}

// SubmitResult is what the network reports for an accepted envelope
type SubmitResult struct {
	Hash   string
	Ledger int32
}

// SubmitError carries the result codes of a rejected envelope
type SubmitError struct {
	TransactionCode string
	OperationCodes  []string
}

func (e *SubmitError) Error() string {
	return "transaction rejected: " + e.TransactionCode
}

func (e *SubmitError) Unwrap() error {
	return ErrTransactionRejected
}
