package vault

import (
	"encoding/base64"
	"fmt"

	"github.com/lumenpay/lumenvault/core"
	"github.com/stellar/go/txnbuild"
)

// SignedMessage is a detached signature over a UTF-8 message
type SignedMessage struct {
	PublicKey string `json:"publicKey"`
	Message   string `json:"message"`
	Signature string `json:"signature"` // base64
}

// SignedTransaction is a signed base64 envelope and its network hash
type SignedTransaction struct {
	Envelope string `json:"envelope"`
	Hash     string `json:"hash"`
}

// Sign signs payload with the wallet's key. It needs a live session.
func (v *Vault) Sign(walletID string, payload []byte) ([]byte, error) {
	kp, ok := v.signer(walletID)
	if !ok {
		return nil, core.ErrSessionExpired
	}
	sig, err := kp.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return sig, nil
}

// SignMessage signs the UTF-8 bytes of message, as the auth nonce flow expects
func (v *Vault) SignMessage(walletID, message string) (SignedMessage, error) {
	sig, err := v.Sign(walletID, []byte(message))
	if err != nil {
		return SignedMessage{}, err
	}
	return SignedMessage{
		PublicKey: walletID,
		Message:   message,
		Signature: base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// SignTransaction adds the wallet's signature to a base64 XDR envelope.
// Fee bump envelopes are signed on the outer transaction.
func (v *Vault) SignTransaction(walletID, envelope string) (SignedTransaction, error) {
	kp, ok := v.signer(walletID)
	if !ok {
		return SignedTransaction{}, core.ErrSessionExpired
	}

	gtx, err := txnbuild.TransactionFromXDR(envelope)
	if err != nil {
		return SignedTransaction{}, core.ErrMalformedTransaction
	}

	if tx, ok := gtx.Transaction(); ok {
		signed, err := tx.Sign(v.network, kp)
		if err != nil {
			return SignedTransaction{}, core.ErrMalformedTransaction
		}
		return encodeSigned(signed.Base64, func() (string, error) { return signed.HashHex(v.network) })
	}
	if fb, ok := gtx.FeeBump(); ok {
		signed, err := fb.Sign(v.network, kp)
		if err != nil {
			return SignedTransaction{}, core.ErrMalformedTransaction
		}
		return encodeSigned(signed.Base64, func() (string, error) { return signed.HashHex(v.network) })
	}
	return SignedTransaction{}, core.ErrMalformedTransaction
}

func encodeSigned(envelope, hash func() (string, error)) (SignedTransaction, error) {
	b64, err := envelope()
	if err != nil {
		return SignedTransaction{}, fmt.Errorf("failed to encode transaction: %w", err)
	}
	h, err := hash()
	if err != nil {
		return SignedTransaction{}, fmt.Errorf("failed to hash transaction: %w", err)
	}
	return SignedTransaction{Envelope: b64, Hash: h}, nil
}
