package core

import "time"

// Nonce is an outstanding authentication challenge for a public key
type Nonce struct {
	PublicKey string    // Stellar account the challenge was issued to
	Value     string    // Random hex string the client must sign
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge stops being accepted
}

// Expired reports whether the nonce is past its expiry at the given time
func (n Nonce) Expired(now time.Time) bool {
	return now.After(n.ExpiresAt)
}

// User is the server-side record bound to a verified public key
type User struct {
	ID        string
	PublicKey string
	CreatedAt time.Time
}

// Identity is what a valid session token asserts about its bearer
type Identity struct {
	TokenID   string
	PublicKey string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
