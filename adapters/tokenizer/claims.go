package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines standard claims with the wallet binding
type SessionClaims struct {
	jwt.RegisteredClaims
	PublicKey string `json:"pk"`
	UserID    string `json:"uid"`
}
