package tokenizer

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lumenpay/lumenvault/core"
	"github.com/lumenpay/lumenvault/ports"
)

const AudienceSession = "lumenpay:session"

// JWTTokenizer implements the Tokenizer interface using HS256 JWTs
type JWTTokenizer struct {
	secret []byte
	issuer string
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(secret []byte, issuer string) *JWTTokenizer {
	return &JWTTokenizer{secret: secret, issuer: issuer}
}

var _ ports.Tokenizer = (*JWTTokenizer)(nil)

// IdentityToToken signs a session token for identity
func (j *JWTTokenizer) IdentityToToken(identity core.Identity) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   identity.PublicKey,
			ID:        identity.TokenID,
			ExpiresAt: jwt.NewNumericDate(identity.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(identity.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
		PublicKey: identity.PublicKey,
		UserID:    identity.UserID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// TokenToIdentity parses and validates a session token
func (j *JWTTokenizer) TokenToIdentity(tokenStr string) (core.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	},
		jwt.WithAudience(AudienceSession),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return core.Identity{}, core.ErrTokenExpired
		}
		return core.Identity{}, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return core.Identity{}, core.ErrInvalidToken
	}
	if claims.PublicKey == "" || claims.PublicKey != claims.Subject || claims.UserID == "" {
		return core.Identity{}, fmt.Errorf("%w: missing wallet binding", core.ErrInvalidToken)
	}

	identity := core.Identity{
		TokenID:   claims.ID,
		PublicKey: claims.PublicKey,
		UserID:    claims.UserID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}

	return identity, nil
}
