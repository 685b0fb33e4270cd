package tokenizer

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lumenpay/lumenvault/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGZ"

func newIdentity(ttl time.Duration) core.Identity {
	now := time.Now().Truncate(time.Second)
	return core.Identity{
		TokenID:   "jti-1",
		PublicKey: testKey,
		UserID:    "user-1",
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestRoundTrip(t *testing.T) {
	tk := NewJWTTokenizer([]byte("secret"), "lumenpay")
	identity := newIdentity(7 * 24 * time.Hour)

	token, err := tk.IdentityToToken(identity)
	require.NoError(t, err)

	got, err := tk.TokenToIdentity(token)
	require.NoError(t, err)
	assert.Equal(t, identity.PublicKey, got.PublicKey)
	assert.Equal(t, identity.UserID, got.UserID)
	assert.Equal(t, identity.TokenID, got.TokenID)
	assert.True(t, identity.ExpiresAt.Equal(got.ExpiresAt))
}

func TestExpiredToken(t *testing.T) {
	tk := NewJWTTokenizer([]byte("secret"), "lumenpay")
	identity := newIdentity(-time.Minute)

	token, err := tk.IdentityToToken(identity)
	require.NoError(t, err)

	_, err = tk.TokenToIdentity(token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestWrongSecret(t *testing.T) {
	token, err := NewJWTTokenizer([]byte("secret"), "lumenpay").IdentityToToken(newIdentity(time.Hour))
	require.NoError(t, err)

	_, err = NewJWTTokenizer([]byte("other"), "lumenpay").TokenToIdentity(token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestWrongIssuer(t *testing.T) {
	token, err := NewJWTTokenizer([]byte("secret"), "someone-else").IdentityToToken(newIdentity(time.Hour))
	require.NoError(t, err)

	_, err = NewJWTTokenizer([]byte("secret"), "lumenpay").TokenToIdentity(token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestRejectsUnboundToken(t *testing.T) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "lumenpay",
			Subject:   testKey,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewJWTTokenizer([]byte("secret"), "lumenpay").TokenToIdentity(token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestRejectsNoneAlgorithm(t *testing.T) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "lumenpay",
			Subject:   testKey,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
		PublicKey: testKey,
		UserID:    "user-1",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTTokenizer([]byte("secret"), "lumenpay").TokenToIdentity(token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}
