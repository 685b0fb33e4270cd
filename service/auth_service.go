package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lumenpay/lumenvault/core"
	"github.com/lumenpay/lumenvault/ports"
	"github.com/rs/zerolog/log"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
)

const (
	DefaultNonceTTL = 10 * time.Minute
	DefaultTokenTTL = 7 * 24 * time.Hour // 7 days

	nonceBytes = 32

	// MessagePrefix precedes the nonce in the text shown to the user
	MessagePrefix = "Sign this nonce with your wallet to authenticate: "
)

// NonceChallenge is returned to a client asking to authenticate
type NonceChallenge struct {
	Nonce     string
	ExpiresAt time.Time
	Message   string
}

// LoginResult is the outcome of a successful Authenticate call
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      core.User
	IsNew     bool
}

// AuthService handles authentication business logic
type AuthService struct {
	tokenizer ports.Tokenizer
	nonces    ports.NonceStore
	users     ports.UserStore
	eventPub  ports.EventPublisher

	nonceTTL time.Duration
	tokenTTL time.Duration
	now      func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(
	tokenizer ports.Tokenizer,
	nonces ports.NonceStore,
	users ports.UserStore,
	eventPub ports.EventPublisher,
) *AuthService {
	return &AuthService{
		tokenizer: tokenizer,
		nonces:    nonces,
		users:     users,
		eventPub:  eventPub,
		nonceTTL:  DefaultNonceTTL,
		tokenTTL:  DefaultTokenTTL,
		now:       time.Now,
	}
}

// WithTTLs overrides the nonce and token lifetimes. Zero keeps the default.
func (s *AuthService) WithTTLs(nonceTTL, tokenTTL time.Duration) *AuthService {
	if nonceTTL > 0 {
		s.nonceTTL = nonceTTL
	}
	if tokenTTL > 0 {
		s.tokenTTL = tokenTTL
	}
	return s
}

// WithClock replaces the time source
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// RequestNonce issues a fresh challenge for publicKey, replacing any
// outstanding one.
func (s *AuthService) RequestNonce(ctx context.Context, publicKey string) (NonceChallenge, error) {
	if !strkey.IsValidEd25519PublicKey(publicKey) {
		return NonceChallenge{}, core.ErrInvalidPublicKey
	}

	raw := make([]byte, nonceBytes)
	if _, err := rand.Read(raw); err != nil {
		return NonceChallenge{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := s.now()
	nonce := core.Nonce{
		PublicKey: publicKey,
		Value:     hex.EncodeToString(raw),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.nonceTTL),
	}
	if err := s.nonces.Upsert(ctx, nonce); err != nil {
		return NonceChallenge{}, fmt.Errorf("failed to store nonce: %w", err)
	}

	return NonceChallenge{
		Nonce:     nonce.Value,
		ExpiresAt: nonce.ExpiresAt,
		Message:   MessagePrefix + nonce.Value,
	}, nil
}

// Verify checks that signature is publicKey's Ed25519 signature over the
// UTF-8 bytes of nonce and consumes the nonce. Only one concurrent caller
// can win a given nonce.
func (s *AuthService) Verify(ctx context.Context, publicKey, signature, nonce string) error {
	if !strkey.IsValidEd25519PublicKey(publicKey) {
		return core.ErrInvalidPublicKey
	}

	stored, err := s.nonces.Get(ctx, publicKey)
	if err != nil {
		if errors.Is(err, core.ErrNonceNotFound) {
			return core.ErrNonceNotFound
		}
		return fmt.Errorf("failed to load nonce: %w", err)
	}

	if stored.Value != nonce {
		return core.ErrNonceMismatch
	}

	if stored.Expired(s.now()) {
		if _, err := s.nonces.Consume(ctx, publicKey, stored.Value); err != nil {
			log.Warn().Err(err).Str("public_key", publicKey).Msg("failed to delete expired nonce")
		}
		return core.ErrNonceExpired
	}

	if err := verifySignature(publicKey, signature, nonce); err != nil {
		return err
	}

	consumed, err := s.nonces.Consume(ctx, publicKey, stored.Value)
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}
	if !consumed {
		return core.ErrNonceNotFound
	}
	return nil
}

func verifySignature(publicKey, signature, message string) error {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return core.ErrInvalidSignature
	}
	kp, err := keypair.ParseAddress(publicKey)
	if err != nil {
		return core.ErrInvalidPublicKey
	}
	if err := kp.Verify([]byte(message), sig); err != nil {
		return core.ErrInvalidSignature
	}
	return nil
}

// EnsureUserExists returns the user bound to publicKey, creating it on
// first sight.
func (s *AuthService) EnsureUserExists(ctx context.Context, publicKey string) (core.User, bool, error) {
	user, created, err := s.users.GetOrCreate(ctx, core.User{
		ID:        uuid.New().String(),
		PublicKey: publicKey,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return core.User{}, false, fmt.Errorf("failed to ensure user: %w", err)
	}
	return user, created, nil
}

// IssueSessionToken signs a session token for the pair
func (s *AuthService) IssueSessionToken(publicKey, userID string) (string, time.Time, error) {
	token, identity, err := s.issue(publicKey, userID)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, identity.ExpiresAt, nil
}

func (s *AuthService) issue(publicKey, userID string) (string, core.Identity, error) {
	now := s.now()
	identity := core.Identity{
		TokenID:   uuid.New().String(),
		PublicKey: publicKey,
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.tokenTTL),
	}

	token, err := s.tokenizer.IdentityToToken(identity)
	if err != nil {
		return "", core.Identity{}, fmt.Errorf("failed to create session token: %w", err)
	}
	return token, identity, nil
}

// Authenticate runs the whole login: verify, ensure the user, issue a token
func (s *AuthService) Authenticate(ctx context.Context, publicKey, signature, nonce string) (LoginResult, error) {
	if err := s.Verify(ctx, publicKey, signature, nonce); err != nil {
		return LoginResult{}, err
	}

	user, created, err := s.EnsureUserExists(ctx, publicKey)
	if err != nil {
		return LoginResult{}, err
	}

	token, identity, err := s.issue(publicKey, user.ID)
	if err != nil {
		return LoginResult{}, err
	}

	// Event delivery is best effort; the login has already succeeded
	if created {
		if err := s.eventPub.PublishUserCreated(ctx, user); err != nil {
			log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to publish user created event")
		}
	}
	if err := s.eventPub.PublishLogin(ctx, identity); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to publish login event")
	}

	return LoginResult{
		Token:     token,
		ExpiresAt: identity.ExpiresAt,
		User:      user,
		IsNew:     created,
	}, nil
}

// ValidateSessionToken decodes a bearer token
func (s *AuthService) ValidateSessionToken(token string) (core.Identity, error) {
	return s.tokenizer.TokenToIdentity(token)
}

// CleanupExpiredNonces deletes every nonce past its expiry
func (s *AuthService) CleanupExpiredNonces(ctx context.Context) (int, error) {
	removed, err := s.nonces.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up nonces: %w", err)
	}
	return removed, nil
}

// RunCleanup calls CleanupExpiredNonces every interval until ctx is done.
// Failures are logged and retried on the next tick.
func (s *AuthService) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.CleanupExpiredNonces(ctx)
			if err != nil {
				log.Error().Err(err).Msg("nonce cleanup failed")
				continue
			}
			if removed > 0 {
				log.Debug().Int("removed", removed).Msg("expired nonces removed")
			}
		}
	}
}
