package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lumenpay/lumenvault/core"
	"github.com/lumenpay/lumenvault/ports"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "lumenpay:"

	// expired nonces stay readable this long so verify can report them as
	// expired rather than missing
	defaultRetention = time.Hour
)

var consumeScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'nonce') == ARGV[1] then
	redis.call('DEL', KEYS[1])
	redis.call('ZREM', KEYS[2], ARGV[2])
	return 1
end
return 0
`)

var cleanupScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
local removed = 0
for _, pk in ipairs(expired) do
	redis.call('ZREM', KEYS[1], pk)
	local key = ARGV[2] .. pk
	local exp = redis.call('HGET', key, 'expires_at')
	if exp and tonumber(exp) < tonumber(ARGV[1]) then
		redis.call('DEL', key)
		removed = removed + 1
	end
end
return removed
`)

// RedisNonceStore is a Redis implementation of the NonceStore interface.
// Each nonce is a hash keyed by public key; a sorted set indexes expiries.
// Every key carries the {nonce} hash tag so the Lua scripts, which touch
// several nonce keys, stay within one slot on Redis Cluster.
type RedisNonceStore struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisNonceStore creates a new Redis nonce store
func NewRedisNonceStore(client redis.UniversalClient) *RedisNonceStore {
	return &RedisNonceStore{
		client:    client,
		prefix:    defaultPrefix,
		retention: defaultRetention,
	}
}

var _ ports.NonceStore = (*RedisNonceStore)(nil)

// nonceSlot is the hash tag shared by all nonce keys
const nonceSlot = "{nonce}"

func (s *RedisNonceStore) nonceKeyPrefix() string {
	return s.prefix + nonceSlot + ":"
}

func (s *RedisNonceStore) nonceKey(publicKey string) string {
	return s.nonceKeyPrefix() + publicKey
}

func (s *RedisNonceStore) indexKey() string {
	return s.prefix + nonceSlot + ":expiry"
}

// Upsert replaces the nonce stored for the public key
func (s *RedisNonceStore) Upsert(ctx context.Context, nonce core.Nonce) error {
	key := s.nonceKey(nonce.PublicKey)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"nonce", nonce.Value,
			"issued_at", nonce.IssuedAt.UnixMilli(),
			"expires_at", nonce.ExpiresAt.UnixMilli(),
		)
		pipe.PExpireAt(ctx, key, nonce.ExpiresAt.Add(s.retention))
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{
			Score:  float64(nonce.ExpiresAt.UnixMilli()),
			Member: nonce.PublicKey,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: upsert nonce: %v", core.ErrStore, err)
	}
	return nil
}

// Get returns the nonce stored for publicKey
func (s *RedisNonceStore) Get(ctx context.Context, publicKey string) (core.Nonce, error) {
	fields, err := s.client.HGetAll(ctx, s.nonceKey(publicKey)).Result()
	if err != nil {
		return core.Nonce{}, fmt.Errorf("%w: get nonce: %v", core.ErrStore, err)
	}
	if len(fields) == 0 {
		return core.Nonce{}, core.ErrNonceNotFound
	}

	issuedAt, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return core.Nonce{}, fmt.Errorf("%w: corrupt nonce record: %v", core.ErrStore, err)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return core.Nonce{}, fmt.Errorf("%w: corrupt nonce record: %v", core.ErrStore, err)
	}

	return core.Nonce{
		PublicKey: publicKey,
		Value:     fields["nonce"],
		IssuedAt:  time.UnixMilli(issuedAt),
		ExpiresAt: time.UnixMilli(expiresAt),
	}, nil
}

// Consume atomically deletes the nonce if it still carries value
func (s *RedisNonceStore) Consume(ctx context.Context, publicKey, value string) (bool, error) {
	keys := []string{s.nonceKey(publicKey), s.indexKey()}
	deleted, err := consumeScript.Run(ctx, s.client, keys, value, publicKey).Int()
	if err != nil {
		return false, fmt.Errorf("%w: consume nonce: %v", core.ErrStore, err)
	}
	return deleted == 1, nil
}

// DeleteExpired removes nonces that expired before now
func (s *RedisNonceStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	keys := []string{s.indexKey()}
	removed, err := cleanupScript.Run(ctx, s.client, keys, now.UnixMilli(), s.nonceKeyPrefix()).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: delete expired nonces: %v", core.ErrStore, err)
	}
	return removed, nil
}

// RedisUserStore keeps users in a single Redis hash keyed by public key.
// HSETNX makes creation atomic across instances.
type RedisUserStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisUserStore creates a new Redis user store
func NewRedisUserStore(client redis.UniversalClient) *RedisUserStore {
	return &RedisUserStore{
		client: client,
		key:    defaultPrefix + "users",
	}
}

var _ ports.UserStore = (*RedisUserStore)(nil)

type userRecord struct {
	ID        string    `json:"id"`
	PublicKey string    `json:"public_key"`
	CreatedAt time.Time `json:"created_at"`
}

// GetOrCreate returns the user for candidate.PublicKey, creating it if absent
func (s *RedisUserStore) GetOrCreate(ctx context.Context, candidate core.User) (core.User, bool, error) {
	payload, err := json.Marshal(userRecord{
		ID:        candidate.ID,
		PublicKey: candidate.PublicKey,
		CreatedAt: candidate.CreatedAt.UTC(),
	})
	if err != nil {
		return core.User{}, false, fmt.Errorf("failed to marshal user: %w", err)
	}

	created, err := s.client.HSetNX(ctx, s.key, candidate.PublicKey, payload).Result()
	if err != nil {
		return core.User{}, false, fmt.Errorf("%w: create user: %v", core.ErrStore, err)
	}
	if created {
		return candidate, true, nil
	}

	raw, err := s.client.HGet(ctx, s.key, candidate.PublicKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.User{}, false, fmt.Errorf("%w: user vanished after create conflict", core.ErrStore)
		}
		return core.User{}, false, fmt.Errorf("%w: get user: %v", core.ErrStore, err)
	}

	var rec userRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return core.User{}, false, fmt.Errorf("%w: corrupt user record: %v", core.ErrStore, err)
	}
	return core.User{ID: rec.ID, PublicKey: rec.PublicKey, CreatedAt: rec.CreatedAt}, false, nil
}
