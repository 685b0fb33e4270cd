package store

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/lumenpay/lumenvault/core"
	"github.com/lumenpay/lumenvault/ports"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	keyA = "GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGZ"
	keyB = "GCFXHS4GXL6BVUCXBWXGTITROWLVYXQKQLF4YH5O5JT3YZXCYPAFBJZB"
)

func newRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func nonceStores(t *testing.T) map[string]ports.NonceStore {
	_, client := newRedisClient(t)
	return map[string]ports.NonceStore{
		"memory": NewMemoryNonceStore(),
		"redis":  NewRedisNonceStore(client),
	}
}

func userStores(t *testing.T) map[string]ports.UserStore {
	_, client := newRedisClient(t)
	return map[string]ports.UserStore{
		"memory": NewMemoryUserStore(),
		"redis":  NewRedisUserStore(client),
	}
}

func newNonce(publicKey, value string, issuedAt time.Time, ttl time.Duration) core.Nonce {
	return core.Nonce{
		PublicKey: publicKey,
		Value:     value,
		IssuedAt:  issuedAt.Truncate(time.Millisecond),
		ExpiresAt: issuedAt.Add(ttl).Truncate(time.Millisecond),
	}
}

func TestNonceStoreUpsertReplaces(t *testing.T) {
	for name, s := range nonceStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now()

			_, err := s.Get(ctx, keyA)
			assert.ErrorIs(t, err, core.ErrNonceNotFound)

			require.NoError(t, s.Upsert(ctx, newNonce(keyA, "first", now, time.Minute)))
			require.NoError(t, s.Upsert(ctx, newNonce(keyA, "second", now, 2*time.Minute)))

			got, err := s.Get(ctx, keyA)
			require.NoError(t, err)
			assert.Equal(t, "second", got.Value)
			assert.True(t, got.ExpiresAt.Equal(now.Add(2*time.Minute).Truncate(time.Millisecond)))
		})
	}
}

func TestNonceStoreConsumeIsSingleUse(t *testing.T) {
	for name, s := range nonceStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Upsert(ctx, newNonce(keyA, "abc", time.Now(), time.Minute)))

			ok, err := s.Consume(ctx, keyA, "stale")
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = s.Consume(ctx, keyA, "abc")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = s.Consume(ctx, keyA, "abc")
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = s.Get(ctx, keyA)
			assert.ErrorIs(t, err, core.ErrNonceNotFound)
		})
	}
}

func TestNonceStoreConcurrentConsume(t *testing.T) {
	for name, s := range nonceStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Upsert(ctx, newNonce(keyA, "race", time.Now(), time.Minute)))

			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins int
			)
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := s.Consume(ctx, keyA, "race")
					assert.NoError(t, err)
					if ok {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, wins)
		})
	}
}

func TestNonceStoreDeleteExpired(t *testing.T) {
	for name, s := range nonceStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now()
			require.NoError(t, s.Upsert(ctx, newNonce(keyA, "old", now.Add(-20*time.Minute), 10*time.Minute)))
			require.NoError(t, s.Upsert(ctx, newNonce(keyB, "fresh", now, 10*time.Minute)))

			removed, err := s.DeleteExpired(ctx, now)
			require.NoError(t, err)
			assert.Equal(t, 1, removed)

			removed, err = s.DeleteExpired(ctx, now)
			require.NoError(t, err)
			assert.Equal(t, 0, removed)

			_, err = s.Get(ctx, keyA)
			assert.ErrorIs(t, err, core.ErrNonceNotFound)
			_, err = s.Get(ctx, keyB)
			assert.NoError(t, err)
		})
	}
}

func TestRedisNonceStoreKeepsExpiredNonceReadable(t *testing.T) {
	_, client := newRedisClient(t)
	s := NewRedisNonceStore(client)
	ctx := context.Background()

	issued := time.Now().Add(-11 * time.Minute)
	require.NoError(t, s.Upsert(ctx, newNonce(keyA, "late", issued, 10*time.Minute)))

	got, err := s.Get(ctx, keyA)
	require.NoError(t, err)
	assert.True(t, got.Expired(time.Now()))
}

func TestRedisNonceKeysShareHashSlot(t *testing.T) {
	mr, client := newRedisClient(t)
	s := NewRedisNonceStore(client)
	ctx := context.Background()
	now := time.Now()

	for _, pk := range []string{"GAAA", "GBBB", "GCCC"} {
		require.NoError(t, s.Upsert(ctx, core.Nonce{PublicKey: pk, Value: "v", IssuedAt: now, ExpiresAt: now.Add(time.Minute)}))
	}

	keys := mr.Keys()
	require.Len(t, keys, 4)
	for _, key := range keys {
		assert.Contains(t, key, "{nonce}", key)
		assert.Equal(t, 1, strings.Count(key, "{"), key)
	}
}

func TestUserStoreGetOrCreate(t *testing.T) {
	for name, s := range userStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := core.User{ID: uuid.NewString(), PublicKey: keyA, CreatedAt: time.Now()}

			user, created, err := s.GetOrCreate(ctx, first)
			require.NoError(t, err)
			assert.True(t, created)
			assert.Equal(t, first.ID, user.ID)

			second := core.User{ID: uuid.NewString(), PublicKey: keyA, CreatedAt: time.Now()}
			user, created, err = s.GetOrCreate(ctx, second)
			require.NoError(t, err)
			assert.False(t, created)
			assert.Equal(t, first.ID, user.ID)
		})
	}
}

func TestUserStoreConcurrentCreate(t *testing.T) {
	for name, s := range userStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			ids := make(chan string, 20)
			var created sync.WaitGroup
			newUsers := 0
			var mu sync.Mutex
			for i := 0; i < 20; i++ {
				created.Add(1)
				go func() {
					defer created.Done()
					user, isNew, err := s.GetOrCreate(ctx, core.User{ID: uuid.NewString(), PublicKey: keyB, CreatedAt: time.Now()})
					assert.NoError(t, err)
					ids <- user.ID
					if isNew {
						mu.Lock()
						newUsers++
						mu.Unlock()
					}
				}()
			}
			created.Wait()
			close(ids)

			seen := map[string]bool{}
			for id := range ids {
				seen[id] = true
			}
			assert.Len(t, seen, 1)
			assert.Equal(t, 1, newUsers)
		})
	}
}
