package keychain

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/lumenpay/lumenvault/core"
	"github.com/lumenpay/lumenvault/ports"
)

// MemoryKeychain keeps entries in process memory.
// This is primarily intended for testing purposes
type MemoryKeychain struct {
	data map[string][]byte
	mu   sync.RWMutex

	// WriteErr, when set, is returned by every Put
	WriteErr error
}

// NewMemoryKeychain creates an empty keychain
func NewMemoryKeychain() *MemoryKeychain {
	return &MemoryKeychain{data: make(map[string][]byte)}
}

var _ ports.Keychain = (*MemoryKeychain)(nil)

func (k *MemoryKeychain) Put(ctx context.Context, key string, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.WriteErr != nil {
		return k.WriteErr
	}
	k.data[key] = append([]byte(nil), value...)
	return nil
}

func (k *MemoryKeychain) Get(ctx context.Context, key string) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	value, ok := k.data[key]
	if !ok {
		return nil, core.ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (k *MemoryKeychain) Delete(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	delete(k.data, key)
	return nil
}

func (k *MemoryKeychain) Keys(ctx context.Context, prefix string) ([]string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var keys []string
	for key := range k.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
