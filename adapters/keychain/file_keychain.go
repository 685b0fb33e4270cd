package keychain

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lumenpay/lumenvault/core"
	"github.com/lumenpay/lumenvault/ports"
)

const entrySuffix = ".entry"

var fileNames = base32.StdEncoding.WithPadding(base32.NoPadding)

// FileKeychain stores each entry in its own 0600 file inside a 0700
// directory. Values are written as given; the vault only hands it ciphertext.
type FileKeychain struct {
	dir string
	mu  sync.Mutex
}

// NewFileKeychain creates the directory if needed
func NewFileKeychain(dir string) (*FileKeychain, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create keychain dir: %v", core.ErrStorageWrite, err)
	}
	return &FileKeychain{dir: dir}, nil
}

var _ ports.Keychain = (*FileKeychain)(nil)

func (k *FileKeychain) path(key string) string {
	return filepath.Join(k.dir, fileNames.EncodeToString([]byte(key))+entrySuffix)
}

// Put writes value atomically via a temp file and rename
func (k *FileKeychain) Put(ctx context.Context, key string, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	tmp, err := os.CreateTemp(k.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorageWrite, err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", core.ErrStorageWrite, err)
	}
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", core.ErrStorageWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", core.ErrStorageWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorageWrite, err)
	}
	if err := os.Rename(tmp.Name(), k.path(key)); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorageWrite, err)
	}
	return nil
}

// Get reads the entry for key
func (k *FileKeychain) Get(ctx context.Context, key string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	value, err := os.ReadFile(k.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("%w: read %s: %v", core.ErrStore, key, err)
	}
	return value, nil
}

// Delete removes the entry for key. Missing entries are not an error.
func (k *FileKeychain) Delete(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := os.Remove(k.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: delete %s: %v", core.ErrStorageWrite, key, err)
	}
	return nil
}

// Keys lists stored keys starting with prefix, sorted
func (k *FileKeychain) Keys(ctx context.Context, prefix string) ([]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	entries, err := os.ReadDir(k.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list keychain: %v", core.ErrStore, err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, entrySuffix) {
			continue
		}
		raw, err := fileNames.DecodeString(strings.TrimSuffix(name, entrySuffix))
		if err != nil {
			continue
		}
		if key := string(raw); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
