package keychain

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lumenpay/lumenvault/core"
	"github.com/lumenpay/lumenvault/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keychains(t *testing.T) map[string]ports.Keychain {
	fk, err := NewFileKeychain(filepath.Join(t.TempDir(), "vault"))
	require.NoError(t, err)
	return map[string]ports.Keychain{
		"file":   fk,
		"memory": NewMemoryKeychain(),
	}
}

func TestKeychainLifecycle(t *testing.T) {
	for name, kc := range keychains(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := kc.Get(ctx, "wallet/GABC")
			assert.ErrorIs(t, err, core.ErrNotFound)

			require.NoError(t, kc.Put(ctx, "wallet/GABC", []byte("one")))
			require.NoError(t, kc.Put(ctx, "wallet/GDEF", []byte("two")))
			require.NoError(t, kc.Put(ctx, "pref/primary", []byte("GABC")))
			require.NoError(t, kc.Put(ctx, "wallet/GABC", []byte("three")))

			value, err := kc.Get(ctx, "wallet/GABC")
			require.NoError(t, err)
			assert.Equal(t, []byte("three"), value)

			keys, err := kc.Keys(ctx, "wallet/")
			require.NoError(t, err)
			assert.Equal(t, []string{"wallet/GABC", "wallet/GDEF"}, keys)

			require.NoError(t, kc.Delete(ctx, "wallet/GABC"))
			require.NoError(t, kc.Delete(ctx, "wallet/GABC"))

			keys, err = kc.Keys(ctx, "wallet/")
			require.NoError(t, err)
			assert.Equal(t, []string{"wallet/GDEF"}, keys)
		})
	}
}

func TestFileKeychainPermissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vault")
	kc, err := NewFileKeychain(dir)
	require.NoError(t, err)

	require.NoError(t, kc.Put(context.Background(), "wallet/GABC", []byte("blob")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	info, err := entries[0].Info()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())
}
