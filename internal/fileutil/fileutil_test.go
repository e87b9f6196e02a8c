package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flags struct {
	Keys map[string]bool `json:"keys"`
}

func TestWriteJSON_ReadJSON(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "nested", "flags.json")
	require.NoError(t, WriteJSON(target, flags{Keys: map[string]bool{"signInAuth-23295": true}}, 0o600))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	var got flags
	found, err := ReadJSON(target, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, got.Keys["signInAuth-23295"])
}

func TestReadJSON_Missing(t *testing.T) {
	t.Parallel()

	var got flags
	found, err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got.Keys)
}

func TestReadJSON_Corrupt(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "flags.json")
	require.NoError(t, os.WriteFile(target, []byte("{not json"), 0o600))

	var got flags
	found, err := ReadJSON(target, &got)
	require.Error(t, err)
	assert.True(t, found)
}

func TestJSON_EmptyPath(t *testing.T) {
	t.Parallel()

	_, err := ReadJSON("", &flags{})
	require.ErrorIs(t, err, ErrEmptyPath)
	require.ErrorIs(t, WriteJSON("", flags{}, 0o600), ErrEmptyPath)
}

func TestWriteJSON_ReplacesExisting(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "flags.json")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o644)) //nolint:gosec // G306: Test file, relaxed perms OK
	require.NoError(t, WriteJSON(target, flags{Keys: map[string]bool{"a": true}}, 0o600))

	var got flags
	_, err := ReadJSON(target, &got)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true}, got.Keys)

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file is left behind")
}

func TestWriteJSON_FailureLeavesOriginalFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions do not apply to root")
	}
	dir := t.TempDir()
	target := filepath.Join(dir, "flags.json")
	require.NoError(t, os.WriteFile(target, []byte(`{"keys":{"a":true}}`), 0o600))

	require.NoError(t, os.Chmod(dir, 0o500)) //nolint:gosec // G302: Test uses intentionally restrictive perms
	defer func() {
		_ = os.Chmod(dir, 0o700) //nolint:gosec // G302: Restoring perms in test cleanup
	}()

	require.Error(t, WriteJSON(target, flags{}, 0o600))

	var got flags
	_, err := ReadJSON(target, &got)
	require.NoError(t, err)
	assert.True(t, got.Keys["a"])
}
