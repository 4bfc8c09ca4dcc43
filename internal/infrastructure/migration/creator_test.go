package migration

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"add reservation index":  "add_reservation_index",
		"Add-Stock-Levels":       "add_stock_levels",
		"ADD__BALANCE__CHECK":    "add_balance_check",
		"   spaces   ":           "spaces",
		"special!@#$chars":       "specialchars",
		"_leading_and_trailing_": "leading_and_trailing",
		"":                       "",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeName(in), "input %q", in)
	}
}

func TestCreateMigration_NumbersSequentially(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "add reservation index", "speeds up sweeps")
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_add_reservation_index.up.sql"), first.UpPath)
	assert.Equal(t, filepath.Join(dir, "000001_add_reservation_index.down.sql"), first.DownPath)

	up, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Up: add_reservation_index")
	assert.Contains(t, string(up), "-- speeds up sweeps")

	down, err := os.ReadFile(first.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "-- Down: add_reservation_index")

	second, err := CreateMigration(dir, "drop legacy column", "")
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)
	assert.Equal(t, "000002_drop_legacy_column", second.BaseName())
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations_Directory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000010_later.up.sql", "000010_later.down.sql",
		"000002_early.up.sql", "000002_early.down.sql",
		"README.md", "nover.up.sql",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	files, err := ListMigrations(os.DirFS(dir))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, uint(2), files[0].Version)
	assert.Equal(t, "early", files[0].Name)
	assert.Equal(t, uint(10), files[1].Version)
	assert.Equal(t, "000010_later.down.sql", files[1].DownPath)
}

func TestListMigrations_MissingDirectory(t *testing.T) {
	files, err := ListMigrations(os.DirFS(filepath.Join(t.TempDir(), "absent")))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := ListMigrations(EmbeddedFS())
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for i, f := range files {
		assert.Equal(t, uint(i+1), f.Version, "versions must be contiguous")

		up, err := fs.ReadFile(EmbeddedFS(), f.UpPath)
		require.NoError(t, err)
		assert.Contains(t, string(up), "CREATE TABLE")

		_, err = fs.Stat(EmbeddedFS(), f.DownPath)
		assert.NoError(t, err, "missing down script for %s", f.BaseName())
	}
}
