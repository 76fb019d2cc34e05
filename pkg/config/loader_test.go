package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
request:
  path: /api/health
  method: GET
response:
  body: '{"status":"ok"}'
`), 0o644))

	loader := NewLoader(nil)
	list, err := loader.Load(path)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestLoader_LoadDirectory_SortsLexicographically(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(`
request:
  path: /b
  method: GET
response:
  body: "b"
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(`
request:
  path: /a
  method: GET
response:
  body: "a"
`), 0o644))

	loader := NewLoader(nil)
	list, err := loader.Load(dir)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "/a", list[0].Pattern.Path)
	assert.Equal(t, "/b", list[1].Pattern.Path)
}

func TestLoader_LoadDirectory_SkipsUnparsableFilesNonFatally(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.yaml"), []byte(`
request:
  path: /ok
  method: GET
response:
  body: "ok"
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(`
request:
  method: GET
response:
  body: "missing path"
`), 0o644))

	loader := NewLoader(nil)
	list, err := loader.Load(dir)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "/ok", list[0].Pattern.Path)
}

func TestLoader_LoadDirectory_NonRecursive(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "top.yaml"), []byte(`
request:
  path: /top
  method: GET
response:
  body: "top"
`), 0o644))
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "nested.yaml"), []byte(`
request:
  path: /nested
  method: GET
response:
  body: "nested"
`), 0o644))

	loader := NewLoader(nil)
	list, err := loader.Load(dir)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "/top", list[0].Pattern.Path)
}

func TestLoader_PathNotFound(t *testing.T) {
	loader := NewLoader(nil)
	_, err := loader.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, ErrPathNotFound)
}

func TestLoader_EmptyConfiguration(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(nil)
	_, err := loader.Load(dir)
	require.ErrorIs(t, err, ErrEmptyConfiguration)
}
