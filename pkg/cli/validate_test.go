package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
request:
  path: /health
  method: GET
response:
  status: 200
  body: 'ok'
`

func TestValidateCmd_ReportsRuleCounts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validConfig), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"validate", path})

	err := rootCmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, out.String(), "1 rules (1 mock, 0 proxy)")
}

func TestValidateCmd_FailsOnMissingPath(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"validate", filepath.Join(t.TempDir(), "does-not-exist.yaml")})

	err := rootCmd.Execute()
	assert.Error(t, err)
}

func TestValidateCmd_RequiresExactlyOneArg(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"validate"})

	err := rootCmd.Execute()
	assert.Error(t, err)
}
