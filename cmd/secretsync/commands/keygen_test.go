package commands

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeygenCommand_Stdout(t *testing.T) {
	cmd := NewKeygenCommand(testConfig(t))
	cmd.SetArgs([]string{})

	output, err := captureStdout(t, cmd.Execute)
	require.NoError(t, err)

	assert.Contains(t, output, "# public key: age1")
	assert.Contains(t, output, "AGE-SECRET-KEY-1")
}

func TestKeygenCommand_WritesKeyFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "key.txt")

	cmd := NewKeygenCommand(testConfig(t))
	cmd.SetArgs([]string{"--out", out})

	output, err := captureStdout(t, cmd.Execute)
	require.NoError(t, err)

	assert.Contains(t, output, "Public key: age1")
	assert.NotContains(t, output, "AGE-SECRET-KEY-1", "the identity only goes to the file")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "AGE-SECRET-KEY-1")

	if runtime.GOOS != "windows" {
		info, err := os.Stat(out)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}
