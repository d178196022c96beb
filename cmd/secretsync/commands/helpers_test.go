package commands

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/systmms/secretsync/internal/config"
	"github.com/systmms/secretsync/internal/crypt"
	"github.com/systmms/secretsync/internal/logging"
	"github.com/systmms/secretsync/internal/remote"
)

// withFakeService swaps the remote client factory for an in-memory fake
// for the duration of the test.
func withFakeService(t *testing.T, fake *remote.Fake) {
	t.Helper()
	orig := newRemoteService
	newRemoteService = func(ctx context.Context, project string, opts remote.GCPOptions, logger *logging.Logger) (remote.Service, func(), error) {
		return fake, func() {}, nil
	}
	t.Cleanup(func() { newRemoteService = orig })
}

// testConfig builds a config that loads from defaults with a quiet
// logger.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Logger: logging.New(false, true),
	}
}

// configureTestKey points the encryption gate at a fresh identity.
func configureTestKey(t *testing.T) {
	t.Helper()
	identity, _, err := crypt.Generate()
	require.NoError(t, err)
	t.Setenv(crypt.EnvKey, identity)
}

// writeSecretFile writes a raw definition document and returns its path.
func writeSecretFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const plaintextDoc = `status: plaintext
labels:
  - key: env
    value: prod
payload: hunter2
`

// captureStdout captures everything written to os.Stdout while fn runs.
func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	runErr := fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String(), runErr
}
