package commands

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/secretsync/internal/crypt"
	"github.com/systmms/secretsync/internal/remote"
)

func TestSyncCommand_CreatesSecrets(t *testing.T) {
	fake := remote.NewFake()
	withFakeService(t, fake)
	configureTestKey(t)

	dir := t.TempDir()
	writeSecretFile(t, dir, "db-password", plaintextDoc)

	cmd := NewSyncCommand(testConfig(t))
	cmd.SetArgs([]string{"--project", "test-proj", "--source-root", dir})

	require.NoError(t, cmd.Execute())

	sec := fake.Secrets["db-password"]
	require.NotNil(t, sec)
	assert.Equal(t, map[string]string{"env": "prod"}, sec.Labels)
	require.Len(t, sec.Payloads, 1)
	assert.Equal(t, []byte("hunter2"), sec.Payloads[0])
}

func TestSyncCommand_NoKeyIsSuccessfulNoop(t *testing.T) {
	fake := remote.NewFake()
	withFakeService(t, fake)
	t.Setenv(crypt.EnvKey, "")

	cmd := NewSyncCommand(testConfig(t))
	cmd.SetArgs([]string{"--project", "test-proj", "--source-root", t.TempDir()})

	require.NoError(t, cmd.Execute())
	assert.Empty(t, fake.CallLog(), "no remote client work without a key")
}

func TestSyncCommand_FailedSecretFailsCommand(t *testing.T) {
	fake := remote.NewFake()
	fake.FailWith("create:db-password", errors.New("quota exceeded"))
	withFakeService(t, fake)
	configureTestKey(t)

	dir := t.TempDir()
	writeSecretFile(t, dir, "db-password", plaintextDoc)

	cmd := NewSyncCommand(testConfig(t))
	cmd.SetArgs([]string{"--project", "test-proj", "--source-root", dir})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 failed secret")
}

func TestSyncCommand_DryRunAppliesNothing(t *testing.T) {
	fake := remote.NewFake()
	fake.Seed("db-password", map[string]string{"env": "staging"})
	withFakeService(t, fake)
	configureTestKey(t)

	dir := t.TempDir()
	writeSecretFile(t, dir, "db-password", plaintextDoc)

	cmd := NewSyncCommand(testConfig(t))
	cmd.SetArgs([]string{"--project", "test-proj", "--source-root", dir, "--dry-run"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, []string{"list"}, fake.CallLog())
	assert.Len(t, fake.Secrets["db-password"].Versions, 1)
}

func TestSyncCommand_SecretFilter(t *testing.T) {
	fake := remote.NewFake()
	withFakeService(t, fake)
	configureTestKey(t)

	dir := t.TempDir()
	writeSecretFile(t, dir, "alpha", plaintextDoc)
	writeSecretFile(t, dir, "beta", plaintextDoc)

	cmd := NewSyncCommand(testConfig(t))
	cmd.SetArgs([]string{"--project", "test-proj", "--source-root", dir, "--secret", "alpha"})

	require.NoError(t, cmd.Execute())
	assert.NotNil(t, fake.Secrets["alpha"])
	assert.Nil(t, fake.Secrets["beta"])
}
