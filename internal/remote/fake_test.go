package remote

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeCreateAndList(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	require.NoError(t, f.Create(ctx, "", "db", map[string]string{"env": "prod"}, []byte("v")))

	secrets, err := f.ListSecrets(ctx, "")
	require.NoError(t, err)
	require.Contains(t, secrets, "db")
	assert.Equal(t, map[string]string{"env": "prod"}, secrets["db"].Labels)

	err = f.Create(ctx, "", "db", nil, []byte("v"))
	require.Error(t, err, "duplicate create must fail")
}

func TestFakeVersionLifecycle(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	f.Seed("db", nil)

	v, err := f.AddVersion(ctx, "", "db", []byte("new"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	require.NoError(t, f.DisableVersion(ctx, "", "db", 1))
	assert.Equal(t, VersionDisabled, f.Secrets["db"].Versions[0])

	require.NoError(t, f.DestroyVersion(ctx, "", "db", 1))
	assert.Equal(t, VersionDestroyed, f.Secrets["db"].Versions[0])

	err = f.DisableVersion(ctx, "", "db", 9)
	require.Error(t, err, "unknown version must fail")
}

func TestFakeBindings(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	f.Seed("db", nil)

	require.NoError(t, f.GrantAccess(ctx, "", "db", "a@acme.com"))
	require.NoError(t, f.GrantAccess(ctx, "", "db", "a@acme.com"), "grant is idempotent")
	require.NoError(t, f.GrantAccess(ctx, "", "db", "b@acme.com"))

	bindings, err := f.AccessBindings(ctx, "", "db")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a@acme.com", "b@acme.com"}, bindings)

	require.NoError(t, f.RevokeAccess(ctx, "", "db", "a@acme.com"))
	bindings, err = f.AccessBindings(ctx, "", "db")
	require.NoError(t, err)
	assert.Equal(t, []string{"b@acme.com"}, bindings)
}

func TestFakeInjectedErrors(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	f.Seed("db", nil)
	f.Seed("api", nil)

	boom := errors.New("boom")
	f.FailWith("addVersion:db", boom)

	_, err := f.AddVersion(ctx, "", "db", []byte("v"))
	assert.ErrorIs(t, err, boom)

	_, err = f.AddVersion(ctx, "", "api", []byte("v"))
	assert.NoError(t, err, "error injection is scoped to one secret")

	f.FailWith("list", boom)
	_, err = f.ListSecrets(ctx, "")
	assert.ErrorIs(t, err, boom)
}

func TestFakeCallLog(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	f.Seed("db", nil)

	_, _ = f.AddVersion(ctx, "", "db", []byte("v"))
	_ = f.GrantAccess(ctx, "", "db", "a@acme.com")

	assert.Equal(t, []string{"addVersion:db", "grant:db:a@acme.com"}, f.CallLog())
	assert.Equal(t, []string{"addVersion", "grant a@acme.com"}, f.CallsFor("db"))
}
