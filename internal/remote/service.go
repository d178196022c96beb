// Package remote abstracts the secret-management service the engine
// converges against. The production implementation talks to Google
// Cloud Secret Manager; tests substitute the in-memory Fake.
package remote

import (
	"context"
	"strings"
)

// AccessorRole is the fixed role granted to principals that may read a
// secret's payload.
const AccessorRole = "roles/secretmanager.secretAccessor"

// Secret is the remote-service view of a secret: a point-in-time
// snapshot owned by the service, read once per run.
type Secret struct {
	Name   string
	Labels map[string]string
}

// Service is the remote secret service collaborator. Every method is a
// single remote call; the project argument is an optional scope
// qualifier and falls back to the implementation's default when empty.
type Service interface {
	// ListSecrets returns all secrets with their labels, keyed by short
	// name.
	ListSecrets(ctx context.Context, project string) (map[string]Secret, error)
	// AccessBindings returns the principals bound to the accessor role
	// on the named secret.
	AccessBindings(ctx context.Context, project, name string) ([]string, error)
	// Create adds a new secret with initial labels and uploads the
	// initial version.
	Create(ctx context.Context, project, name string, labels map[string]string, payload []byte) error
	// AddVersion uploads a new version and returns its sequential
	// number.
	AddVersion(ctx context.Context, project, name string, payload []byte) (int64, error)
	// UpdateLabels replaces the secret's labels with the given set.
	UpdateLabels(ctx context.Context, project, name string, labels map[string]string) error
	// DisableVersion disables the given version.
	DisableVersion(ctx context.Context, project, name string, version int64) error
	// DestroyVersion permanently destroys the given version.
	DestroyVersion(ctx context.Context, project, name string, version int64) error
	// GrantAccess binds the principal to the accessor role.
	GrantAccess(ctx context.Context, project, name, principal string) error
	// RevokeAccess removes the principal's accessor binding.
	RevokeAccess(ctx context.Context, project, name, principal string) error
}

// MemberFor converts a declared principal into an IAM member string.
// Bare identifiers are assumed to be service accounts; identifiers that
// already carry a member prefix pass through.
func MemberFor(principal string) string {
	for _, prefix := range []string{"serviceAccount:", "user:", "group:", "domain:"} {
		if strings.HasPrefix(principal, prefix) {
			return principal
		}
	}
	return "serviceAccount:" + principal
}

// PrincipalFor is the inverse of MemberFor: it strips the
// serviceAccount prefix so remote bindings compare equal to declared
// principals. Other member kinds are returned verbatim.
func PrincipalFor(member string) string {
	return strings.TrimPrefix(member, "serviceAccount:")
}
