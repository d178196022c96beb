package remote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cloud.google.com/go/iam"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	sserrors "github.com/systmms/secretsync/internal/errors"
	"github.com/systmms/secretsync/internal/logging"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/fieldmaskpb"
)

// GCPOptions holds Google Cloud-specific client configuration.
type GCPOptions struct {
	CredentialsFile string
	// Replication lists the locations newly created secrets replicate
	// to. Empty selects automatic replication.
	Replication []string
}

// GCPService implements Service against Google Cloud Secret Manager.
type GCPService struct {
	client    *secretmanager.Client
	project   string
	locations []string
	logger    *logging.Logger
}

// NewGCPService creates a Secret Manager-backed service. project is the
// default scope used when a call does not qualify one.
func NewGCPService(ctx context.Context, project string, opts GCPOptions, logger *logging.Logger) (*GCPService, error) {
	if project == "" {
		return nil, sserrors.ConfigError{
			Field:      "project",
			Message:    "a project scope is required",
			Suggestion: "Pass --project, set project in secretsync.yaml, or export GOOGLE_CLOUD_PROJECT",
		}
	}

	var clientOptions []option.ClientOption
	if opts.CredentialsFile != "" {
		path := opts.CredentialsFile
		if strings.HasPrefix(path, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			path = filepath.Join(home, path[2:])
		}
		clientOptions = append(clientOptions, option.WithCredentialsFile(path))
	}

	client, err := secretmanager.NewClient(ctx, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}

	return &GCPService{client: client, project: project, locations: opts.Replication, logger: logger}, nil
}

// Close releases the underlying client connection.
func (s *GCPService) Close() error {
	return s.client.Close()
}

func (s *GCPService) scope(project string) string {
	if project != "" {
		return project
	}
	return s.project
}

func (s *GCPService) parent(project string) string {
	return "projects/" + s.scope(project)
}

func (s *GCPService) secretPath(project, name string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", s.scope(project), name)
}

func (s *GCPService) versionPath(project, name string, version int64) string {
	return fmt.Sprintf("%s/versions/%d", s.secretPath(project, name), version)
}

// shortName extracts the secret id from a full resource name.
func shortName(resource string) string {
	if i := strings.LastIndex(resource, "/secrets/"); i >= 0 {
		return resource[i+len("/secrets/"):]
	}
	return resource
}

// parseVersionNumber extracts the sequential version number from a
// version resource name (projects/P/secrets/S/versions/N).
func parseVersionNumber(resource string) (int64, error) {
	i := strings.LastIndex(resource, "/versions/")
	if i < 0 {
		return 0, fmt.Errorf("unexpected version resource name %q", resource)
	}
	n, err := strconv.ParseInt(resource[i+len("/versions/"):], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected version resource name %q: %w", resource, err)
	}
	return n, nil
}

func (s *GCPService) ListSecrets(ctx context.Context, project string) (map[string]Secret, error) {
	secrets := make(map[string]Secret)
	it := s.client.ListSecrets(ctx, &secretmanagerpb.ListSecretsRequest{
		Parent: s.parent(project),
	})
	for {
		sec, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list secrets in %s: %w", s.parent(project), err)
		}
		name := shortName(sec.Name)
		labels := sec.Labels
		if labels == nil {
			labels = map[string]string{}
		}
		secrets[name] = Secret{Name: name, Labels: labels}
	}
	s.logger.Debug("listed %d remote secret(s) in %s", len(secrets), s.parent(project))
	return secrets, nil
}

func (s *GCPService) AccessBindings(ctx context.Context, project, name string) ([]string, error) {
	handle := s.client.IAM(s.secretPath(project, name))
	policy, err := handle.Policy(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read access policy of %s: %w", name, err)
	}
	members := policy.Members(iam.RoleName(AccessorRole))
	principals := make([]string, 0, len(members))
	for _, m := range members {
		principals = append(principals, PrincipalFor(m))
	}
	return principals, nil
}

func (s *GCPService) Create(ctx context.Context, project, name string, labels map[string]string, payload []byte) error {
	_, err := s.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
		Parent:   s.parent(project),
		SecretId: name,
		Secret: &secretmanagerpb.Secret{
			Labels:      labels,
			Replication: s.replicationPolicy(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create secret %s: %w", name, err)
	}

	_, err = s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  s.secretPath(project, name),
		Payload: &secretmanagerpb.SecretPayload{Data: payload},
	})
	if err != nil {
		return fmt.Errorf("failed to upload initial version of %s: %w", name, err)
	}
	return nil
}

// replicationPolicy builds the replication setting for new secrets:
// user-managed over the configured locations, automatic otherwise.
func (s *GCPService) replicationPolicy() *secretmanagerpb.Replication {
	if len(s.locations) == 0 {
		return &secretmanagerpb.Replication{
			Replication: &secretmanagerpb.Replication_Automatic_{
				Automatic: &secretmanagerpb.Replication_Automatic{},
			},
		}
	}
	replicas := make([]*secretmanagerpb.Replication_UserManaged_Replica, 0, len(s.locations))
	for _, loc := range s.locations {
		replicas = append(replicas, &secretmanagerpb.Replication_UserManaged_Replica{Location: loc})
	}
	return &secretmanagerpb.Replication{
		Replication: &secretmanagerpb.Replication_UserManaged_{
			UserManaged: &secretmanagerpb.Replication_UserManaged{Replicas: replicas},
		},
	}
}

func (s *GCPService) AddVersion(ctx context.Context, project, name string, payload []byte) (int64, error) {
	version, err := s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  s.secretPath(project, name),
		Payload: &secretmanagerpb.SecretPayload{Data: payload},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add version to %s: %w", name, err)
	}
	return parseVersionNumber(version.Name)
}

func (s *GCPService) UpdateLabels(ctx context.Context, project, name string, labels map[string]string) error {
	// Sending the full label map with a labels field mask clears any
	// remote keys that are no longer declared.
	_, err := s.client.UpdateSecret(ctx, &secretmanagerpb.UpdateSecretRequest{
		Secret: &secretmanagerpb.Secret{
			Name:   s.secretPath(project, name),
			Labels: labels,
		},
		UpdateMask: &fieldmaskpb.FieldMask{Paths: []string{"labels"}},
	})
	if err != nil {
		return fmt.Errorf("failed to update labels of %s: %w", name, err)
	}
	return nil
}

func (s *GCPService) DisableVersion(ctx context.Context, project, name string, version int64) error {
	_, err := s.client.DisableSecretVersion(ctx, &secretmanagerpb.DisableSecretVersionRequest{
		Name: s.versionPath(project, name, version),
	})
	if err != nil {
		return fmt.Errorf("failed to disable version %d of %s: %w", version, name, err)
	}
	return nil
}

func (s *GCPService) DestroyVersion(ctx context.Context, project, name string, version int64) error {
	_, err := s.client.DestroySecretVersion(ctx, &secretmanagerpb.DestroySecretVersionRequest{
		Name: s.versionPath(project, name, version),
	})
	if err != nil {
		return fmt.Errorf("failed to destroy version %d of %s: %w", version, name, err)
	}
	return nil
}

func (s *GCPService) GrantAccess(ctx context.Context, project, name, principal string) error {
	return s.modifyPolicy(ctx, project, name, func(policy *iam.Policy) {
		policy.Add(MemberFor(principal), iam.RoleName(AccessorRole))
	})
}

func (s *GCPService) RevokeAccess(ctx context.Context, project, name, principal string) error {
	return s.modifyPolicy(ctx, project, name, func(policy *iam.Policy) {
		policy.Remove(MemberFor(principal), iam.RoleName(AccessorRole))
	})
}

func (s *GCPService) modifyPolicy(ctx context.Context, project, name string, mutate func(*iam.Policy)) error {
	handle := s.client.IAM(s.secretPath(project, name))
	policy, err := handle.Policy(ctx)
	if err != nil {
		return fmt.Errorf("failed to read access policy of %s: %w", name, err)
	}
	mutate(policy)
	if err := handle.SetPolicy(ctx, policy); err != nil {
		return fmt.Errorf("failed to update access policy of %s: %w", name, err)
	}
	return nil
}

// Suggestion maps common Secret Manager errors to actionable advice for
// CLI output.
func Suggestion(err error) string {
	switch status.Code(err) {
	case codes.PermissionDenied:
		return "Check IAM permissions: secretmanager.secrets.* on the target project"
	case codes.Unauthenticated:
		return "Check authentication: set GOOGLE_APPLICATION_CREDENTIALS or run 'gcloud auth application-default login'"
	case codes.NotFound:
		return "Verify the project ID and that the secret exists"
	case codes.AlreadyExists:
		return "The secret already exists; another process may have created it since the run started"
	case codes.ResourceExhausted:
		return "Request was throttled. Wait a moment and try again"
	default:
		return "Check GCP credentials, project ID, and IAM permissions for Secret Manager"
	}
}
