// Package crypt is the encryption gate for secret definition payloads.
// Payloads are encrypted to an age X25519 recipient and stored as ASCII
// armor, so encrypted definitions stay valid YAML and diff cleanly.
package crypt

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
	"github.com/systmms/secretsync/internal/definition"
	sserrors "github.com/systmms/secretsync/internal/errors"
	"github.com/systmms/secretsync/internal/logging"
)

// EnvKey is the environment variable holding an age identity string.
// It takes precedence over the configured key file.
const EnvKey = "SECRETSYNC_AGE_KEY"

// Gate transforms definitions between their encrypted and plaintext
// in-memory representations. It never touches disk; file writes go
// through the definition store.
type Gate struct {
	identity *age.X25519Identity
	logger   *logging.Logger
}

// NewGate loads the age identity from the environment or the given key
// file. An absent identity is not an error: the gate reports itself
// unconfigured and the sync run becomes a no-op, since secrets
// management is opt-in per workspace.
func NewGate(keyFile string, logger *logging.Logger) (*Gate, error) {
	if raw := os.Getenv(EnvKey); raw != "" {
		id, err := parseIdentity(raw)
		if err != nil {
			return nil, sserrors.ConfigError{
				Field:      EnvKey,
				Message:    "invalid age identity",
				Suggestion: "The value must be an AGE-SECRET-KEY-1... string, e.g. from 'secretsync keygen'",
			}
		}
		return &Gate{identity: id, logger: logger}, nil
	}

	if keyFile == "" {
		return &Gate{logger: logger}, nil
	}

	path, err := expandHome(keyFile)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("age key file %s not found, encryption gate unconfigured", path)
			return &Gate{logger: logger}, nil
		}
		return nil, fmt.Errorf("failed to read age key file %s: %w", path, err)
	}

	id, err := parseIdentity(string(data))
	if err != nil {
		return nil, sserrors.ConfigError{
			Field:      "ageKeyFile",
			Value:      keyFile,
			Message:    "no valid age identity in key file",
			Suggestion: "Generate one with 'secretsync keygen --out " + keyFile + "'",
		}
	}
	return &Gate{identity: id, logger: logger}, nil
}

// parseIdentity extracts the first identity line from key material,
// skipping blank lines and comments the way age-keygen output is laid
// out.
func parseIdentity(raw string) (*age.X25519Identity, error) {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return age.ParseX25519Identity(line)
	}
	return nil, fmt.Errorf("no identity line found")
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// Configured reports whether an identity is available. When false, the
// whole reconciliation run short-circuits successfully.
func (g *Gate) Configured() bool {
	return g.identity != nil
}

// Decrypt returns a plaintext copy of an encrypted definition. The
// input is not modified. Definitions that are already plaintext pass
// through unchanged.
func (g *Gate) Decrypt(def *definition.Definition) (*definition.Definition, error) {
	if !def.Encrypted() {
		return def, nil
	}
	if g.identity == nil {
		return nil, sserrors.DecryptError{Path: def.Name, Err: fmt.Errorf("encryption gate not configured")}
	}

	r, err := age.Decrypt(armor.NewReader(strings.NewReader(def.Payload)), g.identity)
	if err != nil {
		return nil, sserrors.DecryptError{Path: def.Name, Err: err}
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, sserrors.DecryptError{Path: def.Name, Err: err}
	}

	out := *def
	out.Status = definition.StatusPlaintext
	out.Payload = string(plain)
	return &out, nil
}

// Encrypt returns an encrypted copy of a plaintext definition. A fresh
// ciphertext is produced on every call. Definitions that are already
// encrypted pass through unchanged.
func (g *Gate) Encrypt(def *definition.Definition) (*definition.Definition, error) {
	if def.Encrypted() {
		return def, nil
	}
	if g.identity == nil {
		return nil, sserrors.ConfigError{
			Field:      "ageKeyFile",
			Message:    "cannot encrypt without a configured identity",
			Suggestion: "Generate one with 'secretsync keygen' and reference it from secretsync.yaml",
		}
	}

	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)
	w, err := age.Encrypt(aw, g.identity.Recipient())
	if err != nil {
		return nil, fmt.Errorf("failed to start encryption for %s: %w", def.Name, err)
	}
	if _, err := io.WriteString(w, def.Payload); err != nil {
		return nil, fmt.Errorf("failed to encrypt %s: %w", def.Name, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize encryption for %s: %w", def.Name, err)
	}
	if err := aw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize armor for %s: %w", def.Name, err)
	}

	out := *def
	out.Status = definition.StatusEncrypted
	out.Payload = buf.String()
	return &out, nil
}

// Generate creates a new age identity and returns the secret key and
// its public recipient.
func Generate() (identity, recipient string, err error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate identity: %w", err)
	}
	return id.String(), id.Recipient().String(), nil
}
