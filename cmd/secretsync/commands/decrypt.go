package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/secretsync/internal/config"
	"github.com/systmms/secretsync/internal/crypt"
	sserrors "github.com/systmms/secretsync/internal/errors"
)

func NewDecryptCommand(cfg *config.Config) *cobra.Command {
	var sourceRoot string

	cmd := &cobra.Command{
		Use:   "decrypt [file...]",
		Short: "Decrypt definition payloads in place for editing",
		Long: `Decrypt rewrites the named definition files with their payload in
plaintext so they can be edited. Without arguments every encrypted
definition under the source root is decrypted.

Decrypted files carry real secret material. Re-encrypt them with
'secretsync encrypt' before committing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			gate, err := newGate(cfg)
			if err != nil {
				return err
			}
			if !gate.Configured() {
				return sserrors.ConfigError{
					Field:      crypt.EnvKey,
					Message:    "no encryption identity configured",
					Suggestion: "Export the age identity used to encrypt these files, or set ageKeyFile in secretsync.yaml",
				}
			}

			store := newStore(cfg)
			paths := args
			if len(paths) == 0 {
				paths, err = store.List(cfg.SourceRoot(sourceRoot))
				if err != nil {
					return err
				}
			}

			decrypted := 0
			for _, path := range paths {
				def, err := store.Read(path)
				if err != nil {
					return err
				}
				if !def.Encrypted() {
					cfg.Logger.Debug("%s is already plaintext", path)
					continue
				}
				plain, err := gate.Decrypt(def)
				if err != nil {
					return err
				}
				if err := store.Write(path, plain); err != nil {
					return err
				}
				cfg.Logger.Info("decrypted %s", path)
				decrypted++
			}

			if decrypted > 0 {
				cfg.Logger.Warn("%d file(s) now hold plaintext secrets, re-encrypt before committing", decrypted)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceRoot, "source-root", "", "Directory holding secret definition files")

	return cmd
}
