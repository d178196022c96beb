package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/secretsync/internal/config"
	"github.com/systmms/secretsync/internal/crypt"
	sserrors "github.com/systmms/secretsync/internal/errors"
)

func NewEncryptCommand(cfg *config.Config) *cobra.Command {
	var sourceRoot string

	cmd := &cobra.Command{
		Use:   "encrypt [file...]",
		Short: "Encrypt plaintext definition payloads in place",
		Long: `Encrypt rewrites the named definition files with their payload encrypted
to the configured age identity. Without arguments every plaintext
definition under the source root is encrypted. Files that are already
encrypted are left untouched.`,
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
					Suggestion: "Generate one with 'secretsync keygen' and export it, or set ageKeyFile in secretsync.yaml",
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

			encrypted := 0
			for _, path := range paths {
				def, err := store.Read(path)
				if err != nil {
					return err
				}
				if def.Encrypted() {
					cfg.Logger.Debug("%s is already encrypted", path)
					continue
				}
				enc, err := gate.Encrypt(def)
				if err != nil {
					return err
				}
				if err := store.Write(path, enc); err != nil {
					return err
				}
				cfg.Logger.Info("encrypted %s", path)
				encrypted++
			}

			cfg.Logger.Info("encrypted %d file(s)", encrypted)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceRoot, "source-root", "", "Directory holding secret definition files")

	return cmd
}
