package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/secretsync/internal/config"
	"github.com/systmms/secretsync/internal/crypt"
)

func NewKeygenCommand(cfg *config.Config) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new age identity for encrypting definitions",
		Long: `Keygen generates an X25519 age identity. With --out the identity is
written to a key file (mode 0600) and only the public key is printed;
without it the identity goes to stdout.

Reference the key file from secretsync.yaml as ageKeyFile, or export the
identity line as ` + crypt.EnvKey + `.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, recipient, err := crypt.Generate()
			if err != nil {
				return err
			}

			if out == "" {
				fmt.Printf("# created: %s\n", time.Now().Format(time.RFC3339))
				fmt.Printf("# public key: %s\n", recipient)
				fmt.Println(identity)
				return nil
			}

			content := fmt.Sprintf("# created: %s\n# public key: %s\n%s\n",
				time.Now().Format(time.RFC3339), recipient, identity)
			if err := os.WriteFile(out, []byte(content), 0o600); err != nil {
				return fmt.Errorf("failed to write key file %s: %w", out, err)
			}

			fmt.Printf("Public key: %s\n", recipient)
			fmt.Printf("Identity written to %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Write the identity to this file instead of stdout")

	return cmd
}
