package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/secretsync/internal/config"
	"github.com/systmms/secretsync/internal/reconcile"
	"github.com/systmms/secretsync/internal/remote"
)

func NewSyncCommand(cfg *config.Config) *cobra.Command {
	var (
		project         string
		secretName      string
		sourceRoot      string
		credentialsFile string
		maxConcurrent   int
		dryRun          bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile declared secrets against Secret Manager",
		Long: `Sync walks the secret definition files under the source root and
converges the remote state onto them: missing secrets are created, every
declared payload is uploaded as a new version, the previous version is
retired per the file's onUpdate behavior, and labels and access bindings
are brought in line.

Encrypted definitions are decrypted with the configured age identity for
the duration of the upload and re-encrypted afterwards. Without a
configured identity the run is a no-op and exits successfully, so the
command is safe to wire into CI for workspaces that opted out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			gate, err := newGate(cfg)
			if err != nil {
				return err
			}
			if !gate.Configured() {
				cfg.Logger.Info("no encryption key configured, skipping secrets sync")
				return nil
			}

			ctx := context.Background()
			resolvedProject := cfg.ResolveProject(project)
			service, closeService, err := newRemoteService(ctx, resolvedProject, remote.GCPOptions{
				CredentialsFile: credentialsFile,
				Replication:     cfg.Replication(),
			}, cfg.Logger)
			if err != nil {
				return err
			}
			defer closeService()

			reconcile.InitMetrics()
			runner := reconcile.NewRunner(newStore(cfg), gate, service, cfg.Logger)

			if maxConcurrent <= 0 {
				maxConcurrent = cfg.MaxConcurrent()
			}
			result, err := runner.Run(ctx, reconcile.Options{
				Project:       resolvedProject,
				SourceRoot:    cfg.SourceRoot(sourceRoot),
				SecretFilter:  secretName,
				MaxConcurrent: maxConcurrent,
				DryRun:        dryRun,
			})
			if err != nil {
				return err
			}

			if result.Total > 0 {
				cfg.Logger.Info("synced %d/%d secret(s), %d skipped", result.Succeeded, result.Total, result.Skipped)
			}
			if !result.OverallSuccess() {
				return fmt.Errorf("sync completed with %d failed secret(s)", result.Total-result.Succeeded)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "GCP project ID (defaults to config or environment)")
	cmd.Flags().StringVar(&secretName, "secret", "", "Reconcile only the named secret")
	cmd.Flags().StringVar(&sourceRoot, "source-root", "", "Directory holding secret definition files")
	cmd.Flags().StringVar(&credentialsFile, "credentials-file", "", "Path to a service account key file")
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "Maximum secrets reconciled concurrently")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute plans without applying them")

	return cmd
}
