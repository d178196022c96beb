package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/secretsync/internal/config"
	"github.com/systmms/secretsync/internal/definition"
	sserrors "github.com/systmms/secretsync/internal/errors"
	"github.com/systmms/secretsync/internal/reconcile"
	"github.com/systmms/secretsync/internal/remote"
)

// planRow is one secret's planned work, for table and JSON output.
type planRow struct {
	Name       string   `json:"name"`
	Path       string   `json:"path"`
	Exists     bool     `json:"exists"`
	Operations []string `json:"operations"`
	Error      string   `json:"error,omitempty"`
}

func NewPlanCommand(cfg *config.Config) *cobra.Command {
	var (
		project         string
		secretName      string
		sourceRoot      string
		credentialsFile string
		outputJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what sync would do (no values shown, no changes made)",
		Long: `Plan diffs the declared secret definitions against the remote state and
prints the operations a sync run would apply. Nothing is decrypted and
nothing is written, so no age identity is needed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
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

			store := newStore(cfg)
			paths, err := store.List(cfg.SourceRoot(sourceRoot))
			if err != nil {
				return err
			}

			snapshot, err := service.ListSecrets(ctx, resolvedProject)
			if err != nil {
				return sserrors.UserError{
					Message:    "Failed to list remote secrets",
					Details:    err.Error(),
					Suggestion: remote.Suggestion(err),
					Err:        err,
				}
			}

			planner := reconcile.NewPlanner(cfg.Logger)
			var rows []planRow
			for _, path := range paths {
				name := definition.NameFromPath(path)
				if secretName != "" && name != secretName {
					continue
				}
				rows = append(rows, buildPlanRow(ctx, planner, store, service, resolvedProject, path, name, snapshot))
			}

			if outputJSON {
				return outputPlanJSON(rows)
			}
			return outputPlanTable(rows)
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "GCP project ID (defaults to config or environment)")
	cmd.Flags().StringVar(&secretName, "secret", "", "Plan only the named secret")
	cmd.Flags().StringVar(&sourceRoot, "source-root", "", "Directory holding secret definition files")
	cmd.Flags().StringVar(&credentialsFile, "credentials-file", "", "Path to a service account key file")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")

	return cmd
}

func buildPlanRow(ctx context.Context, planner *reconcile.Planner, store *definition.Store, service remote.Service, project, path, name string, snapshot map[string]remote.Secret) planRow {
	row := planRow{Name: name, Path: path}

	def, err := store.Read(path)
	if err != nil {
		row.Error = err.Error()
		return row
	}

	var remoteSecret *remote.Secret
	if sec, ok := snapshot[name]; ok {
		remoteSecret = &sec
		row.Exists = true
	}

	var bindings []string
	if def.EnforcesAccess() && remoteSecret != nil {
		bindings, err = service.AccessBindings(ctx, project, name)
		if err != nil {
			row.Error = fmt.Sprintf("cannot read access bindings: %v", err)
			unenforced := *def
			unenforced.ServiceAccounts = nil
			def = &unenforced
		}
	}

	plan := planner.Build(def, remoteSecret, bindings)
	for _, op := range plan.Ops {
		row.Operations = append(row.Operations, formatOp(op))
	}
	return row
}

func formatOp(op reconcile.Op) string {
	switch op.Kind {
	case reconcile.OpRetireVersion:
		return fmt.Sprintf("%s(%s)", op.Kind, op.RetireMode)
	case reconcile.OpGrant, reconcile.OpRevoke:
		return fmt.Sprintf("%s(%s)", op.Kind, op.Principal)
	default:
		return string(op.Kind)
	}
}

func outputPlanJSON(rows []planRow) error {
	output := map[string]interface{}{
		"secrets": rows,
		"summary": map[string]interface{}{
			"total":  len(rows),
			"errors": countPlanErrors(rows),
		},
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func outputPlanTable(rows []planRow) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "SECRET\tSTATE\tOPERATIONS\n")
	_, _ = fmt.Fprintf(w, "------\t-----\t----------\n")

	for _, row := range rows {
		state := "new"
		if row.Exists {
			state = "exists"
		}
		ops := "-"
		if len(row.Operations) > 0 {
			ops = row.Operations[0]
			for _, op := range row.Operations[1:] {
				ops += ", " + op
			}
		}
		if row.Error != "" {
			state = "✗ ERROR"
			ops = row.Error
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", row.Name, state, ops)
	}

	_ = w.Flush()

	errorCount := countPlanErrors(rows)
	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Total secrets: %d\n", len(rows))

	if errorCount > 0 {
		fmt.Printf("  Errors: %d\n", errorCount)
		return fmt.Errorf("plan completed with %d errors", errorCount)
	}

	fmt.Printf("\n✓ Run 'secretsync sync' to apply\n")
	return nil
}

func countPlanErrors(rows []planRow) int {
	n := 0
	for _, row := range rows {
		if row.Error != "" {
			n++
		}
	}
	return n
}
