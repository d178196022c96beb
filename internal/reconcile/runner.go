package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/systmms/secretsync/internal/crypt"
	"github.com/systmms/secretsync/internal/definition"
	sserrors "github.com/systmms/secretsync/internal/errors"
	"github.com/systmms/secretsync/internal/logging"
	"github.com/systmms/secretsync/internal/remote"
	"github.com/systmms/secretsync/internal/secure"
)

// Options configures a reconciliation run.
type Options struct {
	// Project is the remote scope qualifier. Empty uses the service's
	// default project.
	Project string
	// SourceRoot is the directory holding definition files.
	SourceRoot string
	// SecretFilter, when set, reconciles only the named secret. All
	// other declared secrets are skipped and count as successful.
	SecretFilter string
	// MaxConcurrent bounds the number of secrets reconciled at once.
	MaxConcurrent int
	// DryRun computes and logs plans without touching remote state or
	// definition files.
	DryRun bool
}

// SecretResult is the outcome for a single declared secret.
type SecretResult struct {
	Name    string
	Path    string
	Skipped bool
	Plan    Plan
	Err     error
}

// RunResult aggregates per-secret outcomes. Skipped secrets count as
// succeeded.
type RunResult struct {
	Total     int
	Succeeded int
	Skipped   int
	Results   []SecretResult
}

// OverallSuccess reports whether every non-skipped secret succeeded.
func (r RunResult) OverallSuccess() bool {
	return r.Succeeded == r.Total
}

// Runner coordinates a reconciliation run: gate check, file
// enumeration, one remote listing snapshot, then an isolated
// reconciliation unit per secret.
type Runner struct {
	store   *definition.Store
	gate    *crypt.Gate
	service remote.Service
	planner *Planner
	exec    *Executor
	logger  *logging.Logger
	metrics *Metrics
}

// NewRunner creates a runner.
func NewRunner(store *definition.Store, gate *crypt.Gate, service remote.Service, logger *logging.Logger) *Runner {
	metrics := NewMetrics()
	return &Runner{
		store:   store,
		gate:    gate,
		service: service,
		planner: NewPlanner(logger),
		exec:    NewExecutor(service, logger, metrics),
		logger:  logger,
		metrics: metrics,
	}
}

// Run reconciles all declared secrets under opts.SourceRoot. The
// returned error is non-nil only for run-level failures (bad source
// root, failed remote listing); per-secret failures are reported
// through the RunResult.
func (r *Runner) Run(ctx context.Context, opts Options) (RunResult, error) {
	start := time.Now()

	if !r.gate.Configured() {
		// Secrets management is opt-in per workspace: no key, no work,
		// and that is a successful run.
		r.logger.Info("no encryption key configured, skipping secrets sync")
		return RunResult{}, nil
	}

	paths, err := r.store.List(opts.SourceRoot)
	if err != nil {
		return RunResult{}, err
	}
	if len(paths) == 0 {
		r.logger.Info("no secret definitions found under %s", opts.SourceRoot)
		return RunResult{}, nil
	}

	// One listing per run. Every unit diffs against this snapshot; a
	// change to remote state after this point is a documented race.
	snapshot, err := r.service.ListSecrets(ctx, opts.Project)
	if err != nil {
		return RunResult{}, sserrors.UserError{
			Message:    "Failed to list remote secrets",
			Details:    err.Error(),
			Suggestion: remote.Suggestion(err),
			Err:        err,
		}
	}

	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}

	results := make([]SecretResult, len(paths))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, maxConcurrent)

	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			results[i] = r.reconcileOne(ctx, path, snapshot, opts)
		}(i, path)
	}
	wg.Wait()

	result := RunResult{Total: len(results), Results: results}
	for _, res := range results {
		switch {
		case res.Skipped:
			result.Skipped++
			result.Succeeded++
			r.metrics.RecordSecret("skipped")
		case res.Err == nil:
			result.Succeeded++
			r.metrics.RecordSecret("succeeded")
		default:
			r.logger.Error("secret %s: %v", res.Name, res.Err)
			r.metrics.RecordSecret("failed")
		}
	}

	r.metrics.RecordRun(result.OverallSuccess(), time.Since(start))
	return result, nil
}

// reconcileOne is the isolated unit of work for a single definition
// file. All errors, including panics, stay inside the returned result,
// and a definition decrypted on disk is re-encrypted on every exit
// path.
func (r *Runner) reconcileOne(ctx context.Context, path string, snapshot map[string]remote.Secret, opts Options) (res SecretResult) {
	res.Name = definition.NameFromPath(path)
	res.Path = path

	if opts.SecretFilter != "" && res.Name != opts.SecretFilter {
		res.Skipped = true
		return res
	}

	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("panic while reconciling %s: %v", res.Name, p)
		}
	}()

	def, err := r.store.Read(path)
	if err != nil {
		res.Err = err
		return res
	}

	var remoteSecret *remote.Secret
	if sec, ok := snapshot[def.Name]; ok {
		remoteSecret = &sec
	}

	bindings, bindingsKnown := r.currentBindings(ctx, def, remoteSecret, opts.Project)
	planDef := def
	if !bindingsKnown {
		// Without the current bindings no meaningful diff exists, so
		// access enforcement is dropped for this pass.
		unenforced := *def
		unenforced.ServiceAccounts = nil
		planDef = &unenforced
	}
	res.Plan = r.planner.Build(planDef, remoteSecret, bindings)

	if opts.DryRun {
		r.logger.Info("secret %s: would apply %d operation(s)", def.Name, len(res.Plan.Ops))
		return res
	}

	if def.Encrypted() {
		plain, err := r.gate.Decrypt(def)
		if err != nil {
			// The file has not been touched; it stays encrypted.
			res.Err = err
			return res
		}
		if err := r.store.Write(path, plain); err != nil {
			res.Err = err
			return res
		}
		// Restore encryption on every exit path. The plaintext window
		// on disk is bounded to this unit of work.
		defer func() {
			enc, encErr := r.gate.Encrypt(plain)
			if encErr == nil {
				encErr = r.store.Write(path, enc)
			}
			if encErr != nil {
				r.logger.Error("secret %s: failed to restore encryption: %v", def.Name, encErr)
				if res.Err == nil {
					res.Err = encErr
				}
			}
		}()
		def = plain
	}

	payload := secure.NewPayload([]byte(def.Payload))
	defer payload.Destroy()

	if err := r.exec.Apply(ctx, opts.Project, def, res.Plan, payload); err != nil {
		res.Err = err
	}
	return res
}

// currentBindings lazily reads the accessor bindings of an existing
// secret, and only when the definition declares a service account
// list. The boolean is false when the bindings could not be read; the
// caller then leaves access untouched for this pass instead of failing
// the secret.
func (r *Runner) currentBindings(ctx context.Context, def *definition.Definition, remoteSecret *remote.Secret, project string) ([]string, bool) {
	if !def.EnforcesAccess() {
		return nil, true
	}
	if remoteSecret == nil {
		// Nothing exists yet, so nothing is bound yet.
		return nil, true
	}
	bindings, err := r.service.AccessBindings(ctx, project, def.Name)
	if err != nil {
		r.logger.Warn("secret %s: cannot read access bindings, leaving them untouched: %v", def.Name, err)
		return nil, false
	}
	return bindings, true
}
