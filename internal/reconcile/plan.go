// Package reconcile computes and applies the remote changes needed to
// converge Secret Manager onto the locally declared secret definitions.
package reconcile

import (
	"sort"

	"github.com/systmms/secretsync/internal/definition"
	"github.com/systmms/secretsync/internal/logging"
	"github.com/systmms/secretsync/internal/remote"
)

// OpKind identifies a planned remote operation.
type OpKind string

const (
	OpCreate        OpKind = "create"
	OpUpdateLabels  OpKind = "updateLabels"
	OpAddVersion    OpKind = "addVersion"
	OpRetireVersion OpKind = "retireVersion"
	OpGrant         OpKind = "grant"
	OpRevoke        OpKind = "revoke"
)

// Op is one planned remote operation.
type Op struct {
	Kind OpKind
	// RetireMode is "disable" or "destroy", set for OpRetireVersion.
	RetireMode string
	// Principal is set for OpGrant and OpRevoke.
	Principal string
}

// Plan is the ordered operation list for one secret in one run. Ops
// execute in slice order; create never coexists with addVersion, and
// retireVersion only ever follows addVersion.
type Plan struct {
	Secret string
	Ops    []Op
}

// Empty reports whether the plan contains no operations.
func (p Plan) Empty() bool {
	return len(p.Ops) == 0
}

// Has reports whether the plan contains an operation of the given kind.
func (p Plan) Has(kind OpKind) bool {
	for _, op := range p.Ops {
		if op.Kind == kind {
			return true
		}
	}
	return false
}

// Planner computes reconciliation plans from a declared definition and
// the remote snapshot.
type Planner struct {
	logger *logging.Logger
}

// NewPlanner creates a planner.
func NewPlanner(logger *logging.Logger) *Planner {
	return &Planner{logger: logger}
}

// Build computes the plan for one secret. remoteSecret is nil when the
// secret does not exist remotely. bindings are the current accessor
// principals; they are only consulted when the definition declares a
// service account list, and are expected to be empty for a secret that
// does not exist yet.
func (p *Planner) Build(def *definition.Definition, remoteSecret *remote.Secret, bindings []string) Plan {
	plan := Plan{Secret: def.Name}

	if remoteSecret == nil {
		// Creation carries the initial labels, so no label update is
		// planned in the same pass.
		plan.Ops = append(plan.Ops, Op{Kind: OpCreate})
	} else {
		if !labelsEqual(def.LabelMap(), remoteSecret.Labels) {
			// Labels describe the secret container, not a version, so
			// the update goes first: it lands even if the version
			// upload fails later.
			plan.Ops = append(plan.Ops, Op{Kind: OpUpdateLabels})
		}

		// Every pass uploads the current payload as a new version.
		// Payload-level diffing against the remote value would require
		// reading the secret back, which the engine deliberately never
		// does.
		plan.Ops = append(plan.Ops, Op{Kind: OpAddVersion})

		if mode, ok := p.retireMode(def); ok {
			plan.Ops = append(plan.Ops, Op{Kind: OpRetireVersion, RetireMode: mode})
		}
	}

	if def.EnforcesAccess() {
		toGrant, toRevoke := diffBindings(def.ServiceAccounts, bindings)
		for _, principal := range toGrant {
			plan.Ops = append(plan.Ops, Op{Kind: OpGrant, Principal: principal})
		}
		for _, principal := range toRevoke {
			plan.Ops = append(plan.Ops, Op{Kind: OpRevoke, Principal: principal})
		}
	}

	return plan
}

// retireMode resolves the definition's update behavior into a
// retirement mode. The default is destroy; "none" plans no retirement;
// an unrecognized value is logged and skipped without failing the
// secret.
func (p *Planner) retireMode(def *definition.Definition) (string, bool) {
	switch def.OnUpdate {
	case "", definition.UpdateDestroy:
		return definition.UpdateDestroy, true
	case definition.UpdateDisable:
		return definition.UpdateDisable, true
	case definition.UpdateNone:
		return "", false
	default:
		p.logger.Warn("secret %s: unknown onUpdate behavior %q, previous version left untouched", def.Name, def.OnUpdate)
		return "", false
	}
}

// labelsEqual compares declared and remote labels as sets of key=value
// pairs, independent of declaration order.
func labelsEqual(declared, current map[string]string) bool {
	if len(declared) != len(current) {
		return false
	}
	for k, v := range declared {
		if cv, ok := current[k]; !ok || cv != v {
			return false
		}
	}
	return true
}

// diffBindings computes the pure set difference between declared and
// current principals. Results are sorted so plans are deterministic
// regardless of input order.
func diffBindings(declared, current []string) (toGrant, toRevoke []string) {
	declaredSet := make(map[string]struct{}, len(declared))
	for _, p := range declared {
		declaredSet[p] = struct{}{}
	}
	currentSet := make(map[string]struct{}, len(current))
	for _, p := range current {
		currentSet[p] = struct{}{}
	}

	for p := range declaredSet {
		if _, ok := currentSet[p]; !ok {
			toGrant = append(toGrant, p)
		}
	}
	for p := range currentSet {
		if _, ok := declaredSet[p]; !ok {
			toRevoke = append(toRevoke, p)
		}
	}
	sort.Strings(toGrant)
	sort.Strings(toRevoke)
	return toGrant, toRevoke
}
