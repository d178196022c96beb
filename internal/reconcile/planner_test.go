package reconcile

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/secretsync/internal/definition"
	"github.com/systmms/secretsync/internal/logging"
	"github.com/systmms/secretsync/internal/remote"
)

func newTestPlanner() (*Planner, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewPlanner(logging.NewWithWriter(&buf, false, true)), &buf
}

func kinds(p Plan) []OpKind {
	out := make([]OpKind, len(p.Ops))
	for i, op := range p.Ops {
		out[i] = op.Kind
	}
	return out
}

func TestPlanNewSecretIsCreateOnly(t *testing.T) {
	planner, _ := newTestPlanner()
	def := &definition.Definition{
		Name:   "db",
		Labels: []definition.Label{{Key: "env", Value: "prod"}},
	}

	plan := planner.Build(def, nil, nil)

	assert.Equal(t, []OpKind{OpCreate}, kinds(plan))
	assert.False(t, plan.Has(OpAddVersion))
	assert.False(t, plan.Has(OpRetireVersion))
	assert.False(t, plan.Has(OpUpdateLabels), "creation already carries the initial labels")
}

func TestPlanExistingSecretAlwaysAddsVersion(t *testing.T) {
	planner, _ := newTestPlanner()
	def := &definition.Definition{Name: "db"}
	rs := &remote.Secret{Name: "db", Labels: map[string]string{}}

	plan := planner.Build(def, rs, nil)

	assert.Equal(t, []OpKind{OpAddVersion, OpRetireVersion}, kinds(plan))
	assert.Equal(t, definition.UpdateDestroy, plan.Ops[1].RetireMode, "destroy is the default update behavior")
}

func TestPlanLabelDiffIsOrderIndependent(t *testing.T) {
	planner, _ := newTestPlanner()
	def := &definition.Definition{
		Name: "db",
		Labels: []definition.Label{
			{Key: "a", Value: "1"},
			{Key: "b", Value: "2"},
		},
		OnUpdate: definition.UpdateNone,
	}
	rs := &remote.Secret{Name: "db", Labels: map[string]string{"b": "2", "a": "1"}}

	plan := planner.Build(def, rs, nil)

	assert.False(t, plan.Has(OpUpdateLabels), "identical label sets must not plan an update")
	assert.Equal(t, []OpKind{OpAddVersion}, kinds(plan))
}

func TestPlanLabelChangeOrdersUpdateBeforeVersion(t *testing.T) {
	// db exists with env=staging, declared env=prod, destroy policy.
	planner, _ := newTestPlanner()
	def := &definition.Definition{
		Name:     "db",
		Labels:   []definition.Label{{Key: "env", Value: "prod"}},
		OnUpdate: definition.UpdateDestroy,
	}
	rs := &remote.Secret{Name: "db", Labels: map[string]string{"env": "staging"}}

	plan := planner.Build(def, rs, nil)

	require.Equal(t, []OpKind{OpUpdateLabels, OpAddVersion, OpRetireVersion}, kinds(plan))
	assert.Equal(t, definition.UpdateDestroy, plan.Ops[2].RetireMode)
}

func TestPlanLabelValueAndCountDifferences(t *testing.T) {
	planner, _ := newTestPlanner()
	tests := []struct {
		name     string
		declared []definition.Label
		current  map[string]string
		update   bool
	}{
		{
			name:     "value_changed",
			declared: []definition.Label{{Key: "env", Value: "prod"}},
			current:  map[string]string{"env": "staging"},
			update:   true,
		},
		{
			name:     "remote_has_extra_label",
			declared: []definition.Label{{Key: "env", Value: "prod"}},
			current:  map[string]string{"env": "prod", "team": "x"},
			update:   true,
		},
		{
			name:     "declared_has_extra_label",
			declared: []definition.Label{{Key: "env", Value: "prod"}, {Key: "team", Value: "x"}},
			current:  map[string]string{"env": "prod"},
			update:   true,
		},
		{
			name:     "both_empty",
			declared: nil,
			current:  map[string]string{},
			update:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := &definition.Definition{Name: "db", Labels: tt.declared, OnUpdate: definition.UpdateNone}
			plan := planner.Build(def, &remote.Secret{Name: "db", Labels: tt.current}, nil)
			assert.Equal(t, tt.update, plan.Has(OpUpdateLabels))
		})
	}
}

func TestPlanRetirementModes(t *testing.T) {
	tests := []struct {
		name     string
		onUpdate string
		retire   bool
		mode     string
		warn     bool
	}{
		{name: "default_destroys", onUpdate: "", retire: true, mode: definition.UpdateDestroy},
		{name: "explicit_destroy", onUpdate: "destroy", retire: true, mode: definition.UpdateDestroy},
		{name: "disable", onUpdate: "disable", retire: true, mode: definition.UpdateDisable},
		{name: "none", onUpdate: "none", retire: false},
		{name: "unknown_warns_and_skips", onUpdate: "shred", retire: false, warn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planner, buf := newTestPlanner()
			def := &definition.Definition{Name: "db", OnUpdate: tt.onUpdate}
			plan := planner.Build(def, &remote.Secret{Name: "db", Labels: map[string]string{}}, nil)

			assert.Equal(t, tt.retire, plan.Has(OpRetireVersion))
			if tt.retire {
				assert.Equal(t, tt.mode, plan.Ops[len(plan.Ops)-1].RetireMode)
			}
			if tt.warn {
				assert.Contains(t, buf.String(), "unknown onUpdate behavior")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestPlanBindingDiffIsPureSetDifference(t *testing.T) {
	planner, _ := newTestPlanner()
	def := &definition.Definition{
		Name:            "db",
		OnUpdate:        definition.UpdateNone,
		ServiceAccounts: []string{"x@acme.com", "y@acme.com"},
	}
	rs := &remote.Secret{Name: "db", Labels: map[string]string{}}

	// Same diff regardless of input ordering.
	for _, current := range [][]string{
		{"y@acme.com", "z@acme.com"},
		{"z@acme.com", "y@acme.com"},
	} {
		plan := planner.Build(def, rs, current)

		var grants, revokes []string
		for _, op := range plan.Ops {
			switch op.Kind {
			case OpGrant:
				grants = append(grants, op.Principal)
			case OpRevoke:
				revokes = append(revokes, op.Principal)
			}
		}
		assert.Equal(t, []string{"x@acme.com"}, grants)
		assert.Equal(t, []string{"z@acme.com"}, revokes)
	}
}

func TestPlanBindingsAfterExistence(t *testing.T) {
	planner, _ := newTestPlanner()
	def := &definition.Definition{
		Name:            "db",
		OnUpdate:        definition.UpdateNone,
		ServiceAccounts: []string{"x@acme.com"},
	}

	created := planner.Build(def, nil, nil)
	require.Equal(t, []OpKind{OpCreate, OpGrant}, kinds(created), "grants follow creation")

	existing := planner.Build(def, &remote.Secret{Name: "db", Labels: map[string]string{}}, nil)
	require.Equal(t, []OpKind{OpAddVersion, OpGrant}, kinds(existing))
}

func TestPlanNoServiceAccountsLeavesBindingsAlone(t *testing.T) {
	planner, _ := newTestPlanner()
	def := &definition.Definition{Name: "db", OnUpdate: definition.UpdateNone}

	// Current bindings exist remotely, but absence of serviceAccounts
	// means no enforcement.
	plan := planner.Build(def, &remote.Secret{Name: "db", Labels: map[string]string{}}, []string{"z@acme.com"})

	assert.False(t, plan.Has(OpGrant))
	assert.False(t, plan.Has(OpRevoke))
}

func TestPlanEmptyServiceAccountsRevokesAll(t *testing.T) {
	planner, _ := newTestPlanner()
	def := &definition.Definition{
		Name:            "db",
		OnUpdate:        definition.UpdateNone,
		ServiceAccounts: []string{},
	}

	plan := planner.Build(def, &remote.Secret{Name: "db", Labels: map[string]string{}}, []string{"a@acme.com", "b@acme.com"})

	var revokes []string
	for _, op := range plan.Ops {
		if op.Kind == OpRevoke {
			revokes = append(revokes, op.Principal)
		}
	}
	assert.Equal(t, []string{"a@acme.com", "b@acme.com"}, revokes)
	assert.False(t, plan.Has(OpGrant))
}

func TestPlanCreateNeverCoexistsWithAddVersion(t *testing.T) {
	planner, _ := newTestPlanner()
	defs := []*definition.Definition{
		{Name: "a"},
		{Name: "b", Labels: []definition.Label{{Key: "k", Value: "v"}}, ServiceAccounts: []string{"x@acme.com"}},
	}

	for _, def := range defs {
		for _, rs := range []*remote.Secret{nil, {Name: def.Name, Labels: map[string]string{}}} {
			plan := planner.Build(def, rs, nil)
			assert.False(t, plan.Has(OpCreate) && plan.Has(OpAddVersion),
				"create and addVersion must never share a plan")
		}
	}
}
