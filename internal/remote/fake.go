package remote

import (
	"context"
	"strings"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Version states tracked by the fake.
const (
	VersionEnabled   = "enabled"
	VersionDisabled  = "disabled"
	VersionDestroyed = "destroyed"
)

// FakeSecret is the fake's mutable record of one remote secret.
type FakeSecret struct {
	Labels   map[string]string
	Versions []string // state per version, index 0 is version 1
	Payloads [][]byte // uploaded data per version, parallel to Versions
	Bindings []string // principals bound to the accessor role
}

// Fake is an in-memory Service for tests: a mutable map of secrets,
// labels, versions and bindings, with per-operation injectable errors
// and a call log for asserting operation order.
type Fake struct {
	mu      sync.Mutex
	Secrets map[string]*FakeSecret
	// Errors maps "op" or "op:name" to an error returned by that call.
	Errors map[string]error
	// Calls records every invocation as "op:name" in order.
	Calls []string
}

// NewFake creates an empty fake service.
func NewFake() *Fake {
	return &Fake{
		Secrets: make(map[string]*FakeSecret),
		Errors:  make(map[string]error),
	}
}

// Seed adds a secret with the given labels and one enabled version.
func (f *Fake) Seed(name string, labels map[string]string) *FakeSecret {
	f.mu.Lock()
	defer f.mu.Unlock()
	if labels == nil {
		labels = map[string]string{}
	}
	sec := &FakeSecret{Labels: labels, Versions: []string{VersionEnabled}}
	f.Secrets[name] = sec
	return sec
}

// FailWith configures the error returned for an operation, either
// globally ("list") or per secret ("create:db-password").
func (f *Fake) FailWith(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[key] = err
}

// CallLog returns a copy of the recorded calls.
func (f *Fake) CallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

// CallsFor returns the recorded operations touching the named secret,
// stripped of the name.
func (f *Fake) CallsFor(name string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.Calls {
		op, rest, found := strings.Cut(c, ":")
		if !found {
			continue
		}
		secret, detail, _ := strings.Cut(rest, ":")
		if secret != name {
			continue
		}
		if detail != "" {
			out = append(out, op+" "+detail)
		} else {
			out = append(out, op)
		}
	}
	return out
}

// record logs the call and returns any injected error. detail (e.g. the
// principal of a grant) is recorded but not part of the error key.
func (f *Fake) record(op, name, detail string) error {
	entry := op
	if name != "" {
		entry += ":" + name
	}
	if detail != "" {
		entry += ":" + detail
	}
	f.Calls = append(f.Calls, entry)
	if name != "" {
		if err, ok := f.Errors[op+":"+name]; ok {
			return err
		}
	}
	if err, ok := f.Errors[op]; ok {
		return err
	}
	return nil
}

func (f *Fake) ListSecrets(_ context.Context, _ string) (map[string]Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("list", "", ""); err != nil {
		return nil, err
	}
	out := make(map[string]Secret, len(f.Secrets))
	for name, sec := range f.Secrets {
		labels := make(map[string]string, len(sec.Labels))
		for k, v := range sec.Labels {
			labels[k] = v
		}
		out[name] = Secret{Name: name, Labels: labels}
	}
	return out, nil
}

func (f *Fake) AccessBindings(_ context.Context, _ string, name string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("bindings", name, ""); err != nil {
		return nil, err
	}
	sec, ok := f.Secrets[name]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "secret %s not found", name)
	}
	return append([]string(nil), sec.Bindings...), nil
}

func (f *Fake) Create(_ context.Context, _ string, name string, labels map[string]string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("create", name, ""); err != nil {
		return err
	}
	if _, exists := f.Secrets[name]; exists {
		return status.Errorf(codes.AlreadyExists, "secret %s already exists", name)
	}
	if labels == nil {
		labels = map[string]string{}
	}
	f.Secrets[name] = &FakeSecret{
		Labels:   labels,
		Versions: []string{VersionEnabled},
		Payloads: [][]byte{append([]byte(nil), payload...)},
	}
	return nil
}

func (f *Fake) AddVersion(_ context.Context, _ string, name string, payload []byte) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("addVersion", name, ""); err != nil {
		return 0, err
	}
	sec, ok := f.Secrets[name]
	if !ok {
		return 0, status.Errorf(codes.NotFound, "secret %s not found", name)
	}
	sec.Versions = append(sec.Versions, VersionEnabled)
	sec.Payloads = append(sec.Payloads, append([]byte(nil), payload...))
	return int64(len(sec.Versions)), nil
}

func (f *Fake) UpdateLabels(_ context.Context, _ string, name string, labels map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("updateLabels", name, ""); err != nil {
		return err
	}
	sec, ok := f.Secrets[name]
	if !ok {
		return status.Errorf(codes.NotFound, "secret %s not found", name)
	}
	sec.Labels = make(map[string]string, len(labels))
	for k, v := range labels {
		sec.Labels[k] = v
	}
	return nil
}

func (f *Fake) DisableVersion(_ context.Context, _ string, name string, version int64) error {
	return f.setVersionState("disable", name, version, VersionDisabled)
}

func (f *Fake) DestroyVersion(_ context.Context, _ string, name string, version int64) error {
	return f.setVersionState("destroy", name, version, VersionDestroyed)
}

func (f *Fake) setVersionState(op, name string, version int64, state string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(op, name, ""); err != nil {
		return err
	}
	sec, ok := f.Secrets[name]
	if !ok {
		return status.Errorf(codes.NotFound, "secret %s not found", name)
	}
	if version < 1 || version > int64(len(sec.Versions)) {
		return status.Errorf(codes.NotFound, "version %d of %s not found", version, name)
	}
	sec.Versions[version-1] = state
	return nil
}

func (f *Fake) GrantAccess(_ context.Context, _ string, name, principal string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("grant", name, principal); err != nil {
		return err
	}
	sec, ok := f.Secrets[name]
	if !ok {
		return status.Errorf(codes.NotFound, "secret %s not found", name)
	}
	for _, p := range sec.Bindings {
		if p == principal {
			return nil
		}
	}
	sec.Bindings = append(sec.Bindings, principal)
	return nil
}

func (f *Fake) RevokeAccess(_ context.Context, _ string, name, principal string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("revoke", name, principal); err != nil {
		return err
	}
	sec, ok := f.Secrets[name]
	if !ok {
		return status.Errorf(codes.NotFound, "secret %s not found", name)
	}
	kept := sec.Bindings[:0]
	for _, p := range sec.Bindings {
		if p != principal {
			kept = append(kept, p)
		}
	}
	sec.Bindings = kept
	return nil
}

var _ Service = (*Fake)(nil)
