package reconcile

import (
	"context"
	"fmt"

	"github.com/systmms/secretsync/internal/definition"
	sserrors "github.com/systmms/secretsync/internal/errors"
	"github.com/systmms/secretsync/internal/logging"
	"github.com/systmms/secretsync/internal/remote"
	"github.com/systmms/secretsync/internal/secure"
)

// Executor applies a reconciliation plan against the remote service.
//
// Create and addVersion failures are fatal for the secret and abort
// its remaining operations. Label updates, retirement and binding
// changes are best-effort: a failure is logged as a warning and the
// secret still counts as succeeded.
type Executor struct {
	service remote.Service
	logger  *logging.Logger
	metrics *Metrics
}

// NewExecutor creates an executor.
func NewExecutor(service remote.Service, logger *logging.Logger, metrics *Metrics) *Executor {
	return &Executor{service: service, logger: logger, metrics: metrics}
}

// Apply executes the plan in order. payload holds the decrypted secret
// material and is only opened for the duration of each upload call.
func (e *Executor) Apply(ctx context.Context, project string, def *definition.Definition, plan Plan, payload *secure.Payload) error {
	name := plan.Secret
	// Version number returned by addVersion, used to locate the
	// immediately preceding version for retirement.
	var newVersion int64

	for _, op := range plan.Ops {
		switch op.Kind {
		case OpCreate:
			err := payload.Use(func(plaintext []byte) error {
				return e.service.Create(ctx, project, name, def.LabelMap(), plaintext)
			})
			e.metrics.RecordRemoteOp(string(op.Kind), err)
			if err != nil {
				return sserrors.RemoteError{Secret: name, Op: string(op.Kind), Err: err}
			}
			e.logger.Info("created secret %s", name)

		case OpAddVersion:
			err := payload.Use(func(plaintext []byte) error {
				var verr error
				newVersion, verr = e.service.AddVersion(ctx, project, name, plaintext)
				return verr
			})
			e.metrics.RecordRemoteOp(string(op.Kind), err)
			if err != nil {
				return sserrors.RemoteError{Secret: name, Op: string(op.Kind), Err: err}
			}
			e.logger.Info("added version %d to secret %s", newVersion, name)

		case OpUpdateLabels:
			err := e.service.UpdateLabels(ctx, project, name, def.LabelMap())
			e.metrics.RecordRemoteOp(string(op.Kind), err)
			if err != nil {
				e.logger.Warn("secret %s: label update failed: %v", name, err)
				continue
			}
			e.logger.Info("updated labels of secret %s", name)

		case OpRetireVersion:
			e.retire(ctx, project, name, op.RetireMode, newVersion)

		case OpGrant:
			err := e.service.GrantAccess(ctx, project, name, op.Principal)
			e.metrics.RecordRemoteOp(string(op.Kind), err)
			if err != nil {
				e.logger.Warn("secret %s: granting access to %s failed: %v", name, op.Principal, err)
				continue
			}
			e.logger.Info("granted %s access to secret %s", op.Principal, name)

		case OpRevoke:
			err := e.service.RevokeAccess(ctx, project, name, op.Principal)
			e.metrics.RecordRemoteOp(string(op.Kind), err)
			if err != nil {
				e.logger.Warn("secret %s: revoking access from %s failed: %v", name, op.Principal, err)
				continue
			}
			e.logger.Info("revoked access of %s from secret %s", op.Principal, name)

		default:
			return fmt.Errorf("unknown operation %q in plan for %s", op.Kind, name)
		}
	}

	return nil
}

// retire disables or destroys the version immediately preceding the
// one just uploaded. A secret whose upload produced version 1 has no
// predecessor, so there is nothing to retire.
func (e *Executor) retire(ctx context.Context, project, name, mode string, newVersion int64) {
	prev := newVersion - 1
	if prev < 1 {
		e.logger.Debug("secret %s: no previous version to retire", name)
		return
	}

	var err error
	switch mode {
	case definition.UpdateDisable:
		err = e.service.DisableVersion(ctx, project, name, prev)
	case definition.UpdateDestroy:
		err = e.service.DestroyVersion(ctx, project, name, prev)
	}
	e.metrics.RecordRemoteOp(string(OpRetireVersion), err)
	if err != nil {
		e.logger.Warn("secret %s: retiring version %d (%s) failed: %v", name, prev, mode, err)
		return
	}
	e.logger.Info("retired version %d of secret %s (%s)", prev, name, mode)
}
