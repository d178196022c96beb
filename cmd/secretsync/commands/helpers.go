package commands

import (
	"context"

	"github.com/systmms/secretsync/internal/config"
	"github.com/systmms/secretsync/internal/crypt"
	"github.com/systmms/secretsync/internal/definition"
	"github.com/systmms/secretsync/internal/logging"
	"github.com/systmms/secretsync/internal/remote"
)

// newRemoteService builds the Secret Manager client. Tests replace this
// with an in-memory fake.
var newRemoteService = func(ctx context.Context, project string, opts remote.GCPOptions, logger *logging.Logger) (remote.Service, func(), error) {
	svc, err := remote.NewGCPService(ctx, project, opts, logger)
	if err != nil {
		return nil, nil, err
	}
	return svc, func() { _ = svc.Close() }, nil
}

func newGate(cfg *config.Config) (*crypt.Gate, error) {
	return crypt.NewGate(cfg.AgeKeyFile(), cfg.Logger)
}

func newStore(cfg *config.Config) *definition.Store {
	return definition.NewStore(cfg.Logger)
}
