// Package publish copies produced files to a remote destination and returns a retrievable reference.
package publish

import (
	"context"
	"fmt"

	"github.com/hyperjump/pagesplit/internal/config"
	"go.uber.org/zap"
)

// Publisher copies a local file to its destination and returns a URL for it.
type Publisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
}

// New returns the publisher for cfg, or nil when publishing is disabled.
func New(cfg *config.RemoteConfig, logger *zap.Logger) (Publisher, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	switch cfg.Driver {
	case config.DriverRclone:
		return NewRclone(cfg.Destination, WithRcloneLogger(logger)), nil
	case config.DriverAFS:
		return NewAFS(cfg.Destination), nil
	default:
		return nil, fmt.Errorf("unknown remote driver %q", cfg.Driver)
	}
}
