// Package storage defines the persistence interface for split run history.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/pagesplit/internal/models"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Storage defines run history operations.
type Storage interface {
	// CreateRun records a completed run and its outputs.
	CreateRun(ctx context.Context, run *models.RunResult) error
	GetRun(ctx context.Context, id string) (*models.RunResult, error)
	// ListRuns returns runs newest first, without outputs.
	ListRuns(ctx context.Context, offset, limit int) ([]*models.RunResult, error)
	// HasDigest reports whether an input with this content digest was already split.
	HasDigest(ctx context.Context, digest string) (bool, error)

	// Stats
	CountRuns(ctx context.Context) (int64, error)
	CountOutputs(ctx context.Context) (int64, error)

	Close() error
}
