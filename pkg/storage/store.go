package storage

import (
	"context"

	"github.com/compii/playground/pkg/api"
)

// Default and maximum page sizes for ListRuns.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// RunStore persists completed runs. Implementations must be safe for
// concurrent use and scope every read by the owner found in the context.
type RunStore interface {
	// SaveRun stores a run. Returns ErrConflict if the ID already exists.
	SaveRun(ctx context.Context, run *api.Run) error

	// GetRun returns the run with the given ID or ErrNotFound.
	GetRun(ctx context.Context, id string) (*api.Run, error)

	// ListRuns returns a page of runs ordered by creation time.
	ListRuns(ctx context.Context, opts ListOptions) (*api.RunList, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases held resources.
	Close() error
}

// ListOptions controls pagination for ListRuns.
type ListOptions struct {
	Limit int    // 1..MaxListLimit, default DefaultListLimit
	After string // cursor: return runs after this ID in the chosen order
	Order string // "asc" or "desc" (default)
}

// NormalizedLimit clamps Limit into the accepted range.
func (o ListOptions) NormalizedLimit() int {
	switch {
	case o.Limit <= 0:
		return DefaultListLimit
	case o.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return o.Limit
	}
}

// Ascending reports whether the caller asked for oldest-first order.
func (o ListOptions) Ascending() bool {
	return o.Order == "asc"
}
