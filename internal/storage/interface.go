package storage

import (
	"context"

	"github.com/bankops/bankctl/internal/model"
)

// RunStore defines the interface for persistent run-history storage. Reports
// are saved once, after the pipeline finalizes them, and never mutated.
type RunStore interface {
	// Open initializes the storage and makes it ready for use
	Open() error

	// Close closes the storage and releases any resources
	Close() error

	// SaveRun stores a finished run report
	SaveRun(ctx context.Context, report *model.RunReport) error

	// GetRun retrieves a run report by its ID
	GetRun(ctx context.Context, id string) (*model.RunReport, error)

	// ListRuns retrieves run reports ordered newest first. A limit of zero
	// or less returns every stored run.
	ListRuns(ctx context.Context, limit int) ([]*model.RunReport, error)

	// DeleteRun removes a run report from the history
	DeleteRun(ctx context.Context, id string) error
}

// ErrRunNotFound is returned when a run with the specified ID is not found
type ErrRunNotFound struct {
	RunID string
}

// Error implements the error interface
func (e ErrRunNotFound) Error() string {
	return "run not found: " + e.RunID
}

// IsNotFound returns true if the error is ErrRunNotFound
func IsNotFound(err error) bool {
	_, ok := err.(ErrRunNotFound)
	return ok
}
