package state

import (
	"io"
	"time"
)

// RunStore handles run history persistence.
type RunStore interface {
	RecordRun(r *Run) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]Run, error)
	PurgeOldRuns(olderThan time.Duration) (int64, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
}

// StateStore is the full history backend used at start-up.
type StateStore interface {
	io.Closer
	Migrator
	RunStore
}

var (
	_ StateStore = (*DB)(nil)
	_ RunStore   = (*DB)(nil)
)
