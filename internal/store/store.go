// Package store owns all reads and writes of the job store and the
// structured-record store. Mutual exclusion between workers is per-job,
// enforced by conditional updates here rather than any process-wide lock.
package store

import (
	"errors"

	"github.com/minki/fundscan/internal/db"
)

// ErrClaimConflict is returned when a conditional claim or release finds the
// job no longer in the expected state. Losing a claim race is not an error
// condition for the caller; it observes this and moves on.
var ErrClaimConflict = errors.New("job claim conflict")

type Store struct {
	pool db.Pool
}

func New(pool db.Pool) *Store {
	return &Store{pool: pool}
}
