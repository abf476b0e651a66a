// Package sink implements the Result Sink of spec.md §4.7: an append-only,
// best-effort transactional writer. Grounded on the teacher's error-handling
// idiom (log and continue rather than propagate) applied to dbx's
// transaction API, the way Websoft9-AppOS's migrations wrap multi-statement
// writes.
package sink

import (
	"context"
	"fmt"
	"log"

	"github.com/kenny-hash/CyclopsCmd/internal/model"
	"github.com/kenny-hash/CyclopsCmd/internal/store"
)

// Sink commits batches of PersistedResult to the store transactionally. A
// commit failure rolls back, logs, and drops the batch — outcomes already
// delivered to the stream subscriber are not retracted, per spec §4.7.
type Sink struct {
	Store *store.Store
}

// New builds a Sink backed by s.
func New(s *store.Store) *Sink {
	return &Sink{Store: s}
}

// Flush commits results in a single transaction. Every result's password is
// expected to already be the placeholder; Flush does not re-check it — that
// invariant is enforced where PersistedResult values are built
// (internal/exec's toPersistedResult).
func (snk *Sink) Flush(ctx context.Context, results []model.PersistedResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := snk.Store.DB.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := store.InsertResults(tx, results); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("[sink] rollback failed after insert error: %v", rbErr)
		}
		log.Printf("[sink] dropping %d results after flush failure: %v", len(results), err)
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[sink] dropping %d results after commit failure: %v", len(results), err)
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
