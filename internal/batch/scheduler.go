// Package batch implements the Batch Scheduler of spec.md §4.4: it fans a
// Batch's rows out to Host Workers under a batch-wide concurrency cap,
// joins on all of them, and emits the terminal "completed" marker exactly
// once. Grounded on the teacher's internal/ssh.Pool/Manager mutex-guarded
// map pattern for the "shared resource, bounded access" shape, one tier up.
package batch

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/kenny-hash/CyclopsCmd/internal/model"
)

// batchConcurrencyCap is the batch-wide Host Worker limit from spec §5: at
// most 20 hosts processed concurrently per batch. Deliberately a distinct
// primitive from the per-host cap in internal/exec — the two tiers have
// different purposes and are never unified, per spec §9.
const batchConcurrencyCap = 20

// HostRunner is the Scheduler's view of the Host Worker, so that tests can
// substitute a fake without standing up real SSH sessions.
type HostRunner interface {
	Run(ctx context.Context, row model.Row, out chan<- model.Outcome)
}

// Scheduler runs a Batch's rows concurrently and reports completion on out.
type Scheduler struct {
	Worker HostRunner
}

// NewScheduler builds a Scheduler that runs each row through worker (in
// production an *exec.Worker, in tests a fake).
func NewScheduler(worker HostRunner) *Scheduler {
	return &Scheduler{Worker: worker}
}

// Run fans b's rows out under the batch-wide semaphore, waits for all of
// them, then emits the terminal marker exactly once — even if some rows
// failed, per spec §4.4 and §7's recovery policy ("the terminal {status:
// completed} is emitted whenever the scheduler joins, regardless of per-row
// outcomes"). A panic inside one Host Worker is recovered at the per-row
// goroutine (it can't be caught anywhere else) and reported as that row's
// error frame; a panic in the scheduling loop itself is caught by the
// top-level recover and reported as a gateway-style error frame, per the
// "any unexpected exception during scheduling is caught at the top level"
// rule.
func (s *Scheduler) Run(ctx context.Context, b model.Batch, out chan<- model.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[scheduler] %s: recovered panic: %v", b.RequestID, r)
			out <- model.Outcome{Error: fmt.Sprintf("scheduler error: %v", r)}
		}
	}()

	sem := semaphore.NewWeighted(batchConcurrencyCap)
	var wg sync.WaitGroup

	for _, row := range b.Rows {
		row := row
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Printf("[scheduler] %s: stopping host fan-out: %v", b.RequestID, err)
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[scheduler] %s: row %s panicked: %v", b.RequestID, row.RowID, r)
					out <- model.Outcome{RowID: row.RowID, Error: fmt.Sprintf("host worker panic: %v", r)}
				}
			}()
			s.Worker.Run(ctx, row, out)
		}()
	}

	wg.Wait()

	log.Printf("[scheduler] %s: completed (%d rows)", b.RequestID, len(b.Rows))
	out <- model.Outcome{Status: "completed"}
}
