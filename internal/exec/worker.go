package exec

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kenny-hash/CyclopsCmd/internal/model"
	"github.com/kenny-hash/CyclopsCmd/internal/ssh"
)

// hostConcurrencyCap is the per-host Command Runner limit from spec §5: at
// most 5 commands in flight for one row at a time, to avoid tripping the
// target's SSH channel or flood limits.
const hostConcurrencyCap = 5

// sinkFlushThreshold is the Result Sink's size-based flush trigger from spec
// §4.3/§4.7; the remainder of a row's buffer always flushes at end-of-row.
const sinkFlushThreshold = 20

// ResultSink is the Host Worker's view of the Result Sink: a transactional,
// best-effort batch writer. Flush failures are logged by the sink itself and
// never propagate back to command execution, per spec §4.7.
type ResultSink interface {
	Flush(ctx context.Context, results []model.PersistedResult) error
}

// Worker is the Host Worker of spec §4.2: it owns one row's connect phase and
// fans its commands out to Command Runners under a per-host semaphore.
type Worker struct {
	Pool *ssh.Pool
	Sink ResultSink
}

// Run executes row's connect phase, then its commands, emitting frames on out
// and batching results into the sink. It never closes the underlying
// session — the pool owns it.
func (w *Worker) Run(ctx context.Context, row model.Row, out chan<- model.Outcome) {
	conn := buildConnector(w.Pool, row)

	if err := w.connect(ctx, conn); err != nil {
		log.Printf("[worker] %s: connect phase exhausted: %v", row.RowID, err)
		out <- model.Outcome{RowID: row.RowID, Error: err.Error()}
		return
	}

	if len(row.Commands) == 0 {
		return
	}

	runner := &Runner{connector: conn}
	sem := semaphore.NewWeighted(hostConcurrencyCap)

	var wg sync.WaitGroup
	var bufMu sync.Mutex
	var buffer []model.PersistedResult

	flush := func(force bool) {
		bufMu.Lock()
		if len(buffer) == 0 || (!force && len(buffer) < sinkFlushThreshold) {
			bufMu.Unlock()
			return
		}
		toFlush := buffer
		buffer = nil
		bufMu.Unlock()

		if err := w.Sink.Flush(ctx, toFlush); err != nil {
			log.Printf("[worker] %s: sink flush failed, dropping %d results: %v", row.RowID, len(toFlush), err)
		}
	}

	for _, command := range row.Commands {
		command := command
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Printf("[worker] %s: stopping command fan-out: %v", row.RowID, err)
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			outcome := runner.Execute(ctx, row.RowID, command)
			out <- outcome

			if outcome.Error == "" {
				bufMu.Lock()
				buffer = append(buffer, toPersistedResult(row, command, outcome))
				bufMu.Unlock()
				flush(false)
			}
		}()
	}

	wg.Wait()
	flush(true)
}

// connect performs the bounded-retry connect phase of spec §4.2: jump mode
// acquires the bastion first, direct mode acquires the target directly; both
// paths go through connector.acquire, which already knows the mode.
func (w *Worker) connect(ctx context.Context, conn *connector) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		session, jumpSession, err := conn.acquire(ctx)
		if err == nil {
			conn.release(session, jumpSession)
			return nil
		}
		lastErr = err
		log.Printf("[worker] connect attempt %d/%d failed for %s: %v", attempt, maxAttempts, conn.creds.Host, lastErr)
		sleepBackoff(ctx, attempt)
	}
	return lastErr
}

func buildConnector(pool *ssh.Pool, row model.Row) *connector {
	creds := ssh.Credentials{Host: row.IP, Port: row.Port, User: row.User, Password: row.Password}

	if row.Jump == nil || !row.Jump.Enabled {
		return &connector{pool: pool, mode: modeDirect, creds: creds}
	}

	return &connector{
		pool:  pool,
		mode:  modeJump,
		creds: creds,
		jump:  &ssh.Credentials{Host: row.Jump.IP, Port: row.Jump.Port, User: row.Jump.User},
	}
}

// toPersistedResult builds the durable record for one command outcome,
// always substituting the password placeholder per spec §3.
func toPersistedResult(row model.Row, command string, outcome model.Outcome) model.PersistedResult {
	return model.PersistedResult{
		IP:         row.IP,
		User:       row.User,
		Password:   model.PasswordPlaceholder,
		Port:       row.Port,
		Command:    command,
		Output:     outcome.Output,
		ExitStatus: outcome.ExitStatus,
		Timestamp:  time.Now(),
	}
}
