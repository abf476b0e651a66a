package exec

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	cryptossh "golang.org/x/crypto/ssh"

	"github.com/kenny-hash/CyclopsCmd/internal/model"
	"github.com/kenny-hash/CyclopsCmd/internal/ssh"
)

const (
	launchTimeout = 60 * time.Second
	streamTimeout = 300 * time.Second

	streamTimeoutMarker = "[Command timed out after 300 seconds]"
)

// Runner executes a single command against a connector's session, implementing
// the LAUNCH/STREAM/WAIT/EMIT state machine of spec §4.3. A connection lost at
// any state (RECONNECT) is handled by re-acquiring through the connector on
// the next attempt, since the Pool's acquire path already probes and
// recreates dead sessions.
type Runner struct {
	connector *connector
}

// Execute runs command up to maxAttempts times with exponential backoff,
// returning the single outcome frame spec §3 describes for this command.
func (r *Runner) Execute(ctx context.Context, rowID, command string) model.Outcome {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		session, jumpSession, err := r.connector.acquire(ctx)
		if err != nil {
			lastErr = err
			log.Printf("[runner] %s: acquire failed on attempt %d/%d: %v", rowID, attempt, maxAttempts, err)
			sleepBackoff(ctx, attempt)
			continue
		}

		outcome, retryable, err := r.attempt(ctx, session, rowID, command)
		r.connector.release(session, jumpSession)
		if err == nil {
			return outcome
		}

		lastErr = err
		log.Printf("[runner] %s: %q failed on attempt %d/%d: %v", rowID, command, attempt, maxAttempts, err)
		if !retryable {
			break
		}
		sleepBackoff(ctx, attempt)
	}

	return model.Outcome{RowID: rowID, Command: command, Error: lastErr.Error()}
}

// attempt is one LAUNCH→STREAM→WAIT→EMIT pass. retryable distinguishes a
// transport-level failure (RECONNECT-worthy) — channel open, launch, or a
// connection lost during STREAM/WAIT — from a completed command, which is
// never retried even when its exit status is non-zero.
func (r *Runner) attempt(ctx context.Context, session *ssh.Session, rowID, command string) (model.Outcome, bool, error) {
	sess, err := session.NewSession()
	if err != nil {
		return model.Outcome{}, true, fmt.Errorf("open channel: %w", err)
	}
	defer sess.Close()

	var stdout bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stdout

	if err := r.launch(ctx, sess, command); err != nil {
		return model.Outcome{}, true, err
	}

	exitStatus, timedOut, waitErr := r.streamAndWait(ctx, sess)
	output := stdout.String()
	if timedOut {
		output += streamTimeoutMarker
	}

	resultErr := ignoreExitError(waitErr)
	if resultErr != nil && ssh.IsConnectionLost(resultErr) {
		return model.Outcome{}, true, resultErr
	}

	return model.Outcome{
		RowID:      rowID,
		Command:    command,
		Output:     output,
		ExitStatus: exitStatus,
	}, false, resultErr
}

// launch starts command within launchTimeout, transitioning LAUNCH -> STREAM.
func (r *Runner) launch(ctx context.Context, sess *cryptossh.Session, command string) error {
	done := make(chan error, 1)
	go func() { done <- sess.Start(command) }()

	timer := time.NewTimer(launchTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("launch timed out after %s", launchTimeout)
	case err := <-done:
		if err != nil {
			return fmt.Errorf("start command: %w", err)
		}
		return nil
	}
}

// streamAndWait merges the STREAM and WAIT states: it waits for the command
// to finish within streamTimeout, normalizing the exit status per spec §4.3.
// A stream timeout does not fail the command — it flags the output for the
// marker the caller appends and transitions to WAIT regardless, per §4.3's
// "STREAM timeout ... transition to WAIT anyway". Whether an exit status is
// still available at that point is a race with the remote process, exactly
// as end-to-end scenario 4 allows for either outcome.
func (r *Runner) streamAndWait(ctx context.Context, sess *cryptossh.Session) (*int, bool, error) {
	waitErr := make(chan error, 1)
	go func() { waitErr <- sess.Wait() }()

	timer := time.NewTimer(streamTimeout)
	defer timer.Stop()

	select {
	case err := <-waitErr:
		return normalizeExitStatus(err), false, ignoreExitError(err)
	case <-timer.C:
		select {
		case err := <-waitErr:
			return normalizeExitStatus(err), true, ignoreExitError(err)
		default:
			return nil, true, nil
		}
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// normalizeExitStatus extracts the nested exit-status field from an
// *ssh.ExitError when present, per spec §4.3's normalization rule.
func normalizeExitStatus(err error) *int {
	if err == nil {
		status := 0
		return &status
	}
	if exitErr, ok := err.(*cryptossh.ExitError); ok {
		status := exitErr.ExitStatus()
		return &status
	}
	return nil
}

// ignoreExitError treats a non-zero exit status as a successful outcome (the
// command ran and produced a result); only transport-level errors from wait
// are surfaced to Execute's retry loop.
func ignoreExitError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*cryptossh.ExitError); ok {
		return nil
	}
	return err
}
