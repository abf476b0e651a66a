// Package exec implements the Command Runner state machine and the Host
// Worker fan-out that drives it, adapted from the teacher's internal/ssh
// connect-and-retry logic (client.go's reconnect handling) generalized to
// per-command execution over a pooled session, per spec.md §4.2/§4.3.
package exec

import (
	"context"

	"github.com/kenny-hash/CyclopsCmd/internal/ssh"
)

// connector knows how to (re-)acquire the session for one Host Spec, in
// either direct or jump mode. Runner and Worker both call acquire whenever
// they need a live session — including on RECONNECT, since the Pool's
// acquire path already performs the liveness-probe-or-recreate dance.
type connector struct {
	pool  *ssh.Pool
	mode  string // "direct" or "jump"
	creds ssh.Credentials
	jump  *ssh.Credentials // set only when mode == "jump"; Password is unused
}

const (
	modeDirect = "direct"
	modeJump   = "jump"
)

// acquire borrows the session a command or connect-phase probe is about to
// use. In jump mode it also borrows the bastion's session for as long as the
// tunneled one is held, since the tunnel's traffic is multiplexed over the
// jump client's connection — the jump entry must stay marked in-use for that
// whole span, not just for the moment the tunnel is dialed, or the reaper
// could close the bastion connection out from under an active tunnel. The
// caller must pass both return values to release once it is done with the
// session, per the Pool's borrow/release discipline.
func (c *connector) acquire(ctx context.Context) (session, jump *ssh.Session, err error) {
	if c.mode == modeDirect {
		session, err = c.pool.AcquireDirect(ctx, c.creds)
		return session, nil, err
	}

	jump, err = c.pool.AcquireJump(ctx, c.jump.Host, c.jump.Port, c.jump.User)
	if err != nil {
		return nil, nil, err
	}

	session, err = c.pool.AcquireViaJump(ctx, c.creds, jump)
	if err != nil {
		c.pool.Release(jump)
		return nil, nil, err
	}
	return session, jump, nil
}

// release ends the borrow(s) acquire started for one session, direct or
// tunneled.
func (c *connector) release(session, jump *ssh.Session) {
	c.pool.Release(session)
	if jump != nil {
		c.pool.Release(jump)
	}
}
