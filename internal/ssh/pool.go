// Package ssh implements the Connection Pool: a keyed cache of live SSH
// sessions (direct, jump, and tunneled-via-jump) with liveness probing and an
// idle/health reaper, adapted from the teacher's internal/ssh package (whose
// Pool cached MCP-session Managers and whose Manager/Client cached and
// reconnected individual SSH connections) into the single-tier session cache
// spec.md §4.1 describes.
package ssh

import (
	"context"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	cryptossh "golang.org/x/crypto/ssh"
)

const (
	idleThreshold   = 5 * time.Minute
	healthThreshold = 30 * time.Minute
	reapInterval    = 5 * time.Minute
)

// entry is a Pool Entry per spec §3: the session, its last-borrow time, and
// a count of in-flight borrows. activeReqs is incremented by every Acquire*
// call that returns this entry and decremented by Release, so the reaper can
// tell a session is still being used for a command before it closes it,
// mirroring the teacher's sessionEntry.activeReqs in internal/ssh/pool.go.
type entry struct {
	session    *Session
	lastUsedAt time.Time
	activeReqs atomic.Int32
}

func (e *entry) borrow() {
	e.activeReqs.Add(1)
	e.lastUsedAt = time.Now()
}

func (e *entry) release() {
	e.activeReqs.Add(-1)
}

func (e *entry) inUse() bool {
	return e.activeReqs.Load() > 0
}

// Pool is the keyed cache of live SSH sessions shared by every Host Worker in
// the process. Mutations are serialized under mu; a borrowed *Session
// reference remains valid after Acquire* returns — the reaper re-checks an
// entry's borrow count under the lock immediately before evicting it (both
// the idle and health branches of reap), so it never closes a session still
// in use for a command.
type Pool struct {
	mu      sync.Mutex
	entries map[string]*entry

	keyManager *KeyManager

	stop chan struct{}
	once sync.Once
}

// NewPool creates an empty Pool and starts its background reaper.
func NewPool(keyPath string) *Pool {
	p := &Pool{
		entries:    make(map[string]*entry),
		keyManager: NewKeyManager(keyPath),
		stop:       make(chan struct{}),
	}
	if err := p.keyManager.EnsureKey(); err != nil {
		log.Printf("[pool] warning: %v", err)
	} else if pub, err := p.keyManager.GetPublicKey(); err == nil {
		log.Printf("[pool] jump-host identity: %s", strings.TrimSpace(pub))
	}
	go p.reapLoop()
	return p
}

// AcquireDirect returns a live session for host:port:user, reusing a cached
// one when it passes the liveness probe, per spec §4.1.
func (p *Pool) AcquireDirect(ctx context.Context, creds Credentials) (*Session, error) {
	key := connectionKey(creds.Host, creds.Port, creds.User)
	return p.acquire(ctx, key, func(ctx context.Context) (*cryptossh.Client, error) {
		return dialDirect(ctx, creds)
	})
}

// AcquireJump returns a live session to a bastion host using the pool's own
// key identity (no password auth for jump hosts).
func (p *Pool) AcquireJump(ctx context.Context, host string, port int, user string) (*Session, error) {
	key := jumpKey(host, port, user)
	return p.acquire(ctx, key, func(ctx context.Context) (*cryptossh.Client, error) {
		signer, err := p.keyManager.LoadPrivateKey()
		if err != nil {
			return nil, &ConnectError{Kind: KindAuthDenied, Hint: "configure key authentication for the jump host", Err: err}
		}
		return dialJump(ctx, host, port, user, signer)
	})
}

// AcquireViaJump returns a live session to host:port:user tunneled through
// jumpSession, keyed so it never collides with a direct session to the same
// target.
func (p *Pool) AcquireViaJump(ctx context.Context, creds Credentials, jumpSession *Session) (*Session, error) {
	key := tunneledKey(creds.Host, creds.Port, creds.User)
	return p.acquire(ctx, key, func(ctx context.Context) (*cryptossh.Client, error) {
		return dialViaJump(ctx, jumpSession, creds)
	})
}

// acquire implements the shared probe-or-create algorithm from spec §4.1.
func (p *Pool) acquire(ctx context.Context, key string, dial func(context.Context) (*cryptossh.Client, error)) (*Session, error) {
	p.mu.Lock()
	e, ok := p.entries[key]
	p.mu.Unlock()

	if ok {
		if err := e.session.probeWithTimeout(ctx); err == nil {
			p.mu.Lock()
			e.borrow()
			p.mu.Unlock()
			return e.session, nil
		}
		log.Printf("[pool] stale session for %s, evicting", key)
		p.evict(key)
	}

	client, err := dial(ctx)
	if err != nil {
		return nil, err
	}

	session := &Session{client: client, key: key}
	newEntry := &entry{session: session}
	newEntry.borrow()
	p.mu.Lock()
	p.entries[key] = newEntry
	p.mu.Unlock()

	log.Printf("[pool] created session for %s", key)
	return session, nil
}

// Release marks one borrow of s as finished, per the acquire/release
// discipline every Acquire* caller must follow: decrement for every session
// a command attempt or connect-phase probe obtained, whether the attempt
// succeeded or failed. A no-op if s's entry has since been evicted and
// replaced (the key now maps to a different session), since that borrow no
// longer corresponds to anything the reaper is tracking.
func (p *Pool) Release(s *Session) {
	if s == nil {
		return
	}
	p.mu.Lock()
	e, ok := p.entries[s.key]
	if ok && e.session != s {
		ok = false
	}
	p.mu.Unlock()
	if ok {
		e.release()
	}
}

// evict removes and closes the entry for key, if still present. Best-effort:
// close errors are logged, not returned, matching spec §4.1's "best-effort
// close the session".
func (p *Pool) evict(key string) {
	p.mu.Lock()
	e, ok := p.entries[key]
	if ok {
		delete(p.entries, key)
	}
	p.mu.Unlock()

	if ok {
		if err := e.session.Close(); err != nil {
			log.Printf("[pool] close error for %s: %v", key, err)
		}
	}
}

// reapLoop runs the fixed-cadence background sweep described in spec §4.1.
func (p *Pool) reapLoop() {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.reap()
		}
	}
}

// reap applies the idle and health thresholds as two independent checks per
// entry, resolving the Open Question in spec §4.1/§9: the source's chained
// if/elif made the health branch unreachable given the idle branch's
// condition; here both are evaluated unconditionally and independently.
func (p *Pool) reap() {
	now := time.Now()

	var idleKeys []string
	var healthCandidates []string

	p.mu.Lock()
	for key, e := range p.entries {
		age := now.Sub(e.lastUsedAt)
		if age > idleThreshold {
			idleKeys = append(idleKeys, key)
		}
		if age > healthThreshold {
			healthCandidates = append(healthCandidates, key)
		}
	}
	p.mu.Unlock()

	for _, key := range idleKeys {
		p.evictIfIdle(key)
	}

	for _, key := range healthCandidates {
		p.mu.Lock()
		e, ok := p.entries[key]
		p.mu.Unlock()
		if !ok {
			continue
		}
		if e.inUse() {
			log.Printf("[pool] skipping health probe for %s: session in use", key)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), livenessTimeout)
		err := e.session.probeWithTimeout(ctx)
		cancel()
		if err != nil {
			log.Printf("[pool] health probe failed for %s: %v", key, err)
			p.mu.Lock()
			if cur, still := p.entries[key]; !still || cur != e || e.inUse() {
				p.mu.Unlock()
				continue
			}
			delete(p.entries, key)
			p.mu.Unlock()
			if err := e.session.Close(); err != nil {
				log.Printf("[pool] close error for %s: %v", key, err)
			}
		}
	}
}

// evictIfIdle re-checks key under the lock immediately before evicting: a
// session borrowed since the first reap pass, or still mid-command, is left
// for the next sweep instead of being closed out from under its caller.
func (p *Pool) evictIfIdle(key string) {
	p.mu.Lock()
	e, ok := p.entries[key]
	if !ok {
		p.mu.Unlock()
		return
	}
	if e.inUse() {
		p.mu.Unlock()
		log.Printf("[pool] skipping idle eviction for %s: session in use", key)
		return
	}
	if time.Since(e.lastUsedAt) <= idleThreshold {
		p.mu.Unlock()
		return
	}
	delete(p.entries, key)
	p.mu.Unlock()

	log.Printf("[pool] reaping idle session %s", key)
	if err := e.session.Close(); err != nil {
		log.Printf("[pool] close error for %s: %v", key, err)
	}
}

// Close stops the reaper and closes every cached session.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.stop) })

	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[string]*entry)
	p.mu.Unlock()

	for key, e := range entries {
		if err := e.session.Close(); err != nil {
			log.Printf("[pool] close error for %s: %v", key, err)
		}
	}
}

// Size returns the number of cached sessions, for tests and diagnostics.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
