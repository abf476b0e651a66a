// Package room implements the Room Registry of spec.md §4.5: the two-phase
// handoff between the submit endpoint (mints a room token, stores the batch)
// and the subscribe endpoint (consumes it), plus the TTL sweep. Grounded on
// the teacher's Pool/Manager pattern of a mutex-guarded map with a background
// sweep goroutine (internal/ssh/pool.go's reapLoop).
package room

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kenny-hash/CyclopsCmd/internal/model"
)

// DefaultTTL is how long a room survives after creation before the sweeper
// removes it, per spec §3's "Lifecycle" (default 1 hour).
const DefaultTTL = 1 * time.Hour

// sweepInterval is the cadence of the background TTL sweep.
const sweepInterval = 1 * time.Minute

// ErrEmptyRows is returned by Create when rows is empty, per spec §4.5 /
// §6's "400 if empty".
var ErrEmptyRows = errors.New("room: rows must not be empty")

// ErrNotFound is returned by Take when the room is unknown or expired.
var ErrNotFound = errors.New("room: not found")

type slot struct {
	batch     model.Batch
	expiresAt time.Time
}

// Registry is the shared, mutex-guarded room map. Create/Take/Sweep all
// serialize on mu, matching §4.5's "take is racy with sweep" discipline.
type Registry struct {
	ttl time.Duration

	mu    sync.Mutex
	slots map[string]*slot

	stop chan struct{}
	once sync.Once
}

// NewRegistry builds a Registry with the default TTL and starts its
// background sweeper.
func NewRegistry() *Registry {
	r := &Registry{
		ttl:   DefaultTTL,
		slots: make(map[string]*slot),
		stop:  make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

// Create validates rows, mints a room token and request ID, stores the
// batch, and schedules its TTL removal, per spec §4.5.
func (r *Registry) Create(rows []model.Row) (model.Batch, error) {
	if len(rows) == 0 {
		return model.Batch{}, ErrEmptyRows
	}
	for _, row := range rows {
		if err := row.Validate(); err != nil {
			return model.Batch{}, err
		}
	}

	requestID, err := uuid.NewV7()
	if err != nil {
		return model.Batch{}, err
	}
	roomToken, err := uuid.NewV7()
	if err != nil {
		return model.Batch{}, err
	}

	b := model.NewBatch(requestID.String(), roomToken.String(), rows)

	r.mu.Lock()
	r.slots[b.Room] = &slot{batch: b, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()

	log.Printf("[room] created room %s (request %s, %d rows)", b.Room, b.RequestID, len(rows))
	return b, nil
}

// Take is a non-destructive read: repeated calls for the same room return
// the same batch until it expires, per spec §4.5.
func (r *Registry) Take(room string) (model.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[room]
	if !ok || time.Now().After(s.expiresAt) {
		return model.Batch{}, ErrNotFound
	}
	return s.batch, nil
}

// Sweep removes every expired room. Safe to call concurrently with
// Create/Take; all three hold the same mutex.
func (r *Registry) Sweep() {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for room, s := range r.slots {
		if now.After(s.expiresAt) {
			delete(r.slots, room)
			log.Printf("[room] swept expired room %s", room)
		}
	}
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close stops the background sweeper.
func (r *Registry) Close() {
	r.once.Do(func() { close(r.stop) })
}
