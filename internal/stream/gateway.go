// Package stream implements the Stream Gateway of spec.md §4.6: it accepts
// the WebSocket subscriber, binds it to a room, displaces any prior
// subscriber for that room, and drives the Batch Scheduler with itself as
// the single-writer output channel. Grounded on
// Websoft9-AppOS/backend/internal/routes/terminal.go's
// websocket.Upgrader{}+conn.WriteMessage relay, adapted from a raw byte
// relay into a serialized JSON-frame push channel.
package stream

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/kenny-hash/CyclopsCmd/internal/model"
)

// frameBuffer is how many pending frames a subscriber's writer goroutine
// will buffer before a slow client starts blocking its Host Workers.
const frameBuffer = 64

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RoomSource resolves a room token to its batch, the Gateway's view of the
// Room Registry.
type RoomSource interface {
	Take(room string) (model.Batch, error)
}

// BatchRunner is the Gateway's view of the Batch Scheduler.
type BatchRunner interface {
	Run(ctx context.Context, b model.Batch, out chan<- model.Outcome)
}

// subscriber owns one live WebSocket connection and serializes writes to it
// through a dedicated writer goroutine fed by a channel — the approach spec
// §9 recommends over a bare mutex around the send.
type subscriber struct {
	conn   *websocket.Conn
	frames chan model.Outcome
	done   chan struct{}
	once   sync.Once
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	s := &subscriber{conn: conn, frames: make(chan model.Outcome, frameBuffer), done: make(chan struct{})}
	go s.writeLoop()
	return s
}

func (s *subscriber) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case frame, ok := <-s.frames:
			if !ok {
				s.close()
				return
			}
			if err := s.conn.WriteJSON(frame); err != nil {
				log.Printf("[stream] write failed, closing subscriber: %v", err)
				s.close()
				return
			}
		}
	}
}

func (s *subscriber) send(frame model.Outcome) {
	select {
	case s.frames <- frame:
	case <-s.done:
	}
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Gateway serves GET /ws/{room}: upgrades the connection, resolves the
// room, and hands the subscription to the Batch Scheduler as its output
// channel.
type Gateway struct {
	Rooms     RoomSource
	Scheduler BatchRunner

	mu          sync.Mutex
	subscribers map[string]*subscriber
}

// NewGateway builds a Gateway backed by the given room source and scheduler.
func NewGateway(rooms RoomSource, scheduler BatchRunner) *Gateway {
	return &Gateway{Rooms: rooms, Scheduler: scheduler, subscribers: make(map[string]*subscriber)}
}

// ServeRoom implements step 1-6 of spec §4.6 for one room's subscription
// request. The caller (internal/api) extracts room from the path.
func (g *Gateway) ServeRoom(w http.ResponseWriter, r *http.Request, room string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[stream] upgrade failed: %v", err)
		return
	}

	b, err := g.Rooms.Take(room)
	if err != nil {
		writeErrorFrame(conn, err.Error())
		conn.Close()
		return
	}

	sub := newSubscriber(conn)
	g.displace(room, sub)
	defer g.deregister(room, sub)

	out := make(chan model.Outcome, frameBuffer)
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		for frame := range out {
			sub.send(frame)
			if frame.Status == "completed" {
				return
			}
		}
	}()

	g.Scheduler.Run(r.Context(), b, out)
	close(out)
	<-relayDone

	// The writer drains every buffered frame, then closes the connection.
	close(sub.frames)
}

// displace registers sub as room's subscriber, closing any previous one,
// per spec §4.6 step 3 / §8's "a second subscriber to a live room causes
// the first to observe a close".
func (g *Gateway) displace(room string, sub *subscriber) {
	g.mu.Lock()
	prev, ok := g.subscribers[room]
	g.subscribers[room] = sub
	g.mu.Unlock()

	if ok {
		log.Printf("[stream] displacing existing subscriber for room %s", room)
		prev.close()
	}
}

func (g *Gateway) deregister(room string, sub *subscriber) {
	g.mu.Lock()
	if g.subscribers[room] == sub {
		delete(g.subscribers, room)
	}
	g.mu.Unlock()
}

func writeErrorFrame(conn *websocket.Conn, message string) {
	_ = conn.WriteJSON(model.Outcome{Error: message})
}
