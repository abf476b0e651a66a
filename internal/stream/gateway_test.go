package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kenny-hash/CyclopsCmd/internal/model"
)

type fakeRooms struct {
	batch model.Batch
	err   error
}

func (f *fakeRooms) Take(room string) (model.Batch, error) { return f.batch, f.err }

type fakeScheduler struct {
	frames []model.Outcome
}

func (f *fakeScheduler) Run(ctx context.Context, b model.Batch, out chan<- model.Outcome) {
	for _, frame := range f.frames {
		out <- frame
	}
}

func newTestServer(t *testing.T, g *Gateway, room string) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.ServeRoom(w, r, room)
	}))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func TestGatewayStreamsFramesUntilCompleted(t *testing.T) {
	status := 0
	frames := []model.Outcome{
		{RowID: "A", Command: "echo hi", Output: "hi", ExitStatus: &status},
		{Status: "completed"},
	}
	g := NewGateway(&fakeRooms{batch: model.Batch{Room: "r1"}}, &fakeScheduler{frames: frames})
	srv, wsURL := newTestServer(t, g, "r1")
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var received []model.Outcome
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var frame model.Outcome
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		received = append(received, frame)
		if frame.Status == "completed" {
			break
		}
	}

	if len(received) != 2 {
		t.Fatalf("expected 2 frames, got %d: %+v", len(received), received)
	}
	if received[0].RowID != "A" || received[0].Output != "hi" {
		t.Errorf("unexpected first frame: %+v", received[0])
	}
	if received[1].Status != "completed" {
		t.Errorf("expected terminal frame last, got %+v", received[1])
	}
}

func TestGatewaySendsErrorOnUnknownRoom(t *testing.T) {
	g := NewGateway(&fakeRooms{err: errRoomNotFound{}}, &fakeScheduler{})
	srv, wsURL := newTestServer(t, g, "missing")
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame model.Outcome
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Error == "" {
		t.Error("expected a non-empty error frame for an unknown room")
	}
}

type errRoomNotFound struct{}

func (errRoomNotFound) Error() string { return "room not found" }
