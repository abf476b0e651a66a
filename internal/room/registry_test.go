package room

import (
	"errors"
	"testing"
	"time"

	"github.com/kenny-hash/CyclopsCmd/internal/model"
)

func validRows() []model.Row {
	return []model.Row{
		{RowID: "A", IP: "10.0.0.1", User: "u", Password: "p", Port: 22, Commands: []string{"echo hi"}},
	}
}

func TestCreateRejectsEmptyRows(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	_, err := r.Create(nil)
	if !errors.Is(err, ErrEmptyRows) {
		t.Errorf("got %v, want ErrEmptyRows", err)
	}
}

func TestCreateRejectsIncompleteJump(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	rows := []model.Row{
		{RowID: "A", IP: "10.0.0.1", User: "u", Jump: &model.JumpSpec{Enabled: true}},
	}
	if _, err := r.Create(rows); err == nil {
		t.Error("expected an error for incomplete jump config")
	}
}

func TestCreateThenTakeReturnsSameBatch(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	b, err := r.Create(validRows())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Room == "" || b.RequestID == "" {
		t.Fatal("expected non-empty room and request id")
	}

	first, err := r.Take(b.Room)
	if err != nil {
		t.Fatalf("first Take: %v", err)
	}
	second, err := r.Take(b.Room)
	if err != nil {
		t.Fatalf("second Take: %v", err)
	}
	if first.RequestID != second.RequestID || first.Room != second.Room {
		t.Error("expected repeated Take to return the same batch")
	}
}

func TestTakeUnknownRoomIsNotFound(t *testing.T) {
	r := NewRegistry()
	defer r.Close()

	if _, err := r.Take("does-not-exist"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestSweepRemovesExpiredRooms(t *testing.T) {
	r := &Registry{ttl: time.Millisecond, slots: make(map[string]*slot), stop: make(chan struct{})}
	defer r.Close()

	b, err := r.Create(validRows())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	r.Sweep()

	if _, err := r.Take(b.Room); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected room to be swept away, got err=%v", err)
	}
}
