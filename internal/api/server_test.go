package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/kenny-hash/CyclopsCmd/internal/model"
	"github.com/kenny-hash/CyclopsCmd/internal/room"
	"github.com/kenny-hash/CyclopsCmd/internal/store"
	"github.com/kenny-hash/CyclopsCmd/internal/stream"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "cyclops.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	rooms := room.NewRegistry()
	t.Cleanup(rooms.Close)

	gw := stream.NewGateway(rooms, noopScheduler{})
	return NewServer(rooms, gw, NewConfigHandler(s))
}

type noopScheduler struct{}

func (noopScheduler) Run(ctx context.Context, b model.Batch, out chan<- model.Outcome) {
	out <- model.Outcome{Status: "completed"}
}

func TestHandleExecuteRejectsEmptyBatch(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/execute", bytes.NewBufferString(`[]`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleExecuteAcceptsValidBatch(t *testing.T) {
	srv := newTestServer(t)

	body := `[{"rowId":"A","ip":"10.0.0.1","user":"u","password":"p","port":22,"commands":["echo hi"]}]`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/execute", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp executeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Room == "" || resp.RequestID == "" {
		t.Errorf("expected non-empty room/request_id, got %+v", resp)
	}
}

func TestHandleExecuteRejectsIncompleteJump(t *testing.T) {
	srv := newTestServer(t)

	body := `[{"rowId":"A","ip":"10.0.0.1","user":"u","jump":{"enabled":true}}]`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/execute", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestConfigLifecycle(t *testing.T) {
	srv := newTestServer(t)

	create := func(name, data string) createConfigResponse {
		body, _ := json.Marshal(createConfigRequest{Name: name, Data: json.RawMessage(data)})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/configs", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("create: got %d: %s", rec.Code, rec.Body.String())
		}
		var resp createConfigResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return resp
	}

	first := create("n", `{"x":1}`)
	second := create("n", `{"x":2}`)
	if first.ID != second.ID {
		t.Errorf("expected same id across upserts, got %q vs %q", first.ID, second.ID)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/configs/"+second.ID, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: got %d: %s", rec.Code, rec.Body.String())
	}
	var got getConfigResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode get: %v", err)
	}
	if string(got.Data) != `{"x":2}` {
		t.Errorf("got data %s, want {\"x\":2}", got.Data)
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/api/v1/configs/"+second.ID, nil)
	delRec := httptest.NewRecorder()
	srv.ServeHTTP(delRec, delReq)
	if delRec.Code != http.StatusOK {
		t.Fatalf("delete: got %d: %s", delRec.Code, delRec.Body.String())
	}

	getAfterDelete := httptest.NewRequest(http.MethodGet, "/api/v1/configs/"+second.ID, nil)
	getAfterDeleteRec := httptest.NewRecorder()
	srv.ServeHTTP(getAfterDeleteRec, getAfterDelete)
	if getAfterDeleteRec.Code != http.StatusNotFound {
		t.Errorf("got %d after delete, want 404", getAfterDeleteRec.Code)
	}
}
