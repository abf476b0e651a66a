package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cyclops.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.ensureSchema(); err != nil {
		t.Fatalf("second ensureSchema call: %v", err)
	}
}

func TestUpsertConfigCreatesThenReplaces(t *testing.T) {
	s := openTestStore(t)

	created, err := s.UpsertConfig("n", `{"x":1}`)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a minted id")
	}

	updated, err := s.UpsertConfig("n", `{"x":2}`)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID {
		t.Errorf("expected id %q to be preserved, got %q", created.ID, updated.ID)
	}

	fetched, err := s.GetConfig(updated.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Data != `{"x":2}` {
		t.Errorf("got data %q, want updated value", fetched.Data)
	}
}

func TestListConfigsReturnsAll(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.UpsertConfig("a", "{}"); err != nil {
		t.Fatalf("upsert a: %v", err)
	}
	if _, err := s.UpsertConfig("b", "{}"); err != nil {
		t.Fatalf("upsert b: %v", err)
	}

	configs, err := s.ListConfigs()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(configs) != 2 {
		t.Errorf("got %d configs, want 2", len(configs))
	}
}

func TestDeleteThenGetIsNotFound(t *testing.T) {
	s := openTestStore(t)
	cfg, err := s.UpsertConfig("n", "{}")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := s.DeleteConfig(cfg.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.GetConfig(cfg.ID); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("got %v, want ErrConfigNotFound", err)
	}
	if err := s.DeleteConfig(cfg.ID); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("second delete: got %v, want ErrConfigNotFound", err)
	}
}
