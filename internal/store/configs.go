package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
)

// ErrConfigNotFound is returned by GetConfig and DeleteConfig when id is
// unknown, per spec §6's `{success:false, error}` shape.
var ErrConfigNotFound = errors.New("store: config not found")

// Config is one named, opaque host-and-command blob, per spec §6's
// "named configs" persistent state.
type Config struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Data      string    `db:"config_data"` // opaque JSON text; caller marshals/unmarshals
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// UpsertConfig creates a config row, or replaces the existing row of the
// same name while keeping its id, per spec §8's "saving a config with an
// existing name replaces it and returns the same id".
func (s *Store) UpsertConfig(name, data string) (Config, error) {
	existing, err := s.getConfigByName(name)
	now := time.Now()

	if err == nil {
		existing.Data = data
		existing.UpdatedAt = now
		_, execErr := s.DB.NewQuery(`
			UPDATE configs SET config_data = {:data}, updated_at = {:updated}
			WHERE id = {:id}`).
			Bind(dbx.Params{"data": data, "updated": now, "id": existing.ID}).
			Execute()
		if execErr != nil {
			return Config{}, fmt.Errorf("update config %q: %w", name, execErr)
		}
		return existing, nil
	}
	if !errors.Is(err, ErrConfigNotFound) {
		return Config{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Config{}, fmt.Errorf("mint config id: %w", err)
	}
	cfg := Config{ID: id.String(), Name: name, Data: data, CreatedAt: now, UpdatedAt: now}

	_, execErr := s.DB.NewQuery(`
		INSERT INTO configs (id, name, config_data, created_at, updated_at)
		VALUES ({:id}, {:name}, {:data}, {:created}, {:updated})`).
		Bind(dbx.Params{
			"id": cfg.ID, "name": cfg.Name, "data": cfg.Data,
			"created": cfg.CreatedAt, "updated": cfg.UpdatedAt,
		}).Execute()
	if execErr != nil {
		return Config{}, fmt.Errorf("insert config %q: %w", name, execErr)
	}
	return cfg, nil
}

// ListConfigs returns every config, data included, most recently updated
// first; the `GET /api/v1/configs` handler reduces them to summaries.
func (s *Store) ListConfigs() ([]Config, error) {
	var configs []Config
	err := s.DB.NewQuery(`SELECT id, name, config_data, created_at, updated_at FROM configs ORDER BY updated_at DESC`).All(&configs)
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	return configs, nil
}

// GetConfig returns one config by id, or ErrConfigNotFound.
func (s *Store) GetConfig(id string) (Config, error) {
	var cfg Config
	err := s.DB.NewQuery(`SELECT id, name, config_data, created_at, updated_at FROM configs WHERE id = {:id}`).
		Bind(dbx.Params{"id": id}).One(&cfg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Config{}, ErrConfigNotFound
		}
		return Config{}, fmt.Errorf("get config %q: %w", id, err)
	}
	return cfg, nil
}

// DeleteConfig removes a config by id. Deleting an unknown id is reported as
// ErrConfigNotFound rather than silently succeeding.
func (s *Store) DeleteConfig(id string) error {
	result, err := s.DB.NewQuery(`DELETE FROM configs WHERE id = {:id}`).Bind(dbx.Params{"id": id}).Execute()
	if err != nil {
		return fmt.Errorf("delete config %q: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete config %q: %w", id, err)
	}
	if rows == 0 {
		return ErrConfigNotFound
	}
	return nil
}

func (s *Store) getConfigByName(name string) (Config, error) {
	var cfg Config
	err := s.DB.NewQuery(`SELECT id, name, config_data, created_at, updated_at FROM configs WHERE name = {:name}`).
		Bind(dbx.Params{"name": name}).One(&cfg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Config{}, ErrConfigNotFound
		}
		return Config{}, err
	}
	return cfg, nil
}
