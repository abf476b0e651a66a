package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/kenny-hash/CyclopsCmd/internal/store"
)

// ConfigHandler implements the config CRUD surface spec §6 names as an
// external contract: a trivial keyed blob store over internal/store.
type ConfigHandler struct {
	Store *store.Store
}

// NewConfigHandler builds a ConfigHandler backed by s.
func NewConfigHandler(s *store.Store) *ConfigHandler {
	return &ConfigHandler{Store: s}
}

type createConfigRequest struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

type createConfigResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// handleCreate implements POST /api/v1/configs: create-or-update by unique
// name, per spec §6/§8.
func (h *ConfigHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	cfg, err := h.Store.UpsertConfig(req.Name, string(req.Data))
	if err != nil {
		log.Printf("[http] upsert config %q: %v", req.Name, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to save config")
		return
	}

	writeJSON(w, http.StatusOK, createConfigResponse{Success: true, ID: cfg.ID, Name: cfg.Name, Message: "saved"})
}

type configSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UpdatedAt string `json:"updated_at"`
}

// handleList implements GET /api/v1/configs.
func (h *ConfigHandler) handleList(w http.ResponseWriter, r *http.Request) {
	configs, err := h.Store.ListConfigs()
	if err != nil {
		log.Printf("[http] list configs: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to list configs")
		return
	}

	summaries := make([]configSummary, 0, len(configs))
	for _, c := range configs {
		summaries = append(summaries, configSummary{ID: c.ID, Name: c.Name, UpdatedAt: c.UpdatedAt.Format("2006-01-02T15:04:05Z07:00")})
	}
	writeJSON(w, http.StatusOK, summaries)
}

type getConfigResponse struct {
	Success bool            `json:"success"`
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// handleGet implements GET /api/v1/configs/{id}.
func (h *ConfigHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	cfg, err := h.Store.GetConfig(id)
	if err != nil {
		if errors.Is(err, store.ErrConfigNotFound) {
			writeJSON(w, http.StatusNotFound, getConfigResponse{Success: false, Error: "config not found"})
			return
		}
		log.Printf("[http] get config %q: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, getConfigResponse{Success: false, Error: "failed to load config"})
		return
	}

	writeJSON(w, http.StatusOK, getConfigResponse{Success: true, ID: cfg.ID, Name: cfg.Name, Data: json.RawMessage(cfg.Data)})
}

type deleteConfigResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleDelete implements DELETE /api/v1/configs/{id}.
func (h *ConfigHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.Store.DeleteConfig(id); err != nil {
		if errors.Is(err, store.ErrConfigNotFound) {
			writeJSON(w, http.StatusNotFound, deleteConfigResponse{Success: false, Error: "config not found"})
			return
		}
		log.Printf("[http] delete config %q: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, deleteConfigResponse{Success: false, Error: "failed to delete config"})
		return
	}

	writeJSON(w, http.StatusOK, deleteConfigResponse{Success: true, Message: "deleted"})
}
