// Package api implements the HTTP surface spec.md §6 names as external
// contracts: the execute/config CRUD endpoints, the WebSocket stream
// upgrade, and permissive CORS. Routing itself follows the teacher's
// cmd/server/main.go idiom (a bare *http.ServeMux), since the teacher never
// reaches for a router library and this spec doesn't need path parameters
// beyond what Go 1.22's enhanced ServeMux patterns already provide.
package api

import (
	"log"
	"net/http"

	"github.com/kenny-hash/CyclopsCmd/internal/room"
	"github.com/kenny-hash/CyclopsCmd/internal/stream"
)

// Server wires the room registry, stream gateway, and config store into a
// single *http.ServeMux.
type Server struct {
	Rooms   *room.Registry
	Gateway *stream.Gateway
	Configs *ConfigHandler
}

// NewServer builds the routed mux for spec §6's HTTP interface.
func NewServer(rooms *room.Registry, gateway *stream.Gateway, configs *ConfigHandler) http.Handler {
	s := &Server{Rooms: rooms, Gateway: gateway, Configs: configs}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/execute", s.handleExecute)
	mux.HandleFunc("POST /api/v1/configs", s.Configs.handleCreate)
	mux.HandleFunc("GET /api/v1/configs", s.Configs.handleList)
	mux.HandleFunc("GET /api/v1/configs/{id}", s.Configs.handleGet)
	mux.HandleFunc("DELETE /api/v1/configs/{id}", s.Configs.handleDelete)
	mux.HandleFunc("GET /ws/{room}", s.handleStream)

	return withCORS(withRequestLog(mux))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.Gateway.ServeRoom(w, r, r.PathValue("room"))
}

func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[http] %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// withCORS applies the permissive-by-default policy spec §6 requires: all
// origins, all methods, all headers, credentials allowed. Reflecting the
// request's Origin back (rather than a literal "*") is what lets browsers
// accept the combination with Allow-Credentials: true.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, PUT, OPTIONS")
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
		} else {
			w.Header().Set("Access-Control-Allow-Headers", "*")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
