package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/wricardo/planning-poker/poker/service"
	"github.com/wricardo/planning-poker/poker/session"
	"github.com/wricardo/planning-poker/transport/websocket"
)

// SocketPath is where clients open their WebSocket connection.
const SocketPath = "/api/socket"

// Server represents the HTTP server: the WebSocket endpoint plus the
// read-only REST API.
type Server struct {
	service service.RoomService
	hub     *websocket.Hub
	router  *mux.Router
	logger  *slog.Logger
}

// NewServer creates a new API server. A nil logger uses slog.Default.
func NewServer(roomService service.RoomService, hub *websocket.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		service: roomService,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  logger,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// WebSocket
	s.router.HandleFunc(SocketPath, s.handleWebSocket)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/scales", s.handleListScales).Methods("GET")
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{code}", s.handleGetRoom).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Room Handlers

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.service.ListRooms(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Parse query parameters
	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "activity" (default)
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	limitStr := query.Get("limit") // number of rooms to return

	if sortBy != "created" {
		sortBy = "activity"
	}
	if order != "asc" {
		order = "desc"
	}

	sort.Slice(rooms, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = rooms[i].CreatedAt, rooms[j].CreatedAt
		} else {
			ti, tj = rooms[i].LastActivityAt, rooms[j].LastActivityAt
		}

		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(rooms)
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(rooms) {
			rooms = rooms[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rooms),
		"total": total,
		"rooms": rooms,
		"sort":  sortBy,
		"order": order,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	room, err := s.service.GetRoom(r.Context(), code)
	switch {
	case errors.Is(err, session.ErrInvalidRoomCode):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, session.ErrRoomNotFound):
		respondError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, room)
}

func (s *Server) handleListScales(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.service.Scales(r.Context()))
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, &socketHandler{
		service: s.service,
		hub:     s.hub,
		logger:  s.logger,
	})
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.service.ListRooms(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"rooms":  len(rooms),
	})
}
