package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/queryowl/queryowl/internal/db/connection"
	"github.com/queryowl/queryowl/internal/logger"
	"github.com/queryowl/queryowl/internal/models"
)

// connectionRequest is the wire shape for creating, updating and testing
// connection profiles. Secret is the plaintext password; the store seals it
// before anything touches disk. An empty secret on update keeps the stored
// one.
type connectionRequest struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Secret   string `json:"secret,omitempty"`
	SSLMode  string `json:"sslMode,omitempty"`
	Color    string `json:"color,omitempty"`
}

func (req connectionRequest) toModel() models.Connection {
	return models.Connection{
		Name:     req.Name,
		Host:     req.Host,
		Port:     req.Port,
		Database: req.Database,
		Username: req.Username,
		Secret:   req.Secret,
		SSLMode:  req.SSLMode,
		Color:    req.Color,
	}
}

type testResult struct {
	Success bool   `json:"success"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.List())
}

func (s *Server) handleSaveConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	created, err := s.store.Create(req.toModel())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created.Redacted())
}

func (s *Server) handleUpdateConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	updated, err := s.store.Update(chi.URLParam(r, "id"), req.toModel())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated.Redacted())
}

// handleDeleteConnection removes a profile. When the profile is the live
// session it is deactivated first, so a deleted id can never keep a live
// handle behind it.
func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if sess := s.manager.Current(); sess != nil && sess.ID() == id {
		s.manager.Deactivate()
	}
	if err := s.store.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// handleTestConnection probes with caller-supplied parameters. It never
// touches the registry or the live session; a failed probe reports success
// false with the classified message rather than an HTTP error.
func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	version, err := connection.Probe(r.Context(), req.toModel(), req.Secret)
	if err != nil {
		writeJSON(w, http.StatusOK, testResult{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, testResult{Success: true, Version: version})
}

func (s *Server) handleTestStoredConnection(w http.ResponseWriter, r *http.Request) {
	conn, secretText, err := s.store.Resolve(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	version, err := connection.Probe(r.Context(), conn, secretText)
	if err != nil {
		writeJSON(w, http.StatusOK, testResult{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, testResult{Success: true, Version: version})
}

type connectResponse struct {
	Connection  models.Connection `json:"connection"`
	ConnectedAt time.Time         `json:"connectedAt"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	conn, secretText, err := s.store.Resolve(id)
	if err != nil {
		writeError(w, err)
		return
	}

	sess, err := s.manager.Activate(r.Context(), conn, secretText)
	if err != nil {
		writeError(w, err)
		return
	}

	// The session is live at this point; a bookkeeping failure must not turn
	// a successful connect into an error.
	s.touchConnected(id)

	writeJSON(w, http.StatusOK, connectResponse{
		Connection:  sess.Info(),
		ConnectedAt: sess.ConnectedAt(),
	})
}

// touchConnected records the connect timestamp, logging failures instead of
// surfacing them.
func (s *Server) touchConnected(id string) {
	if err := s.store.TouchLastConnected(id); err != nil {
		logger.Warn("recording last-connected time", "connection", id, "error", err)
	}
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.manager.Deactivate()
	s.introspector.InvalidateColumns()
	writeJSON(w, http.StatusOK, map[string]bool{"disconnected": true})
}

func (s *Server) handleTouchLastConnected(w http.ResponseWriter, r *http.Request) {
	if err := s.store.TouchLastConnected(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}
