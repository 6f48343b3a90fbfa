package server

import (
	"net/http"

	"github.com/queryowl/queryowl/internal/db/connection"
	"github.com/queryowl/queryowl/internal/models"
)

// serverParamsRequest targets a whole server rather than one database. The
// shell sends a bare ssl boolean here; it maps to require/disable.
type serverParamsRequest struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Secret   string `json:"secret,omitempty"`
	SSL      bool   `json:"ssl"`
}

func (req serverParamsRequest) toParams() models.ServerParams {
	return models.ServerParams{
		Host:     req.Host,
		Port:     req.Port,
		Username: req.Username,
		Secret:   req.Secret,
		SSLMode:  models.SSLModeFor(req.SSL),
	}
}

func (s *Server) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	var req serverParamsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	databases, err := connection.ListDatabases(r.Context(), req.toParams())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, databases)
}

type createDatabaseRequest struct {
	serverParamsRequest
	Name     string `json:"name"`
	Encoding string `json:"encoding,omitempty"`
	Template string `json:"template,omitempty"`
	Owner    string `json:"owner,omitempty"`
}

func (s *Server) handleCreateDatabase(w http.ResponseWriter, r *http.Request) {
	var req createDatabaseRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	spec := connection.CreateDatabaseSpec{
		Name:     req.Name,
		Encoding: req.Encoding,
		Template: req.Template,
		Owner:    req.Owner,
	}
	if err := connection.CreateDatabase(r.Context(), req.toParams(), spec); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"created": req.Name})
}
