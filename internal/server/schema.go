package server

import (
	"net/http"
)

type schemaRequest struct {
	ConnectionID string `json:"connectionId"`
	TableName    string `json:"tableName,omitempty"`
	SchemaName   string `json:"schemaName,omitempty"`
}

func (s *Server) handleSchemaSnapshot(w http.ResponseWriter, r *http.Request) {
	var req schemaRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess, err := s.manager.SessionFor(req.ConnectionID)
	if err != nil {
		writeError(w, err)
		return
	}

	snapshot, err := s.introspector.Snapshot(r.Context(), sess)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleTableColumns(w http.ResponseWriter, r *http.Request) {
	var req schemaRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess, err := s.manager.SessionFor(req.ConnectionID)
	if err != nil {
		writeError(w, err)
		return
	}

	columns, err := s.introspector.TableColumns(r.Context(), sess, req.SchemaName, req.TableName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, columns)
}

func (s *Server) handleCreateStatement(w http.ResponseWriter, r *http.Request) {
	var req schemaRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess, err := s.manager.SessionFor(req.ConnectionID)
	if err != nil {
		writeError(w, err)
		return
	}

	ddl, err := s.introspector.CreateStatement(r.Context(), sess, req.SchemaName, req.TableName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"createStatement": ddl})
}
