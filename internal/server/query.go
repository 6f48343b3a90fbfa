package server

import (
	"errors"
	"net/http"

	"github.com/queryowl/queryowl/internal/history"
	"github.com/queryowl/queryowl/internal/logger"
	"github.com/queryowl/queryowl/internal/models"
)

type executeRequest struct {
	ConnectionID string `json:"connectionId"`
	SQL          string `json:"sql"`
	Limit        int    `json:"limit,omitempty"`
}

// handleExecute runs one statement (or multi-statement body) on the live
// session. History recording happens here at the boundary, never inside the
// executor. A result that carries SchemaChanged also drops the lazy column
// cache so stale detail cannot outlive the DDL that invalidated it.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess, err := s.manager.SessionFor(req.ConnectionID)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.executor.Execute(r.Context(), sess, req.SQL, req.Limit)
	if err != nil {
		var queryErr *models.QueryError
		if errors.As(err, &queryErr) {
			s.recordHistory(req, sess.Info(), queryErr.ElapsedMS, 0, false, queryErr.Message)
		}
		writeError(w, err)
		return
	}

	var affected int64
	if result.Ack != nil {
		affected = result.Ack.AffectedRows
	} else if result.Table != nil {
		affected = result.Table.TotalRows
	}
	s.recordHistory(req, sess.Info(), result.ElapsedMS, affected, true, "")

	if result.SchemaChanged {
		s.introspector.InvalidateColumns()
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) recordHistory(req executeRequest, info models.Connection, elapsedMS, affected int64, success bool, errMsg string) {
	if s.history == nil {
		return
	}
	if !success && !s.cfg.History.SaveFailedQueries {
		return
	}
	err := s.history.Add(history.Entry{
		ConnectionID:   req.ConnectionID,
		ConnectionName: info.Name,
		DatabaseName:   info.Database,
		Query:          req.SQL,
		DurationMS:     elapsedMS,
		RowsAffected:   affected,
		Success:        success,
		ErrorMessage:   errMsg,
	})
	if err != nil {
		logger.Warn("recording history", "error", err)
	}
}
