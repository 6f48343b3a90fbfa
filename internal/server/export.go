package server

import (
	"net/http"

	"github.com/queryowl/queryowl/internal/models"
)

type exportNativeRequest struct {
	ConnectionID   string              `json:"connectionId"`
	SQL            string              `json:"sql"`
	OutputPath     string              `json:"outputPath"`
	Format         models.ExportFormat `json:"format"`
	IncludeHeaders bool                `json:"includeHeaders"`
}

// handleExportNative is the fast path: full result, CSV, server-side COPY
// when the result is large enough to justify it.
func (s *Server) handleExportNative(w http.ResponseWriter, r *http.Request) {
	var req exportNativeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess, err := s.manager.SessionFor(req.ConnectionID)
	if err != nil {
		writeError(w, err)
		return
	}

	summary, err := s.exporter.Export(r.Context(), sess, models.ExportJob{
		SQL:        req.SQL,
		OutputPath: req.OutputPath,
		Format:     req.Format,
		Scope:      models.ScopeAll,
		Options: models.ExportOptions{
			IncludeHeaders: req.IncludeHeaders,
			UseNativeCopy:  true,
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type exportStreamRequest struct {
	ConnectionID string               `json:"connectionId"`
	SQL          string               `json:"sql"`
	OutputPath   string               `json:"outputPath"`
	Format       models.ExportFormat  `json:"format"`
	Scope        models.ExportScope   `json:"scope,omitempty"`
	Options      models.ExportOptions `json:"options"`
	View         *models.TableResult  `json:"view,omitempty"`
}

// handleExportStream covers the other two strategies: writing the caller's
// in-memory view rows, or re-executing and streaming the full result.
func (s *Server) handleExportStream(w http.ResponseWriter, r *http.Request) {
	var req exportStreamRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	scope := req.Scope
	if scope == "" {
		scope = models.ScopeAll
	}

	sess, err := s.manager.SessionFor(req.ConnectionID)
	if err != nil {
		// View-scope exports only format rows the caller already holds; they
		// work even after the connection went away.
		if scope != models.ScopeView {
			writeError(w, err)
			return
		}
		sess = nil
	}

	summary, err := s.exporter.Export(r.Context(), sess, models.ExportJob{
		SQL:        req.SQL,
		OutputPath: req.OutputPath,
		Format:     req.Format,
		Scope:      scope,
		Options:    req.Options,
		View:       req.View,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
