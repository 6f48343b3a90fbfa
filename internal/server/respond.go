package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/queryowl/queryowl/internal/logger"
	"github.com/queryowl/queryowl/internal/models"
)

// errorBody is the JSON shape of every failure the bridge reports.
type errorBody struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Failure    string `json:"failure,omitempty"`
	Incomplete bool   `json:"incomplete,omitempty"`
	Rows       int64  `json:"rows,omitempty"`
	Bytes      int64  `json:"bytes,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encoding response", "error", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses. Server-side SQL
// errors go back as 200 with a structured body: the UI renders them as query
// results, not transport failures, and needs the diagnostics verbatim.
func writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *models.ValidationError
		notFoundErr   *models.NotFoundError
		noActiveErr   *models.NoActiveConnectionError
		connErr       *models.ConnectionError
		queryErr      *models.QueryError
		exportErr     *models.ExportError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": errorBody{Kind: "validation", Message: validationErr.Error()},
		})
	case errors.As(err, &notFoundErr):
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": errorBody{Kind: "not_found", Message: notFoundErr.Error()},
		})
	case errors.As(err, &noActiveErr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": errorBody{Kind: "no_active_connection", Message: noActiveErr.Error()},
		})
	case errors.As(err, &connErr):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error": errorBody{Kind: "connection", Message: connErr.Error(), Failure: string(connErr.Kind)},
		})
	case errors.As(err, &queryErr):
		writeJSON(w, http.StatusOK, map[string]any{
			"queryError": queryErr,
			"elapsedMs":  queryErr.ElapsedMS,
		})
	case errors.As(err, &exportErr):
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": errorBody{
				Kind:       "export",
				Message:    exportErr.Error(),
				Incomplete: true,
				Rows:       exportErr.Rows,
				Bytes:      exportErr.Bytes,
			},
		})
	default:
		logger.Error("unclassified error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": errorBody{Kind: "internal", Message: err.Error()},
		})
	}
}

// decode reads the request body into v, rejecting unknown fields so typos in
// the shell's payloads fail loudly instead of silently defaulting.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &models.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}
