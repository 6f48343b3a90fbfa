package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/queryowl/queryowl/internal/logger"
	"github.com/queryowl/queryowl/internal/models"
)

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	var err error
	var entries any
	if q := r.URL.Query().Get("q"); q != "" {
		entries, err = s.history.Search(q, limit)
	} else {
		entries, err = s.history.Recent(limit)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHistoryClear(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
		return
	}
	if err := s.history.Clear(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (s *Server) handleFavoritesList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.favorites.List())
}

func (s *Server) handleFavoriteAdd(w http.ResponseWriter, r *http.Request) {
	var fav models.Favorite
	if err := decode(r, &fav); err != nil {
		writeError(w, err)
		return
	}

	created, err := s.favorites.Add(fav)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleFavoriteUpdate(w http.ResponseWriter, r *http.Request) {
	var fav models.Favorite
	if err := decode(r, &fav); err != nil {
		writeError(w, err)
		return
	}

	updated, err := s.favorites.Update(chi.URLParam(r, "id"), fav)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleFavoriteDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.favorites.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleFavoriteUsed(w http.ResponseWriter, r *http.Request) {
	if err := s.favorites.MarkUsed(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"marked": true})
}

// handleLogPath returns where the rotating log lives so the shell can offer
// an "open log folder" action.
func (s *Server) handleLogPath(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"path": logger.LogPath})
}
