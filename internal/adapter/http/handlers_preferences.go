package adapthttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	prefs, err := s.prefs.Get(r.Context(), user.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value *bool `json:"value"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Value == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing value"})
		return
	}

	user := userFromContext(r.Context())
	prefs, err := s.prefs.Set(r.Context(), user.ID, chi.URLParam(r, "key"), *body.Value)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}
