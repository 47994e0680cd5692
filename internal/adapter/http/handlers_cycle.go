package adapthttp

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cycletracker/internal/domain"
)

func (s *Server) handleCycleSnapshot(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	snap, err := s.cycles.Snapshot(r.Context(), user.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSymptomCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"symptoms": domain.SymptomCatalog()})
}

func (s *Server) handleGetDay(w http.ResponseWriter, r *http.Request) {
	date, err := pathDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user := userFromContext(r.Context())
	rec, err := s.cycles.GetRecord(r.Context(), user.ID, date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleTogglePeriod(w http.ResponseWriter, r *http.Request) {
	date, err := pathDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user := userFromContext(r.Context())
	update, err := s.cycles.ToggleTargetDay(r.Context(), user.ID, date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, update)
}

// handleToggleSymptom answers 200 with changed=false for unknown symptoms;
// they are ignored rather than rejected.
func (s *Server) handleToggleSymptom(w http.ResponseWriter, r *http.Request) {
	date, err := pathDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user := userFromContext(r.Context())
	update, err := s.cycles.ToggleSymptom(r.Context(), user.ID, date, chi.URLParam(r, "symptom"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, update)
}

// handleCalendar returns markers for ?from=&to=. Missing bounds default to
// the current month.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	today := domain.Today()
	from := domain.NewDate(today.Year(), today.Month(), 1)
	to := from.AddDays(daysIn(from) - 1)

	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		d, err := domain.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		from = d
	}
	if v := q.Get("to"); v != "" {
		d, err := domain.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		to = d
	}

	user := userFromContext(r.Context())
	markers, err := s.cycles.Calendar(r.Context(), user.ID, from, to)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":    from,
		"to":      to,
		"markers": markers,
	})
}

func daysIn(firstOfMonth domain.Date) int {
	next := domain.NewDate(firstOfMonth.Year(), firstOfMonth.Month()+1, 1)
	return firstOfMonth.DaysUntil(next)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusNotFound, errors.New("live updates disabled"))
		return
	}
	user := userFromContext(r.Context())
	s.hub.Serve(w, r, user.ID)
}
