package cycle

import (
	"sort"

	"cycletracker/internal/domain"
)

// Store is an in-memory cycle log for one user.
type Store struct {
	records   map[domain.Date]domain.DayRecord
	anchor    domain.Date
	hasAnchor bool
}

// NewStore returns an empty log with no prediction.
func NewStore() *Store {
	return &Store{records: make(map[domain.Date]domain.DayRecord)}
}

// Restore replaces the log with records and sets the prediction anchor. A nil
// anchor means no date was ever marked.
func (s *Store) Restore(records []domain.DayRecord, anchor *domain.Date) {
	s.records = make(map[domain.Date]domain.DayRecord, len(records))
	for _, r := range records {
		s.records[r.Date] = r
	}
	s.SetAnchor(anchor)
}

// ToggleTargetDay flips the period flag for d and returns the updated record.
// Marking a day recomputes the prediction from d; unmarking does not.
func (s *Store) ToggleTargetDay(d domain.Date) domain.DayRecord {
	rec := s.GetRecord(d)
	rec.IsPeriodDay = !rec.IsPeriodDay
	s.records[d] = rec
	if rec.IsPeriodDay {
		s.anchor = d
		s.hasAnchor = true
	}
	return rec
}

// ToggleSymptom flips membership of symptom on d. Symptoms outside the catalog
// are ignored: no record is created and ok is false.
func (s *Store) ToggleSymptom(d domain.Date, symptom domain.Symptom) (rec domain.DayRecord, ok bool) {
	rec = s.GetRecord(d)
	if !symptom.Valid() {
		return rec, false
	}
	rec.Symptoms = rec.Symptoms.Toggle(symptom)
	s.records[d] = rec
	return rec, true
}

// GetRecord returns the record for d, or an empty record if nothing was logged.
func (s *Store) GetRecord(d domain.Date) domain.DayRecord {
	if rec, ok := s.records[d]; ok {
		return rec
	}
	return domain.DayRecord{Date: d}
}

// Lookup returns the stored record for d and whether one exists.
func (s *Store) Lookup(d domain.Date) (domain.DayRecord, bool) {
	rec, ok := s.records[d]
	if !ok {
		rec.Date = d
	}
	return rec, ok
}

// Put stores rec under its date, replacing any existing record.
func (s *Store) Put(rec domain.DayRecord) {
	s.records[rec.Date] = rec
}

// Forget removes the record for d. The anchor is not touched.
func (s *Store) Forget(d domain.Date) {
	delete(s.records, d)
}

// NextPredictedDate returns the predicted start of the next period, or false
// if no day was ever marked.
func (s *Store) NextPredictedDate() (domain.Date, bool) {
	if !s.hasAnchor {
		return domain.Date{}, false
	}
	return Predict(s.anchor), true
}

// Anchor returns the most recently marked date, or nil.
func (s *Store) Anchor() *domain.Date {
	if !s.hasAnchor {
		return nil
	}
	a := s.anchor
	return &a
}

// SetAnchor overrides the prediction anchor. A nil anchor clears it.
func (s *Store) SetAnchor(anchor *domain.Date) {
	if anchor == nil {
		s.anchor, s.hasAnchor = domain.Date{}, false
		return
	}
	s.anchor, s.hasAnchor = *anchor, true
}

// Log returns a copy of the date-to-record mapping.
func (s *Store) Log() map[domain.Date]domain.DayRecord {
	out := make(map[domain.Date]domain.DayRecord, len(s.records))
	for d, r := range s.records {
		out[d] = r
	}
	return out
}

// Records returns every stored record in date order.
func (s *Store) Records() []domain.DayRecord {
	out := make([]domain.DayRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
