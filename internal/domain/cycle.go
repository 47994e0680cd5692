package domain

import "context"

// DayRecord is everything logged for a single calendar date.
type DayRecord struct {
	Date        Date       `json:"date"`
	IsPeriodDay bool       `json:"isPeriodDay"`
	Symptoms    SymptomSet `json:"symptoms"`
}

// IsEmpty reports whether nothing is logged on the record.
func (r DayRecord) IsEmpty() bool {
	return !r.IsPeriodDay && r.Symptoms.Empty()
}

// CycleRepository is the port for durable storage of a user's cycle log.
// GetPredictionAnchor returns nil when no period day was ever marked.
// SaveDayRecordWithAnchor writes the record and the anchor atomically.
type CycleRepository interface {
	SaveDayRecord(ctx context.Context, userID int64, rec DayRecord) error
	SaveDayRecordWithAnchor(ctx context.Context, userID int64, rec DayRecord, anchor Date) error
	ListDayRecords(ctx context.Context, userID int64) ([]DayRecord, error)
	SavePredictionAnchor(ctx context.Context, userID int64, anchor Date) error
	GetPredictionAnchor(ctx context.Context, userID int64) (*Date, error)
	DeleteCycleData(ctx context.Context, userID int64) error
}
