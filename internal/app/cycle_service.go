package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"cycletracker/internal/cycle"
	"cycletracker/internal/domain"
)

// MaxCalendarDays bounds the range accepted by Calendar.
const MaxCalendarDays = 366

// ErrInvalidRange indicates a calendar range that is reversed or too long.
var ErrInvalidRange = errors.New("invalid date range")

// CycleUpdate is the result of a cycle-log mutation.
type CycleUpdate struct {
	Record            domain.DayRecord `json:"record"`
	NextPredictedDate *domain.Date     `json:"nextPredictedDate"`
	Changed           bool             `json:"changed"`
}

// CycleSnapshot is the state exposed to calendar clients. Records holds the
// same entries as Log in date order.
type CycleSnapshot struct {
	Log               map[domain.Date]domain.DayRecord `json:"-"`
	Records           []domain.DayRecord               `json:"records"`
	NextPredictedDate *domain.Date                     `json:"nextPredictedDate"`
}

// CycleNotifier receives every applied cycle update.
type CycleNotifier interface {
	PublishCycleUpdate(userID int64, update CycleUpdate)
}

// CycleMetrics records cycle-log activity.
type CycleMetrics interface {
	RecordPeriodToggle(marked bool)
	RecordSymptomToggle(accepted bool)
}

type userLog struct {
	mu    sync.Mutex
	store *cycle.Store
}

// CycleService keeps one cycle log per signed-in user and writes every
// mutation through to the repository.
type CycleService struct {
	repo     domain.CycleRepository
	logger   *slog.Logger
	notifier CycleNotifier
	metrics  CycleMetrics

	mu   sync.Mutex
	logs map[int64]*userLog
}

// NewCycleService creates a CycleService backed by the given repository.
func NewCycleService(repo domain.CycleRepository, logger *slog.Logger) *CycleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CycleService{
		repo:   repo,
		logger: logger,
		logs:   make(map[int64]*userLog),
	}
}

// WithNotifier sets the receiver of cycle updates.
func (s *CycleService) WithNotifier(n CycleNotifier) *CycleService {
	s.notifier = n
	return s
}

// WithMetrics sets the metrics recorder.
func (s *CycleService) WithMetrics(m CycleMetrics) *CycleService {
	s.metrics = m
	return s
}

// open returns the user's log, loading it from the repository on first use.
func (s *CycleService) open(ctx context.Context, userID int64) (*userLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ul, ok := s.logs[userID]; ok {
		return ul, nil
	}

	records, err := s.repo.ListDayRecords(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cycle log: %w", err)
	}
	anchor, err := s.repo.GetPredictionAnchor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load prediction anchor: %w", err)
	}

	store := cycle.NewStore()
	store.Restore(records, anchor)
	ul := &userLog{store: store}
	s.logs[userID] = ul
	return ul, nil
}

// Discard drops the in-memory log for a user. The next access reloads it.
func (s *CycleService) Discard(userID int64) {
	s.mu.Lock()
	delete(s.logs, userID)
	s.mu.Unlock()
}

// ToggleTargetDay flips the period flag for date.
func (s *CycleService) ToggleTargetDay(ctx context.Context, userID int64, date domain.Date) (CycleUpdate, error) {
	ul, err := s.open(ctx, userID)
	if err != nil {
		return CycleUpdate{}, err
	}

	ul.mu.Lock()
	prevAnchor := ul.store.Anchor()
	prev, existed := ul.store.Lookup(date)
	rec := ul.store.ToggleTargetDay(date)
	anchor := ul.store.Anchor()

	if err := s.persist(ctx, userID, rec, prevAnchor, anchor); err != nil {
		revert(ul.store, prev, existed)
		ul.store.SetAnchor(prevAnchor)
		ul.mu.Unlock()
		return CycleUpdate{}, err
	}
	update := CycleUpdate{Record: rec, NextPredictedDate: nextOf(ul.store), Changed: true}
	ul.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordPeriodToggle(rec.IsPeriodDay)
	}
	s.publish(userID, update)
	return update, nil
}

// ToggleSymptom flips a symptom on date. rawID may be a catalog id, a display
// name or a legacy numeric id; anything else leaves the log unchanged and
// returns Changed=false.
func (s *CycleService) ToggleSymptom(ctx context.Context, userID int64, date domain.Date, rawID string) (CycleUpdate, error) {
	ul, err := s.open(ctx, userID)
	if err != nil {
		return CycleUpdate{}, err
	}

	symptom, _ := domain.ParseSymptom(rawID)

	ul.mu.Lock()
	prev, existed := ul.store.Lookup(date)
	rec, ok := ul.store.ToggleSymptom(date, symptom)
	if !ok {
		update := CycleUpdate{Record: rec, NextPredictedDate: nextOf(ul.store)}
		ul.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordSymptomToggle(false)
		}
		s.logger.Debug("ignored unknown symptom", "user_id", userID, "symptom", rawID)
		return update, nil
	}

	if err := s.repo.SaveDayRecord(ctx, userID, rec); err != nil {
		revert(ul.store, prev, existed)
		ul.mu.Unlock()
		return CycleUpdate{}, fmt.Errorf("save day record: %w", err)
	}
	update := CycleUpdate{Record: rec, NextPredictedDate: nextOf(ul.store), Changed: true}
	ul.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordSymptomToggle(true)
	}
	s.publish(userID, update)
	return update, nil
}

// GetRecord returns the record for date, or an empty record.
func (s *CycleService) GetRecord(ctx context.Context, userID int64, date domain.Date) (domain.DayRecord, error) {
	ul, err := s.open(ctx, userID)
	if err != nil {
		return domain.DayRecord{}, err
	}
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return ul.store.GetRecord(date), nil
}

// Snapshot returns the full log and the current prediction.
func (s *CycleService) Snapshot(ctx context.Context, userID int64) (CycleSnapshot, error) {
	ul, err := s.open(ctx, userID)
	if err != nil {
		return CycleSnapshot{}, err
	}
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return CycleSnapshot{
		Log:               ul.store.Log(),
		Records:           ul.store.Records(),
		NextPredictedDate: nextOf(ul.store),
	}, nil
}

// Calendar returns the markers for [from, to].
func (s *CycleService) Calendar(ctx context.Context, userID int64, from, to domain.Date) ([]cycle.Marker, error) {
	if to.Before(from) || from.DaysUntil(to) >= MaxCalendarDays {
		return nil, fmt.Errorf("%w: from %s to %s (max %d days)", ErrInvalidRange, from, to, MaxCalendarDays)
	}
	ul, err := s.open(ctx, userID)
	if err != nil {
		return nil, err
	}
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return cycle.Markers(ul.store.Log(), nextOf(ul.store), from, to), nil
}

// persist writes rec, together with the anchor when it moved. Both land or
// neither does.
func (s *CycleService) persist(ctx context.Context, userID int64, rec domain.DayRecord, prevAnchor, anchor *domain.Date) error {
	if anchor != nil && (prevAnchor == nil || *prevAnchor != *anchor) {
		if err := s.repo.SaveDayRecordWithAnchor(ctx, userID, rec, *anchor); err != nil {
			return fmt.Errorf("save marked day: %w", err)
		}
		return nil
	}
	if err := s.repo.SaveDayRecord(ctx, userID, rec); err != nil {
		return fmt.Errorf("save day record: %w", err)
	}
	return nil
}

// revert puts back the record that existed before a failed write, or removes
// the one the write created.
func revert(store *cycle.Store, prev domain.DayRecord, existed bool) {
	if existed {
		store.Put(prev)
		return
	}
	store.Forget(prev.Date)
}

func (s *CycleService) publish(userID int64, update CycleUpdate) {
	if s.notifier != nil {
		s.notifier.PublishCycleUpdate(userID, update)
	}
}

func nextOf(store *cycle.Store) *domain.Date {
	next, ok := store.NextPredictedDate()
	if !ok {
		return nil
	}
	return &next
}
