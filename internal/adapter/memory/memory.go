// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"cycletracker/internal/domain"
)

// DB implements an in-memory database storage.
type DB struct {
	mu          sync.Mutex
	days        map[int64]map[domain.Date]domain.DayRecord
	anchors     map[int64]domain.Date
	preferences map[int64]map[string]bool
	users       []*domain.User
	sessions    map[string]*domain.Session

	userIDCounter int64
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		days:        make(map[int64]map[domain.Date]domain.DayRecord),
		anchors:     make(map[int64]domain.Date),
		preferences: make(map[int64]map[string]bool),
		sessions:    make(map[string]*domain.Session),
	}
}

// Ensure interfaces are met.
var _ domain.CycleRepository = (*DB)(nil)
var _ domain.PreferenceRepository = (*DB)(nil)
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// --- CycleRepository ---

// SaveDayRecord inserts or replaces the record for its date.
func (db *DB) SaveDayRecord(ctx context.Context, userID int64, rec domain.DayRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.putDay(userID, rec)
	return nil
}

// SaveDayRecordWithAnchor stores the record and the anchor under one lock.
func (db *DB) SaveDayRecordWithAnchor(ctx context.Context, userID int64, rec domain.DayRecord, anchor domain.Date) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.putDay(userID, rec)
	db.anchors[userID] = anchor
	return nil
}

func (db *DB) putDay(userID int64, rec domain.DayRecord) {
	days, ok := db.days[userID]
	if !ok {
		days = make(map[domain.Date]domain.DayRecord)
		db.days[userID] = days
	}
	days[rec.Date] = rec
}

// ListDayRecords returns the user's records in date order.
func (db *DB) ListDayRecords(ctx context.Context, userID int64) ([]domain.DayRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := make([]domain.DayRecord, 0, len(db.days[userID]))
	for _, r := range db.days[userID] {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// SavePredictionAnchor stores the most recently marked period day.
func (db *DB) SavePredictionAnchor(ctx context.Context, userID int64, anchor domain.Date) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.anchors[userID] = anchor
	return nil
}

// GetPredictionAnchor returns the stored anchor, or nil.
func (db *DB) GetPredictionAnchor(ctx context.Context, userID int64) (*domain.Date, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if a, ok := db.anchors[userID]; ok {
		return &a, nil
	}
	return nil, nil
}

// DeleteCycleData removes every record and the anchor of a user.
func (db *DB) DeleteCycleData(ctx context.Context, userID int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.days, userID)
	delete(db.anchors, userID)
	return nil
}

// --- PreferenceRepository ---

// GetPreferences returns the stored preferences of a user.
func (db *DB) GetPreferences(ctx context.Context, userID int64) (map[string]bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make(map[string]bool, len(db.preferences[userID]))
	for k, v := range db.preferences[userID] {
		out[k] = v
	}
	return out, nil
}

// SetPreference stores a single preference.
func (db *DB) SetPreference(ctx context.Context, userID int64, key string, value bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	prefs, ok := db.preferences[userID]
	if !ok {
		prefs = make(map[string]bool)
		db.preferences[userID] = prefs
	}
	prefs[key] = value
	return nil
}

// DeletePreferences removes every stored preference of a user.
func (db *DB) DeletePreferences(ctx context.Context, userID int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.preferences, userID)
	return nil
}

// --- UserRepository ---

// GetByEmail retrieves a user by e-mail address.
func (db *DB) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	// Return nil if not found
	return nil, nil
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.users {
		if existing.Email == u.Email {
			return nil, errors.New("user already exists")
		}
	}

	db.userIDCounter++
	stored := *u
	stored.ID = db.userIDCounter
	stored.CreatedAt = time.Now().UTC()
	db.users = append(db.users, &stored)

	cp := stored
	return &cp, nil
}

// MarkEmailVerified flags the user's e-mail address as confirmed.
func (db *DB) MarkEmailVerified(ctx context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			u.EmailVerified = true
			return nil
		}
	}
	return errors.New("user not found")
}

// Delete removes a user.
func (db *DB) Delete(ctx context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i, u := range db.users {
		if u.ID == id {
			db.users = append(db.users[:i], db.users[i+1:]...)
			return nil
		}
	}
	return nil
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions[token] = &domain.Session{
		Token:     token,
		UserID:    userID,
		UserAgent: userAgent,
		IP:        ip,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s, ok := r.db.sessions[token]; ok {
		if time.Now().After(s.ExpiresAt) {
			delete(r.db.sessions, token)
			return nil, nil
		}
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, token)
	return nil
}

// DeleteByUser deletes every session of a user.
func (r *SessionRepo) DeleteByUser(ctx context.Context, userID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for k, v := range r.db.sessions {
		if v.UserID == userID {
			delete(r.db.sessions, k)
		}
	}
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
		}
	}
	return nil
}
