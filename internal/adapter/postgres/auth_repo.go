// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cycletracker/internal/domain"
)

const userColumns = "id, email, name, account_type, birth_date, parent_email, partner_email, cycle_length, period_length, password_hash, email_verified, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		birthDate sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Type, &birthDate, &u.ParentEmail, &u.PartnerEmail,
		&u.CycleLength, &u.PeriodLength, &u.PasswordHash, &u.EmailVerified, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if birthDate.Valid {
		d := domain.DateOf(birthDate.Time)
		u.BirthDate = &d
	}
	return &u, nil
}

// GetByEmail retrieves a user by e-mail address.
func (d *DB) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1",
		email,
	))
}

// GetByID retrieves a user by ID.
func (d *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1",
		id,
	))
}

// Create creates a new user.
func (d *DB) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	var birthDate any
	if u.BirthDate != nil {
		birthDate = u.BirthDate.String()
	}
	return scanUser(d.sql.QueryRowContext(ctx,
		`INSERT INTO users (email, name, account_type, birth_date, parent_email, partner_email,
			cycle_length, period_length, password_hash, email_verified, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+userColumns,
		u.Email, u.Name, string(u.Type), birthDate, u.ParentEmail, u.PartnerEmail,
		u.CycleLength, u.PeriodLength, u.PasswordHash, u.EmailVerified, time.Now().UTC(),
	))
}

// MarkEmailVerified flags the user's e-mail address as confirmed.
func (d *DB) MarkEmailVerified(ctx context.Context, id int64) error {
	_, err := d.sql.ExecContext(ctx, "UPDATE users SET email_verified = TRUE WHERE id = $1", id)
	return err
}

// Delete removes a user. Sessions, cycle data and preferences cascade.
func (d *DB) Delete(ctx context.Context, id int64) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	return err
}

// SessionRepo implements session repository operations on DB.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo wraps a DB as a SessionRepository.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
	_, err := r.db.sql.ExecContext(ctx,
		"INSERT INTO sessions (user_id, token, user_agent, ip, expires_at, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		userID, token, userAgent, ip, expiresAt, time.Now(),
	)
	return err
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.sql.QueryRowContext(ctx,
		"SELECT token, user_id, user_agent, ip, expires_at, created_at FROM sessions WHERE token = $1",
		token,
	).Scan(&s.Token, &s.UserID, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete deletes a session by token.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE token = $1", token)
	return err
}

// DeleteByUser deletes every session of a user.
func (r *SessionRepo) DeleteByUser(ctx context.Context, userID int64) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = $1", userID)
	return err
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < $1", time.Now())
	return err
}
