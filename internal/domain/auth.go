// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"time"
)

// AccountType distinguishes the registration flows.
type AccountType string

const (
	AccountTeen   AccountType = "teen"
	AccountAdult  AccountType = "adult"
	AccountCouple AccountType = "couple"
)

// User represents an account in the system.
type User struct {
	ID            int64       `json:"id"`
	Email         string      `json:"email"`
	Name          string      `json:"name"`
	Type          AccountType `json:"type"`
	BirthDate     *Date       `json:"birthDate,omitempty"`
	ParentEmail   string      `json:"parentEmail,omitempty"`
	PartnerEmail  string      `json:"partnerEmail,omitempty"`
	CycleLength   int         `json:"cycleLength,omitempty"`
	PeriodLength  int         `json:"periodLength,omitempty"`
	PasswordHash  string      `json:"-"`
	EmailVerified bool        `json:"emailVerified"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// Session represents an active user session.
type Session struct {
	Token     string
	UserID    int64
	UserAgent string
	IP        string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// UserRepository defines the port for user persistence operations.
// Lookups return nil, nil when the user does not exist.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, u *User) (*User, error)
	MarkEmailVerified(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

// SessionRepository defines the port for session persistence operations.
type SessionRepository interface {
	Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context) error
}

// Mailer delivers transactional e-mail.
type Mailer interface {
	SendVerification(ctx context.Context, to, name, link string) error
}
