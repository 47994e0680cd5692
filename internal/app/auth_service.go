// Package app holds the application services and business logic.
package app

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"cycletracker/internal/domain"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

var (
	// ErrInvalidCredentials indicates that the provided e-mail or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrSessionNotFound indicates that the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates that the session has expired.
	ErrSessionExpired = errors.New("session expired")
	// ErrUserNotFound indicates that the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailNotVerified indicates a login attempt before the e-mail address was confirmed.
	ErrEmailNotVerified = errors.New("email not verified, please check your inbox for the verification link")
	// ErrEmailTaken indicates a registration for an address that already has an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrAlreadyVerified indicates a resend request for a verified account.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrResendTooSoon indicates a resend request inside the cooldown window.
	ErrResendTooSoon = errors.New("verification email was sent recently, try again later")
	// ErrValidation wraps registration input errors.
	ErrValidation = errors.New("validation failed")
)

// Age bounds for teen accounts, by calendar year.
const (
	minTeenAge = 13
	maxTeenAge = 17
)

// Partner is the second account of a couple registration.
type Partner struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email"`
}

// Registration is the input of Register.
type Registration struct {
	Type         domain.AccountType `json:"type" validate:"required,oneof=teen adult couple"`
	Name         string             `json:"name" validate:"required,max=100"`
	Email        string             `json:"email" validate:"required,email"`
	Password     string             `json:"password" validate:"required,min=6,max=72"`
	BirthDate    *domain.Date       `json:"birthDate" validate:"required_if=Type teen"`
	ParentEmail  string             `json:"parentEmail" validate:"omitempty,email"`
	CycleLength  int                `json:"cycleLength" validate:"omitempty,min=15,max=60"`
	PeriodLength int                `json:"periodLength" validate:"omitempty,min=1,max=15"`
	Partner      *Partner           `json:"partner" validate:"required_if=Type couple"`
}

// CycleLogDiscarder drops a user's session-scoped cycle log.
type CycleLogDiscarder interface {
	Discard(userID int64)
}

// AuthMetrics records account activity.
type AuthMetrics interface {
	RecordRegistration(accountType string)
	RecordLogin(success bool)
}

// AuthOptions configures an AuthService. Zero values select defaults.
type AuthOptions struct {
	SessionTTL     time.Duration
	ResendCooldown time.Duration
	BaseURL        string
	Tokens         *VerificationTokens
	Mailer         domain.Mailer
	Cycles         domain.CycleRepository
	Preferences    domain.PreferenceRepository
	CycleLogs      CycleLogDiscarder
	Metrics        AuthMetrics
	Logger         *slog.Logger
}

// AuthService handles registration, e-mail verification, authentication and
// session management.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	opts     AuthOptions
	validate *validator.Validate
	now      func() time.Time

	resendMu sync.Mutex
	resend   map[string]*rate.Limiter
}

// NewAuthService creates a new authentication service.
func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository, opts AuthOptions) *AuthService {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.ResendCooldown <= 0 {
		opts.ResendCooldown = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
		resend:   make(map[string]*rate.Limiter),
	}
}

// SessionTTL returns the lifetime of new sessions.
func (s *AuthService) SessionTTL() time.Duration { return s.opts.SessionTTL }

// Register creates the account(s) for reg and sends verification e-mails.
// Couple registrations create one account per partner. A failed e-mail does
// not undo the registration; the user can ask for a resend.
func (s *AuthService) Register(ctx context.Context, reg Registration) ([]*domain.User, error) {
	reg.Email = normalizeEmail(reg.Email)
	reg.ParentEmail = normalizeEmail(reg.ParentEmail)
	if reg.Partner != nil {
		reg.Partner.Email = normalizeEmail(reg.Partner.Email)
	}
	if err := s.validate.Struct(reg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if err := s.checkAccountRules(reg); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	accounts := []*domain.User{{
		Email:        reg.Email,
		Name:         strings.TrimSpace(reg.Name),
		Type:         reg.Type,
		BirthDate:    reg.BirthDate,
		ParentEmail:  reg.ParentEmail,
		CycleLength:  reg.CycleLength,
		PeriodLength: reg.PeriodLength,
		PasswordHash: string(hash),
	}}
	if reg.Type == domain.AccountCouple {
		accounts[0].PartnerEmail = reg.Partner.Email
		accounts = append(accounts, &domain.User{
			Email:        reg.Partner.Email,
			Name:         strings.TrimSpace(reg.Partner.Name),
			Type:         domain.AccountCouple,
			PartnerEmail: reg.Email,
			PasswordHash: string(hash),
		})
	}

	for _, a := range accounts {
		existing, err := s.users.GetByEmail(ctx, a.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: %s", ErrEmailTaken, a.Email)
		}
	}

	created := make([]*domain.User, 0, len(accounts))
	for _, a := range accounts {
		u, err := s.users.Create(ctx, a)
		if err != nil {
			s.removeAccounts(ctx, created)
			return nil, fmt.Errorf("create user %s: %w", a.Email, err)
		}
		created = append(created, u)
	}

	for _, u := range created {
		s.resendLimiter(u.Email).Allow()
		if err := s.sendVerification(ctx, u); err != nil {
			s.opts.Logger.Warn("verification email failed", "user_id", u.ID, "error", err)
		}
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordRegistration(string(reg.Type))
	}
	s.opts.Logger.Info("account registered", "type", reg.Type, "accounts", len(created))
	return created, nil
}

// removeAccounts deletes accounts of a registration that could not complete,
// so the same addresses can register again.
func (s *AuthService) removeAccounts(ctx context.Context, users []*domain.User) {
	for _, u := range users {
		if err := s.users.Delete(ctx, u.ID); err != nil {
			s.opts.Logger.Error("remove partial registration", "user_id", u.ID, "error", err)
		}
	}
}

func (s *AuthService) checkAccountRules(reg Registration) error {
	switch reg.Type {
	case domain.AccountTeen:
		age := s.now().Year() - reg.BirthDate.Year()
		if age < minTeenAge || age > maxTeenAge {
			return fmt.Errorf("%w: teen accounts require an age between %d and %d", ErrValidation, minTeenAge, maxTeenAge)
		}
	case domain.AccountCouple:
		if reg.Partner.Email == reg.Email {
			return fmt.Errorf("%w: partners need different email addresses", ErrValidation)
		}
	}
	return nil
}

// VerifyEmail marks the account named by a verification token as verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*domain.User, error) {
	if s.opts.Tokens == nil {
		return nil, ErrInvalidToken
	}
	id, err := s.opts.Tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.EmailVerified {
		if err := s.users.MarkEmailVerified(ctx, id); err != nil {
			return nil, err
		}
		user.EmailVerified = true
	}
	return user, nil
}

// ResendVerification sends a fresh verification e-mail, at most once per
// cooldown window per address.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}
	if !s.resendLimiter(email).Allow() {
		return ErrResendTooSoon
	}
	return s.sendVerification(ctx, user)
}

func (s *AuthService) resendLimiter(email string) *rate.Limiter {
	s.resendMu.Lock()
	defer s.resendMu.Unlock()
	l, ok := s.resend[email]
	if !ok {
		l = rate.NewLimiter(rate.Every(s.opts.ResendCooldown), 1)
		s.resend[email] = l
	}
	return l
}

func (s *AuthService) sendVerification(ctx context.Context, u *domain.User) error {
	if s.opts.Mailer == nil || s.opts.Tokens == nil {
		return nil
	}
	token, err := s.opts.Tokens.Issue(u.ID)
	if err != nil {
		return err
	}
	link := strings.TrimRight(s.opts.BaseURL, "/") + "/api/auth/verify?token=" + url.QueryEscape(token)
	return s.opts.Mailer.SendVerification(ctx, u.Email, u.Name, link)
}

// Login authenticates a user and creates a session.
func (s *AuthService) Login(ctx context.Context, email, password, userAgent, ip string) (string, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil || user == nil || user.PasswordHash == "" {
		s.recordLogin(false)
		return "", ErrInvalidCredentials
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.recordLogin(false)
		return "", ErrInvalidCredentials
	}
	if !user.EmailVerified {
		s.recordLogin(false)
		return "", ErrEmailNotVerified
	}

	token, err := s.createSession(ctx, user.ID, userAgent, ip)
	if err != nil {
		return "", err
	}
	s.recordLogin(true)
	return token, nil
}

func (s *AuthService) recordLogin(ok bool) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordLogin(ok)
	}
}

// Logout invalidates a session and discards the user's in-memory cycle log.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return err
	}
	if session != nil && s.opts.CycleLogs != nil {
		s.opts.CycleLogs.Discard(session.UserID)
	}
	return nil
}

// ValidateSession checks if a session token is valid and matches the user agent.
func (s *AuthService) ValidateSession(ctx context.Context, token, userAgent string) (*domain.User, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil || session == nil {
		return nil, ErrSessionNotFound
	}

	if s.now().After(session.ExpiresAt) {
		_ = s.sessions.Delete(ctx, token)
		return nil, ErrSessionExpired
	}

	if session.UserAgent != userAgent {
		_ = s.sessions.Delete(ctx, token)
		return nil, ErrSessionExpired
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil || user == nil {
		return nil, ErrUserNotFound
	}

	return user, nil
}

// ValidateForwardAuth validates a request from a forward-auth proxy that set
// the Remote-User header. Unknown users are provisioned as verified accounts.
func (s *AuthService) ValidateForwardAuth(ctx context.Context, remoteUser string) (*domain.User, error) {
	if remoteUser == "" {
		return nil, errors.New("no remote user header")
	}
	return s.provision(ctx, remoteUser, remoteUser)
}

// LoginWithUser creates a session for an already authenticated user (e.g. via SSO).
func (s *AuthService) LoginWithUser(ctx context.Context, email, name, userAgent, ip string) (string, error) {
	user, err := s.provision(ctx, email, name)
	if err != nil {
		return "", err
	}
	return s.createSession(ctx, user.ID, userAgent, ip)
}

func (s *AuthService) provision(ctx context.Context, email, name string) (*domain.User, error) {
	email = normalizeEmail(email)
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	// SSO accounts have no password and are verified by the identity provider.
	user, err = s.users.Create(ctx, &domain.User{
		Email:         email,
		Name:          name,
		Type:          domain.AccountAdult,
		EmailVerified: true,
	})
	if err != nil {
		// Lost a race with a concurrent provision of the same address.
		if again, getErr := s.users.GetByEmail(ctx, email); getErr == nil && again != nil {
			return again, nil
		}
		return nil, err
	}
	return user, nil
}

// DeleteAccount removes a user together with sessions, cycle data and
// preferences.
func (s *AuthService) DeleteAccount(ctx context.Context, userID int64) error {
	if err := s.sessions.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	if s.opts.Cycles != nil {
		if err := s.opts.Cycles.DeleteCycleData(ctx, userID); err != nil {
			return fmt.Errorf("delete cycle data: %w", err)
		}
	}
	if s.opts.Preferences != nil {
		if err := s.opts.Preferences.DeletePreferences(ctx, userID); err != nil {
			return fmt.Errorf("delete preferences: %w", err)
		}
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if s.opts.CycleLogs != nil {
		s.opts.CycleLogs.Discard(userID)
	}
	s.opts.Logger.Info("account deleted", "user_id", userID)
	return nil
}

func (s *AuthService) createSession(ctx context.Context, userID int64, userAgent, ip string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	expiresAt := s.now().Add(s.opts.SessionTTL)
	if err := s.sessions.Create(ctx, userID, token, userAgent, ip, expiresAt); err != nil {
		return "", err
	}
	return token, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ConstantTimeCompare performs a constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
