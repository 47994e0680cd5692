package app

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"cycletracker/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

type mockUserRepo struct {
	getByEmailFn        func(ctx context.Context, email string) (*domain.User, error)
	getByIDFn           func(ctx context.Context, id int64) (*domain.User, error)
	createFn            func(ctx context.Context, u *domain.User) (*domain.User, error)
	markEmailVerifiedFn func(ctx context.Context, id int64) error
	deleteFn            func(ctx context.Context, id int64) error
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, u)
	}
	cp := *u
	cp.ID = 1
	return &cp, nil
}

func (m *mockUserRepo) MarkEmailVerified(ctx context.Context, id int64) error {
	if m.markEmailVerifiedFn != nil {
		return m.markEmailVerifiedFn(ctx, id)
	}
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// userTable is a stateful UserRepository for flows spanning several calls.
type userTable struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.User
}

func newUserTable() *userTable {
	return &userTable{byID: make(map[int64]*domain.User)}
}

func (u *userTable) repo() *mockUserRepo {
	return &mockUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			u.mu.Lock()
			defer u.mu.Unlock()
			for _, usr := range u.byID {
				if usr.Email == email {
					cp := *usr
					return &cp, nil
				}
			}
			return nil, nil
		},
		getByIDFn: func(ctx context.Context, id int64) (*domain.User, error) {
			u.mu.Lock()
			defer u.mu.Unlock()
			if usr, ok := u.byID[id]; ok {
				cp := *usr
				return &cp, nil
			}
			return nil, nil
		},
		createFn: func(ctx context.Context, usr *domain.User) (*domain.User, error) {
			u.mu.Lock()
			defer u.mu.Unlock()
			u.nextID++
			cp := *usr
			cp.ID = u.nextID
			u.byID[cp.ID] = &cp
			out := cp
			return &out, nil
		},
		markEmailVerifiedFn: func(ctx context.Context, id int64) error {
			u.mu.Lock()
			defer u.mu.Unlock()
			usr, ok := u.byID[id]
			if !ok {
				return errors.New("not found")
			}
			usr.EmailVerified = true
			return nil
		},
		deleteFn: func(ctx context.Context, id int64) error {
			u.mu.Lock()
			defer u.mu.Unlock()
			delete(u.byID, id)
			return nil
		},
	}
}

type mockSessionRepo struct {
	createFn        func(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error
	getByTokenFn    func(ctx context.Context, token string) (*domain.Session, error)
	deleteFn        func(ctx context.Context, token string) error
	deleteByUserFn  func(ctx context.Context, userID int64) error
	deleteExpiredFn func(ctx context.Context) error
}

func (m *mockSessionRepo) Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
	if m.createFn != nil {
		return m.createFn(ctx, userID, token, userAgent, ip, expiresAt)
	}
	return nil
}

func (m *mockSessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	if m.getByTokenFn != nil {
		return m.getByTokenFn(ctx, token)
	}
	return nil, nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, token string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, token)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUser(ctx context.Context, userID int64) error {
	if m.deleteByUserFn != nil {
		return m.deleteByUserFn(ctx, userID)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) error {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx)
	}
	return nil
}

type sentMail struct {
	to, name, link string
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (c *captureMailer) SendVerification(ctx context.Context, to, name, link string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, sentMail{to: to, name: name, link: link})
	return nil
}

func (c *captureMailer) last(t *testing.T) sentMail {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		t.Fatal("no verification email sent")
	}
	return c.sent[len(c.sent)-1]
}

type discardRecorder struct {
	discarded []int64
}

func (d *discardRecorder) Discard(userID int64) {
	d.discarded = append(d.discarded, userID)
}

type countingAuthMetrics struct {
	registrations map[string]int
	logins        map[bool]int
}

func newCountingAuthMetrics() *countingAuthMetrics {
	return &countingAuthMetrics{registrations: map[string]int{}, logins: map[bool]int{}}
}

func (c *countingAuthMetrics) RecordRegistration(accountType string) { c.registrations[accountType]++ }
func (c *countingAuthMetrics) RecordLogin(success bool)             { c.logins[success]++ }

const testSecret = "0123456789abcdef0123456789abcdef"

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link %q: %v", link, err)
	}
	if u.Path != "/api/auth/verify" {
		t.Errorf("unexpected verification path %q", u.Path)
	}
	return u.Query().Get("token")
}

func adultRegistration(email string) Registration {
	return Registration{
		Type:     domain.AccountAdult,
		Name:     "Alice",
		Email:    email,
		Password: "secret123",
	}
}

func TestAuthService_Register_Adult(t *testing.T) {
	ctx := context.Background()
	users := newUserTable()
	mailer := &captureMailer{}
	metrics := newCountingAuthMetrics()
	svc := NewAuthService(users.repo(), &mockSessionRepo{}, AuthOptions{
		BaseURL: "https://cycle.example.com/",
		Tokens:  NewVerificationTokens(testSecret, time.Hour),
		Mailer:  mailer,
		Metrics: metrics,
	})

	created, err := svc.Register(ctx, adultRegistration("  Alice@Example.COM "))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 account, got %d", len(created))
	}
	u := created[0]
	if u.Email != "alice@example.com" {
		t.Errorf("expected normalized email, got %q", u.Email)
	}
	if u.EmailVerified {
		t.Error("new accounts must start unverified")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret123")) != nil {
		t.Error("password hash does not match")
	}

	mail := mailer.last(t)
	if mail.to != "alice@example.com" || mail.name != "Alice" {
		t.Errorf("unexpected mail %+v", mail)
	}
	if !strings.HasPrefix(mail.link, "https://cycle.example.com/api/auth/verify?token=") {
		t.Errorf("unexpected link %q", mail.link)
	}
	if metrics.registrations["adult"] != 1 {
		t.Errorf("expected adult registration metric, got %v", metrics.registrations)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	thisYear := time.Now().Year()
	teenBirth := domain.NewDate(thisYear-15, time.March, 1)
	childBirth := domain.NewDate(thisYear-10, time.March, 1)
	adultBirth := domain.NewDate(thisYear-30, time.March, 1)

	tests := []struct {
		name    string
		reg     Registration
		wantErr bool
	}{
		{"adult ok", adultRegistration("a@example.com"), false},
		{"missing name", Registration{Type: domain.AccountAdult, Email: "a@example.com", Password: "secret123"}, true},
		{"bad email", Registration{Type: domain.AccountAdult, Name: "A", Email: "nope", Password: "secret123"}, true},
		{"short password", Registration{Type: domain.AccountAdult, Name: "A", Email: "a@example.com", Password: "123"}, true},
		{"unknown type", Registration{Type: "robot", Name: "A", Email: "a@example.com", Password: "secret123"}, true},
		{"teen ok", Registration{Type: domain.AccountTeen, Name: "T", Email: "t@example.com", Password: "secret123", BirthDate: &teenBirth, ParentEmail: "p@example.com"}, false},
		{"teen without birth date", Registration{Type: domain.AccountTeen, Name: "T", Email: "t@example.com", Password: "secret123"}, true},
		{"teen too young", Registration{Type: domain.AccountTeen, Name: "T", Email: "t@example.com", Password: "secret123", BirthDate: &childBirth}, true},
		{"teen too old", Registration{Type: domain.AccountTeen, Name: "T", Email: "t@example.com", Password: "secret123", BirthDate: &adultBirth}, true},
		{"couple without partner", Registration{Type: domain.AccountCouple, Name: "C", Email: "c@example.com", Password: "secret123"}, true},
		{"couple same email", Registration{Type: domain.AccountCouple, Name: "C", Email: "c@example.com", Password: "secret123", Partner: &Partner{Name: "D", Email: "C@example.com"}}, true},
		{"cycle length out of range", Registration{Type: domain.AccountAdult, Name: "A", Email: "a@example.com", Password: "secret123", CycleLength: 90}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAuthService(newUserTable().repo(), &mockSessionRepo{}, AuthOptions{})
			_, err := svc.Register(context.Background(), tt.reg)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestAuthService_Register_Couple(t *testing.T) {
	ctx := context.Background()
	users := newUserTable()
	mailer := &captureMailer{}
	svc := NewAuthService(users.repo(), &mockSessionRepo{}, AuthOptions{
		Tokens: NewVerificationTokens(testSecret, time.Hour),
		Mailer: mailer,
	})

	created, err := svc.Register(ctx, Registration{
		Type:     domain.AccountCouple,
		Name:     "Carol",
		Email:    "carol@example.com",
		Password: "secret123",
		Partner:  &Partner{Name: "Dave", Email: "dave@example.com"},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(created))
	}
	if created[0].PartnerEmail != "dave@example.com" || created[1].PartnerEmail != "carol@example.com" {
		t.Errorf("partners not linked: %+v %+v", created[0], created[1])
	}
	if len(mailer.sent) != 2 {
		t.Errorf("expected 2 verification emails, got %d", len(mailer.sent))
	}
}

func TestAuthService_Register_CouplePartialFailure(t *testing.T) {
	ctx := context.Background()
	users := newUserTable()
	repo := users.repo()
	create := repo.createFn
	failPartner := true
	repo.createFn = func(ctx context.Context, u *domain.User) (*domain.User, error) {
		if failPartner && u.Email == "dave@example.com" {
			return nil, errors.New("insert failed")
		}
		return create(ctx, u)
	}
	mailer := &captureMailer{}
	svc := NewAuthService(repo, &mockSessionRepo{}, AuthOptions{
		Tokens: NewVerificationTokens(testSecret, time.Hour),
		Mailer: mailer,
	})
	reg := Registration{
		Type:     domain.AccountCouple,
		Name:     "Carol",
		Email:    "carol@example.com",
		Password: "secret123",
		Partner:  &Partner{Name: "Dave", Email: "dave@example.com"},
	}

	created, err := svc.Register(ctx, reg)
	if err == nil {
		t.Fatal("expected error")
	}
	if created != nil {
		t.Errorf("expected no accounts returned, got %+v", created)
	}
	if u, _ := repo.GetByEmail(ctx, "carol@example.com"); u != nil {
		t.Error("first partner account must be removed")
	}
	if len(mailer.sent) != 0 {
		t.Errorf("expected no verification emails, got %d", len(mailer.sent))
	}

	failPartner = false
	created, err = svc.Register(ctx, reg)
	if err != nil {
		t.Fatalf("retry Register: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 accounts on retry, got %d", len(created))
	}
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(newUserTable().repo(), &mockSessionRepo{}, AuthOptions{})

	if _, err := svc.Register(ctx, adultRegistration("a@example.com")); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := svc.Register(ctx, adultRegistration("A@example.com"))
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAuthService_Register_MailFailureKeepsAccount(t *testing.T) {
	ctx := context.Background()
	users := newUserTable()
	svc := NewAuthService(users.repo(), &mockSessionRepo{}, AuthOptions{
		Tokens: NewVerificationTokens(testSecret, time.Hour),
		Mailer: &captureMailer{err: errors.New("smtp down")},
	})

	created, err := svc.Register(ctx, adultRegistration("a@example.com"))
	if err != nil {
		t.Fatalf("expected registration to succeed, got %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 account, got %d", len(created))
	}
}

func TestAuthService_VerifyThenLogin(t *testing.T) {
	ctx := context.Background()
	users := newUserTable()
	mailer := &captureMailer{}
	metrics := newCountingAuthMetrics()

	var sessionUser int64
	sessions := &mockSessionRepo{
		createFn: func(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
			sessionUser = userID
			if userAgent != "agent" || ip != "10.0.0.1" {
				t.Errorf("unexpected session metadata %q %q", userAgent, ip)
			}
			return nil
		},
	}
	svc := NewAuthService(users.repo(), sessions, AuthOptions{
		Tokens:  NewVerificationTokens(testSecret, time.Hour),
		Mailer:  mailer,
		Metrics: metrics,
	})

	created, err := svc.Register(ctx, adultRegistration("a@example.com"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err = svc.Login(ctx, "a@example.com", "secret123", "agent", "10.0.0.1")
	if !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified, got %v", err)
	}

	verified, err := svc.VerifyEmail(ctx, tokenFromLink(t, mailer.last(t).link))
	if err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if !verified.EmailVerified || verified.ID != created[0].ID {
		t.Errorf("unexpected verified user %+v", verified)
	}

	token, err := svc.Login(ctx, "A@example.com", "secret123", "agent", "10.0.0.1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Error("expected token, got empty string")
	}
	if sessionUser != created[0].ID {
		t.Errorf("session created for %d, want %d", sessionUser, created[0].ID)
	}
	if metrics.logins[true] != 1 || metrics.logins[false] != 1 {
		t.Errorf("unexpected login metrics %v", metrics.logins)
	}
}

func TestAuthService_VerifyEmail_InvalidToken(t *testing.T) {
	svc := NewAuthService(newUserTable().repo(), &mockSessionRepo{}, AuthOptions{
		Tokens: NewVerificationTokens(testSecret, time.Hour),
	})
	_, err := svc.VerifyEmail(context.Background(), "garbage")
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthService_ResendVerification(t *testing.T) {
	ctx := context.Background()
	users := newUserTable()
	mailer := &captureMailer{}
	svc := NewAuthService(users.repo(), &mockSessionRepo{}, AuthOptions{
		ResendCooldown: time.Hour,
		Tokens:         NewVerificationTokens(testSecret, time.Hour),
		Mailer:         mailer,
	})

	if err := svc.ResendVerification(ctx, "ghost@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}

	if _, err := svc.Register(ctx, adultRegistration("a@example.com")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	// Registration already used the cooldown window.
	if err := svc.ResendVerification(ctx, "a@example.com"); !errors.Is(err, ErrResendTooSoon) {
		t.Errorf("expected ErrResendTooSoon, got %v", err)
	}

	if _, err := svc.VerifyEmail(ctx, tokenFromLink(t, mailer.last(t).link)); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if err := svc.ResendVerification(ctx, "a@example.com"); !errors.Is(err, ErrAlreadyVerified) {
		t.Errorf("expected ErrAlreadyVerified, got %v", err)
	}
}

func TestAuthService_ResendVerification_AfterCooldown(t *testing.T) {
	ctx := context.Background()
	mailer := &captureMailer{}
	svc := NewAuthService(newUserTable().repo(), &mockSessionRepo{}, AuthOptions{
		ResendCooldown: time.Millisecond,
		Tokens:         NewVerificationTokens(testSecret, time.Hour),
		Mailer:         mailer,
	})

	if _, err := svc.Register(ctx, adultRegistration("a@example.com")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := svc.ResendVerification(ctx, "a@example.com"); err != nil {
		t.Fatalf("ResendVerification: %v", err)
	}
	if len(mailer.sent) != 2 {
		t.Errorf("expected 2 emails, got %d", len(mailer.sent))
	}
}

func TestAuthService_Login_InvalidPassword(t *testing.T) {
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.DefaultCost)

	users := &mockUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			return &domain.User{
				ID:            1,
				Email:         "a@example.com",
				PasswordHash:  string(hash),
				EmailVerified: true,
			}, nil
		},
	}

	svc := NewAuthService(users, &mockSessionRepo{}, AuthOptions{})

	_, err := svc.Login(ctx, "a@example.com", "wrongpass", "", "")
	if err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{}, AuthOptions{})
	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever", "", "")
	if err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_ValidateSession(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		session     *domain.Session
		userAgent   string
		wantErr     error
		wantDeleted bool
	}{
		{
			name:      "valid",
			session:   &domain.Session{Token: "tok", UserID: 1, UserAgent: "agent", ExpiresAt: time.Now().Add(time.Hour)},
			userAgent: "agent",
		},
		{
			name:    "missing",
			wantErr: ErrSessionNotFound,
		},
		{
			name:        "expired",
			session:     &domain.Session{Token: "tok", UserID: 1, UserAgent: "agent", ExpiresAt: time.Now().Add(-time.Hour)},
			userAgent:   "agent",
			wantErr:     ErrSessionExpired,
			wantDeleted: true,
		},
		{
			name:        "user agent changed",
			session:     &domain.Session{Token: "tok", UserID: 1, UserAgent: "agent", ExpiresAt: time.Now().Add(time.Hour)},
			userAgent:   "other",
			wantErr:     ErrSessionExpired,
			wantDeleted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deleted := false
			sessions := &mockSessionRepo{
				getByTokenFn: func(ctx context.Context, tok string) (*domain.Session, error) {
					return tt.session, nil
				},
				deleteFn: func(ctx context.Context, tok string) error {
					deleted = true
					return nil
				},
			}
			users := &mockUserRepo{
				getByIDFn: func(ctx context.Context, id int64) (*domain.User, error) {
					return &domain.User{ID: id, Email: "a@example.com"}, nil
				},
			}
			svc := NewAuthService(users, sessions, AuthOptions{})

			user, err := svc.ValidateSession(ctx, "tok", tt.userAgent)
			if err != tt.wantErr {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && user.Email != "a@example.com" {
				t.Errorf("unexpected user %+v", user)
			}
			if deleted != tt.wantDeleted {
				t.Errorf("deleted = %v, want %v", deleted, tt.wantDeleted)
			}
		})
	}
}

func TestAuthService_Logout_DiscardsCycleLog(t *testing.T) {
	ctx := context.Background()
	deleted := ""
	sessions := &mockSessionRepo{
		getByTokenFn: func(ctx context.Context, tok string) (*domain.Session, error) {
			return &domain.Session{Token: tok, UserID: 7}, nil
		},
		deleteFn: func(ctx context.Context, tok string) error {
			deleted = tok
			return nil
		},
	}
	logs := &discardRecorder{}
	svc := NewAuthService(&mockUserRepo{}, sessions, AuthOptions{CycleLogs: logs})

	if err := svc.Logout(ctx, "tok"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if deleted != "tok" {
		t.Errorf("expected session tok deleted, got %q", deleted)
	}
	if len(logs.discarded) != 1 || logs.discarded[0] != 7 {
		t.Errorf("expected cycle log of user 7 discarded, got %v", logs.discarded)
	}
}

func TestAuthService_ValidateForwardAuth_ExistingUser(t *testing.T) {
	ctx := context.Background()

	users := &mockUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			return &domain.User{ID: 1, Email: email}, nil
		},
		createFn: func(ctx context.Context, u *domain.User) (*domain.User, error) {
			t.Error("existing users must not be re-created")
			return nil, errors.New("unexpected")
		},
	}

	svc := NewAuthService(users, &mockSessionRepo{}, AuthOptions{})

	user, err := svc.ValidateForwardAuth(ctx, "sso@example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Email != "sso@example.com" {
		t.Errorf("expected email 'sso@example.com', got %s", user.Email)
	}
}

func TestAuthService_ValidateForwardAuth_NewUser(t *testing.T) {
	ctx := context.Background()
	users := newUserTable()
	svc := NewAuthService(users.repo(), &mockSessionRepo{}, AuthOptions{})

	user, err := svc.ValidateForwardAuth(ctx, "New@Example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Email != "new@example.com" {
		t.Errorf("expected email 'new@example.com', got %s", user.Email)
	}
	if !user.EmailVerified {
		t.Error("provisioned users are verified by the proxy")
	}

	if _, err := svc.ValidateForwardAuth(ctx, ""); err == nil {
		t.Error("expected error for empty remote user")
	}
}

func TestAuthService_LoginWithUser(t *testing.T) {
	ctx := context.Background()
	created := false
	sessions := &mockSessionRepo{
		createFn: func(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
			created = true
			return nil
		},
	}
	svc := NewAuthService(newUserTable().repo(), sessions, AuthOptions{SessionTTL: time.Hour})

	token, err := svc.LoginWithUser(ctx, "sso@example.com", "SSO User", "agent", "")
	if err != nil {
		t.Fatalf("LoginWithUser: %v", err)
	}
	if token == "" || !created {
		t.Error("expected a session to be created")
	}
	if svc.SessionTTL() != time.Hour {
		t.Errorf("expected session TTL 1h, got %v", svc.SessionTTL())
	}
}

type deletingCycleRepo struct {
	domain.CycleRepository
	deleted []int64
}

func (d *deletingCycleRepo) DeleteCycleData(ctx context.Context, userID int64) error {
	d.deleted = append(d.deleted, userID)
	return nil
}

type deletingPrefsRepo struct {
	domain.PreferenceRepository
	deleted []int64
}

func (d *deletingPrefsRepo) DeletePreferences(ctx context.Context, userID int64) error {
	d.deleted = append(d.deleted, userID)
	return nil
}

func TestAuthService_DeleteAccount(t *testing.T) {
	ctx := context.Background()
	users := newUserTable()
	sessionsDeleted := int64(0)
	sessions := &mockSessionRepo{
		deleteByUserFn: func(ctx context.Context, userID int64) error {
			sessionsDeleted = userID
			return nil
		},
	}
	cycles := &deletingCycleRepo{}
	prefs := &deletingPrefsRepo{}
	logs := &discardRecorder{}
	svc := NewAuthService(users.repo(), sessions, AuthOptions{
		Cycles:      cycles,
		Preferences: prefs,
		CycleLogs:   logs,
	})

	created, err := svc.Register(ctx, adultRegistration("a@example.com"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	id := created[0].ID

	if err := svc.DeleteAccount(ctx, id); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if sessionsDeleted != id {
		t.Errorf("expected sessions of %d deleted", id)
	}
	if len(cycles.deleted) != 1 || len(prefs.deleted) != 1 || len(logs.discarded) != 1 {
		t.Errorf("expected cycle data, preferences and log removed: %v %v %v", cycles.deleted, prefs.deleted, logs.discarded)
	}
	if u, _ := users.repo().GetByID(ctx, id); u != nil {
		t.Error("expected user to be deleted")
	}
}

func TestConstantTimeCompare(t *testing.T) {
	if !ConstantTimeCompare("state", "state") {
		t.Error("expected equal strings to match")
	}
	if ConstantTimeCompare("state", "other") {
		t.Error("expected different strings not to match")
	}
}
