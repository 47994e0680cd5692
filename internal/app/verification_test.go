package app

import (
	"errors"
	"testing"
	"time"
)

func TestVerificationTokens_RoundTrip(t *testing.T) {
	tokens := NewVerificationTokens(testSecret, time.Hour)

	tok, err := tokens.Issue(42)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	id, err := tokens.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if id != 42 {
		t.Errorf("expected user 42, got %d", id)
	}

	other, _ := tokens.Issue(42)
	if other == tok {
		t.Error("expected distinct tokens for repeated issues")
	}
}

func TestVerificationTokens_Rejects(t *testing.T) {
	tokens := NewVerificationTokens(testSecret, time.Hour)
	valid, _ := tokens.Issue(1)

	expired := NewVerificationTokens(testSecret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredTok, _ := expired.Issue(1)

	foreign, _ := NewVerificationTokens("another-secret-another-secret-xx", time.Hour).Issue(1)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"tampered", valid + "x"},
		{"expired", expiredTok},
		{"wrong key", foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tokens.Parse(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
