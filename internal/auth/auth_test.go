package auth

import (
	"errors"
	"testing"
	"time"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "hunter22" {
		t.Fatal("password stored in the clear")
	}
	if !CheckPassword(hash, "hunter22") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "hunter23") {
		t.Error("wrong password accepted")
	}
}

func TestTokenRoundtrip(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	token, err := svc.IssueToken("user-123")
	if err != nil {
		t.Fatal(err)
	}

	userID, err := svc.ParseToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if userID != "user-123" {
		t.Errorf("expected user-123, got %q", userID)
	}
}

func TestParseToken_Invalid(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	if _, err := svc.ParseToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}

	// Token signed with a different secret.
	other := NewService("other-secret", time.Hour)
	token, err := other.IssueToken("user-123")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
}

func TestParseToken_Expired(t *testing.T) {
	svc := NewService("test-secret", -time.Minute)

	token, err := svc.IssueToken("user-123")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}
