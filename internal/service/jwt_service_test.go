package service

import (
	"errors"
	"testing"
	"time"

	"github.com/nextai/nextai/internal/config"
)

func TestNewJWTServiceRejectsShortSecret(t *testing.T) {
	_, err := NewJWTService(&config.JWTConfig{SecretKey: "short"}, newTestLogger())
	if err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestIssueAndVerifyTokens(t *testing.T) {
	env := newTestEnv(t)

	issued, err := env.jwt.IssueTokens("user-1", "alice@example.com", "")
	if err != nil {
		t.Fatalf("IssueTokens failed: %v", err)
	}
	if issued.FamilyID == "" || issued.RefreshJTI == "" {
		t.Fatalf("expected family and jti, got %+v", issued)
	}
	if issued.Pair.TokenType != "Bearer" || issued.Pair.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("unexpected pair: %+v", issued.Pair)
	}

	access, err := env.jwt.VerifyTokenType(issued.Pair.AccessToken, TokenTypeAccess)
	if err != nil {
		t.Fatalf("access token rejected: %v", err)
	}
	if access.UserID != "user-1" || access.Email != "alice@example.com" || access.Subject != "user-1" {
		t.Fatalf("unexpected access claims: %+v", access)
	}

	refresh, err := env.jwt.VerifyTokenType(issued.Pair.RefreshToken, TokenTypeRefresh)
	if err != nil {
		t.Fatalf("refresh token rejected: %v", err)
	}
	if refresh.ID != issued.RefreshJTI || refresh.FamilyID != issued.FamilyID {
		t.Fatalf("unexpected refresh claims: %+v", refresh)
	}

	if _, err := env.jwt.VerifyTokenType(issued.Pair.AccessToken, TokenTypeRefresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected type mismatch to be rejected, got %v", err)
	}
}

func TestIssueTokensKeepsFamily(t *testing.T) {
	env := newTestEnv(t)

	issued, err := env.jwt.IssueTokens("user-1", "alice@example.com", "family-1")
	if err != nil {
		t.Fatalf("IssueTokens failed: %v", err)
	}
	if issued.FamilyID != "family-1" {
		t.Fatalf("expected family-1, got %q", issued.FamilyID)
	}
}

func TestVerifyTokenRejectsExpiredAndForeignTokens(t *testing.T) {
	env := newTestEnv(t)

	issued, err := env.jwt.IssueTokens("user-1", "alice@example.com", "")
	if err != nil {
		t.Fatalf("IssueTokens failed: %v", err)
	}

	env.jwt.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := env.jwt.VerifyToken(issued.Pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired access token to be rejected, got %v", err)
	}
	env.jwt.now = time.Now

	other, err := NewJWTService(&config.JWTConfig{
		SecretKey:     "fedcba9876543210fedcba9876543210",
		AccessExpiry:  time.Minute,
		RefreshExpiry: time.Hour,
	}, newTestLogger())
	if err != nil {
		t.Fatalf("NewJWTService failed: %v", err)
	}
	if _, err := other.VerifyToken(issued.Pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected token signed with another key to be rejected, got %v", err)
	}
}
