package auth_test

import (
	"testing"
	"time"

	"github.com/taskhub/taskhub/internal/auth"
)

func newManager() *auth.Manager {
	return auth.NewManager("test-secret", 15*time.Minute, 7*24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newManager()

	raw, err := m.GenerateAccessToken("u-1", "alice@example.com", []string{"User"})

	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.VerifyAccessToken(raw)

	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if claims.UserID != "u-1" || claims.Email != "alice@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if len(claims.Roles) != 1 || claims.Roles[0] != "User" {
		t.Fatalf("roles not preserved: %v", claims.Roles)
	}
}

func TestAccessTokenRejectsRefreshType(t *testing.T) {
	m := newManager()

	raw, _, _, err := m.GenerateRefreshToken("u-1", "alice@example.com", []string{"User"})

	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := m.VerifyAccessToken(raw); err == nil {
		t.Fatal("refresh token accepted as access token")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m := newManager()
	other := auth.NewManager("another-secret", 15*time.Minute, 7*24*time.Hour)

	raw, err := m.GenerateAccessToken("u-1", "alice@example.com", []string{"Admin"})

	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := other.VerifyAccessToken(raw); err == nil {
		t.Fatal("token verified with the wrong secret")
	}
}

func TestHashRefreshTokenIsDeterministic(t *testing.T) {
	m := newManager()

	if m.HashRefreshToken("abc") != m.HashRefreshToken("abc") {
		t.Fatal("hash should be deterministic")
	}

	if m.HashRefreshToken("abc") == m.HashRefreshToken("abd") {
		t.Fatal("distinct tokens should hash differently")
	}
}
