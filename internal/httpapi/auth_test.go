package httpapi

import (
	"context"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"posdoctor/internal/domain"
)

type userStoreStub struct {
	mu    sync.Mutex
	users []domain.UserAccount
	reads int
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	out := make([]domain.UserAccount, len(s.users))
	copy(out, s.users)
	return out, nil
}

func (s *userStoreStub) set(users ...domain.UserAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
}

func inactive() *bool {
	b := false
	return &b
}

func TestLoginIssuesTokenForHashedUser(t *testing.T) {
	store := &userStoreStub{}
	store.set(domain.UserAccount{Username: "Admin", Password: mustHashPassword(t, "admin123"), Role: "admin"})

	manager := NewAuthManager("test-secret", time.Hour, "123456", store)
	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: " admin ", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != "admin" {
		t.Fatalf("expected admin role, got %q", resp.Role)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestLoginRejectsPlainTextPassword(t *testing.T) {
	store := &userStoreStub{}
	store.set(domain.UserAccount{Username: "admin", Password: "admin123", Role: "admin"})

	manager := NewAuthManager("test-secret", time.Hour, "123456", store)
	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"}); err == nil {
		t.Fatalf("expected plain-text stored password to be refused")
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	store := &userStoreStub{}
	store.set(domain.UserAccount{Username: "kasir", Password: mustHashPassword(t, "pass1234"), Role: "cashier", Active: inactive()})

	manager := NewAuthManager("test-secret", time.Hour, "123456", store)
	_, err := manager.Login(context.Background(), domain.LoginRequest{Username: "kasir", Password: "pass1234"})
	if err == nil || err.Error() != "account is inactive" {
		t.Fatalf("expected inactive account error, got %v", err)
	}
}

func TestLoginPicksUpReplacedUsers(t *testing.T) {
	store := &userStoreStub{}
	store.set(domain.UserAccount{Username: "old", Password: mustHashPassword(t, "oldpass1"), Role: "admin"})
	manager := NewAuthManager("test-secret", time.Hour, "123456", store)

	store.set(domain.UserAccount{Username: "admin", Password: mustHashPassword(t, "newpass1"), Role: "admin"})

	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "old", Password: "oldpass1"}); err == nil {
		t.Fatalf("expected removed user to be unable to log in")
	}
	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "newpass1"}); err != nil {
		t.Fatalf("expected new user to log in: %v", err)
	}
	if store.reads < 3 {
		t.Fatalf("expected users to be re-read on login, got %d reads", store.reads)
	}
}

func TestParseTokenRejectsForeignIssuer(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "123456", nil)

	claims := posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "admin",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "someone-else",
		},
		Role: "admin",
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(token); err == nil {
		t.Fatalf("expected token from another issuer to be rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "123456", nil)
	token, err := manager.sign("admin", "admin", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestManagerPINIsHashedAndStillValidates(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "654321", &userStoreStub{})

	if manager.managerPIN == "654321" {
		t.Fatalf("expected manager pin to be stored as hash, got plain-text")
	}

	if !manager.ValidateManagerPIN("654321") {
		t.Fatalf("expected manager pin validation to succeed")
	}

	if manager.ValidateManagerPIN("111111") {
		t.Fatalf("expected wrong manager pin to fail")
	}
}
