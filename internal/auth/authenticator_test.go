package auth

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return string(hash)
}

func TestStaticAuthenticator(t *testing.T) {
	authn := NewStaticAuthenticator(map[string]string{
		"admin": mustHash(t, "s3cret"),
		"alice": "not-a-bcrypt-hash",
	})

	t.Run("valid credentials", func(t *testing.T) {
		p, err := authn.Authenticate(context.Background(), "admin", "s3cret")
		if err != nil {
			t.Fatalf("Authenticate returned error: %v", err)
		}
		if p.Username != "admin" || !p.Authenticated || p.AuthenticatedAt.IsZero() {
			t.Fatalf("unexpected principal: %#v", p)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := authn.Authenticate(context.Background(), "admin", "wrong")
		if !errors.Is(err, ErrBadCredentials) {
			t.Fatalf("expected ErrBadCredentials, got %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := authn.Authenticate(context.Background(), "mallory", "s3cret")
		if !errors.Is(err, ErrBadCredentials) {
			t.Fatalf("expected ErrBadCredentials, got %v", err)
		}
	})

	t.Run("malformed hash", func(t *testing.T) {
		_, err := authn.Authenticate(context.Background(), "alice", "x")
		if err == nil || errors.Is(err, ErrBadCredentials) {
			t.Fatalf("expected configuration error, got %v", err)
		}
	})
}

func TestStaticAuthenticatorWithoutUsers(t *testing.T) {
	authn := NewStaticAuthenticator(nil)
	if _, err := authn.Authenticate(context.Background(), "admin", "x"); !errors.Is(err, ErrNoUsers) {
		t.Fatalf("expected ErrNoUsers, got %v", err)
	}
}
