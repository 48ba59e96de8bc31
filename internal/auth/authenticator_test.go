package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/epic1st/marketfeed/internal/transport"
	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret []byte, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestAuthenticateValidToken(t *testing.T) {
	secret := []byte("test-secret")
	a, err := NewJWTAuthenticator(secret)
	if err != nil {
		t.Fatalf("NewJWTAuthenticator: %v", err)
	}

	token := signToken(t, secret, Claims{
		UserID: "user-42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	userID, err := a.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if userID != "user-42" {
		t.Errorf("userID = %q, want user-42", userID)
	}
}

func TestAuthenticateEmptyToken(t *testing.T) {
	a, _ := NewJWTAuthenticator([]byte("secret"))
	_, err := a.Authenticate("")
	if err == nil {
		t.Fatal("expected error for empty token")
	}
	var authErr *transport.AuthError
	if !errors.As(err, &authErr) {
		t.Errorf("expected *transport.AuthError, got %T", err)
	}
}

func TestAuthenticateWrongSecret(t *testing.T) {
	a, _ := NewJWTAuthenticator([]byte("right-secret"))
	token := signToken(t, []byte("wrong-secret"), Claims{UserID: "user-1"})
	if _, err := a.Authenticate(token); err == nil {
		t.Fatal("expected error for token signed with wrong secret")
	}
}

func TestAuthenticateMissingUserID(t *testing.T) {
	secret := []byte("test-secret")
	a, _ := NewJWTAuthenticator(secret)
	token := signToken(t, secret, Claims{})
	if _, err := a.Authenticate(token); err == nil {
		t.Fatal("expected error for token missing user id")
	}
}

func TestNewJWTAuthenticatorRejectsEmptySecret(t *testing.T) {
	if _, err := NewJWTAuthenticator(nil); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
