// Package auth implements the transport.Authenticator using JWT bearer
// tokens, modeled on the teacher's auth.Service/auth.Claims.
package auth

import (
	"errors"

	"github.com/epic1st/marketfeed/internal/transport"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload this service expects. UserID is the identity
// attached to the session on success.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// JWTAuthenticator validates bearer tokens against a shared HMAC secret. It
// implements transport.Authenticator.
type JWTAuthenticator struct {
	secret []byte
}

// NewJWTAuthenticator creates an Authenticator using secret as the HMAC
// signing key. An empty secret is rejected: callers must configure
// jwt.secret explicitly.
func NewJWTAuthenticator(secret []byte) (*JWTAuthenticator, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: jwt secret must not be empty")
	}
	return &JWTAuthenticator{secret: secret}, nil
}

// Authenticate validates tokenString and returns the resolved user id. It
// never synthesizes an "anonymous" identity: a missing or invalid token, or
// one without a user id, is rejected with a *transport.AuthError.
func (a *JWTAuthenticator) Authenticate(tokenString string) (string, error) {
	if tokenString == "" {
		return "", &transport.AuthError{Reason: "no token provided"}
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		return "", &transport.AuthError{Reason: err.Error()}
	}
	if !token.Valid || claims.UserID == "" {
		return "", &transport.AuthError{Reason: "token missing user identity"}
	}

	return claims.UserID, nil
}
