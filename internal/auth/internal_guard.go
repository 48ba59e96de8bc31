package auth

import (
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// InternalGuard protects the service-to-service lookup routes
// (/internal/stock/*) with a shared-secret header check, modeled on the
// teacher's bcrypt-hashed admin credential pattern in auth.Service.
type InternalGuard struct {
	secretHash []byte
}

// NewInternalGuard hashes secret once at startup; empty secret disables
// the guard (every request is allowed), which is the development default.
func NewInternalGuard(secret string) (*InternalGuard, error) {
	if secret == "" {
		return &InternalGuard{}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &InternalGuard{secretHash: hash}, nil
}

// Allow checks the X-Internal-Secret header against the configured secret.
func (g *InternalGuard) Allow(r *http.Request) error {
	if len(g.secretHash) == 0 {
		return nil
	}
	provided := r.Header.Get("X-Internal-Secret")
	if provided == "" {
		return errors.New("auth: missing internal secret header")
	}
	if err := bcrypt.CompareHashAndPassword(g.secretHash, []byte(provided)); err != nil {
		return errors.New("auth: invalid internal secret")
	}
	return nil
}
