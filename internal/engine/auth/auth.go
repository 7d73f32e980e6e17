package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidPassword indicates the submitted password did not match.
var ErrInvalidPassword = errors.New("invalid password")

// Gate guards the client behind one shared password. It issues no tokens;
// session length is left to the client.
type Gate struct {
	Enabled bool
	// Password is compared verbatim when PasswordHash is empty.
	Password string
	// PasswordHash is a bcrypt hash and takes precedence over Password.
	PasswordHash string
}

// Check returns nil when the gate is disabled or the password matches.
func (g Gate) Check(submitted string) error {
	if !g.Enabled {
		return nil
	}
	if hash := strings.TrimSpace(g.PasswordHash); hash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(submitted)); err != nil {
			return ErrInvalidPassword
		}
		return nil
	}
	if g.Password == "" {
		return ErrInvalidPassword
	}
	if subtle.ConstantTimeCompare([]byte(g.Password), []byte(submitted)) != 1 {
		return ErrInvalidPassword
	}
	return nil
}

// HashPassword returns a bcrypt hash suitable for security.password_hash.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", errors.New("password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
