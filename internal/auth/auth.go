package auth

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAuthDisabled       = errors.New("authentication is disabled")
)

// Authenticator validates the admin credential and issues JWT tokens for the
// admin endpoints. It is disabled when no password is configured.
type Authenticator struct {
	enabled      bool
	username     string
	passwordHash []byte
	jwtManager   *JWTManager
}

// NewAuthenticator builds an authenticator for the given admin credential.
// The password may be supplied in plaintext or as a bcrypt hash. Tokens are
// signed with jwtSecret and live for jwtExpiry.
func NewAuthenticator(username, password, jwtSecret string, jwtExpiry time.Duration) *Authenticator {
	enabled := password != ""

	var passwordHash []byte
	if enabled {
		if len(password) == 60 && password[0] == '$' {
			passwordHash = []byte(password)
		} else {
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err == nil {
				passwordHash = hash
			}
		}
	}

	return &Authenticator{
		enabled:      enabled,
		username:     username,
		passwordHash: passwordHash,
		jwtManager:   NewJWTManager(jwtSecret, jwtExpiry),
	}
}

// IsEnabled returns whether authentication is enabled
func (a *Authenticator) IsEnabled() bool {
	return a.enabled
}

// Authenticate validates credentials and returns a JWT token
func (a *Authenticator) Authenticate(username, password string) (string, int64, error) {
	if !a.enabled {
		return "", 0, ErrAuthDisabled
	}

	if username != a.username {
		return "", 0, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", 0, ErrInvalidCredentials
	}

	token, expiresAt, err := a.jwtManager.GenerateToken(username)
	if err != nil {
		return "", 0, err
	}

	return token, expiresAt.Unix(), nil
}

// ValidateToken validates a bearer token and returns its claims.
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	return a.jwtManager.ValidateToken(tokenString)
}
