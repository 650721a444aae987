package utils

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns the bcrypt hash of the password using a cost that balances security and performance.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares the bcrypt hashed password with its possible plaintext equivalent.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Credential is the username/password pair allowed to log in. The plaintext
// password is hashed once and then dropped.
type Credential struct {
	username string
	hash     string
}

// NewCredential hashes password and returns the resulting credential.
func NewCredential(username, password string) (*Credential, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &Credential{username: username, hash: hash}, nil
}

// Matches reports whether the supplied pair equals the configured one.
func (c *Credential) Matches(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	// always run bcrypt so a wrong username costs the same as a wrong password
	passOK := CheckPassword(c.hash, password)
	return userOK && passOK
}
