// If you are AI: This file handles the admin credentials file.
// Passwords are stored as salted SHA-256; writes are atomic.

package identity

import (
	"encoding/hex"
	"strings"

	"glint/internal/crypto"
	"glint/internal/fileio"
)

// Credentials is the persisted admin login material.
type Credentials struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	Salt         string `json:"salt"`
}

// HashPassword computes the hex salted digest stored and compared for logins.
func HashPassword(password, salt string) string {
	digest := crypto.HashString(password + salt)
	return hex.EncodeToString(digest[:])
}

// LoadCredentials reads the credentials file. A missing file returns empty
// credentials: the admin API then routes the operator to first-run setup.
func LoadCredentials(path string) (Credentials, error) {
	if !fileio.Exists(path) {
		return Credentials{}, nil
	}

	var creds Credentials
	if err := fileio.ReadJSON(path, &creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// SaveCredentials hashes the password under a fresh salt and atomically
// rewrites the credentials file.
func SaveCredentials(path, username, password string) (Credentials, error) {
	salt := hex.EncodeToString(crypto.Rand(16))
	creds := Credentials{
		Username:     username,
		PasswordHash: HashPassword(password, salt),
		Salt:         salt,
	}
	if err := fileio.WriteJSON(path, &creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// Check verifies a login attempt. Usernames compare case-insensitively.
func (c Credentials) Check(username, password string) bool {
	if c.Username == "" {
		return false
	}
	if !strings.EqualFold(username, c.Username) {
		return false
	}
	return HashPassword(password, c.Salt) == c.PasswordHash
}

// Configured reports whether an admin account exists yet.
func (c Credentials) Configured() bool {
	return c.Username != ""
}
