// Package auth implements the "authentication strategy" collaborator
// named in spec.md §6 — the policy an accepted Logon's username/password
// is checked against. Out of scope for the Framer itself (spec.md §1),
// but exercised by the Receiver endpoint's logon handling.
package auth

import "golang.org/x/crypto/bcrypt"

// Strategy authenticates a FIX Logon's credentials.
type Strategy interface {
	Authenticate(username, password string) bool
}

// CredentialStore is a static username -> bcrypt hash map, the simplest
// concrete Strategy: suitable for a config-file-backed deployment.
type CredentialStore struct {
	hashes map[string][]byte
}

func NewCredentialStore(usernameToHash map[string]string) *CredentialStore {
	hashes := make(map[string][]byte, len(usernameToHash))
	for user, hash := range usernameToHash {
		hashes[user] = []byte(hash)
	}
	return &CredentialStore{hashes: hashes}
}

func (c *CredentialStore) Authenticate(username, password string) bool {
	hash, ok := c.hashes[username]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// HashPassword is the counterpart used when provisioning a
// CredentialStore, e.g. from an admin CLI.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// AllowAll is a Strategy that accepts every logon, used in tests and
// local development where no credential store is configured.
type AllowAll struct{}

func (AllowAll) Authenticate(string, string) bool { return true }
