package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns the sha256 hex digest of password.
//
// WARNING: This is a fast, unsalted hash and is NOT suitable for real
// deployments — it exists to preserve the documented demo behavior of the
// user store. Swap in bcrypt (as client secrets already use) before storing
// real credentials.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// VerifyPasswordHash reports whether password matches the stored sha256 hex
// digest. The comparison is constant-time.
func VerifyPasswordHash(hash, password string) bool {
	computed := HashPassword(password)
	return subtle.ConstantTimeCompare([]byte(hash), []byte(computed)) == 1
}

// dummyBcryptHash is a pre-computed bcrypt hash compared against when a
// client does not exist, so that secret validation performs the same work
// whether or not the client ID resolves. This prevents timing attacks that
// could reveal which client IDs are registered.
const dummyBcryptHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// HashClientSecret returns the bcrypt hash of a client secret.
func HashClientSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash client secret: %w", err)
	}
	return string(hash), nil
}

// CompareClientSecret validates a client secret against its bcrypt hash.
// When storedHash is empty (unknown client) a dummy hash is compared instead
// so the call always performs one bcrypt comparison; the result is still a
// failure.
func CompareClientSecret(storedHash, secret string) error {
	hashToCompare := storedHash
	if hashToCompare == "" {
		hashToCompare = dummyBcryptHash
	}

	bcryptErr := bcrypt.CompareHashAndPassword([]byte(hashToCompare), []byte(secret))

	if storedHash == "" {
		return fmt.Errorf("invalid client credentials")
	}
	if bcryptErr != nil {
		return fmt.Errorf("invalid client credentials")
	}
	return nil
}
