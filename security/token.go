package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// opaqueTokenBytes is the entropy of generated codes and tokens.
// 32 bytes (256 bits) makes tokens unguessable by brute force.
const opaqueTokenBytes = 32

// GenerateOpaqueToken generates a cryptographically secure random opaque
// token, encoded as a 43-character base64url string without padding. The
// same generator mints authorization codes, access tokens, and refresh
// tokens.
//
// The function panics if the system's random number generator fails, which
// indicates a critical system-level security failure.
func GenerateOpaqueToken() string {
	b := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand.Read failed: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
