package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a short, stable identifier for a secret.
// Tokens must never show up in logs, their fingerprint may.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	hasher := sha256.New()
	hasher.Write([]byte(secret))
	return hex.EncodeToString(hasher.Sum(nil))[:12]
}
