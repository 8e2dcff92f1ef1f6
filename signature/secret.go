package signature

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateSecret creates a random shared secret for a gateway.
// Format: "smsk_" + 32 bytes hex = 69 characters total.
func GenerateSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("smsrelay: failed to generate random secret: " + err.Error())
	}
	return "smsk_" + hex.EncodeToString(b)
}
