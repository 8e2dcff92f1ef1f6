package signature_test

import (
	"strings"
	"testing"

	"github.com/xraph/smsrelay/signature"
)

func TestGenerateSecretFormat(t *testing.T) {
	secret := signature.GenerateSecret()

	if !strings.HasPrefix(secret, "smsk_") {
		t.Errorf("expected prefix 'smsk_', got %q", secret)
	}

	// smsk_ (5) + 64 hex chars (32 bytes) = 69 total
	if len(secret) != 69 {
		t.Errorf("expected length 69, got %d for %q", len(secret), secret)
	}

	hex := strings.TrimPrefix(secret, "smsk_")
	for i, c := range hex {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Errorf("non-hex character at position %d: %c in %q", i, c, hex)
		}
	}
}

func TestGenerateSecretUniqueness(t *testing.T) {
	a := signature.GenerateSecret()
	b := signature.GenerateSecret()
	if a == b {
		t.Errorf("two consecutive GenerateSecret() calls returned the same value: %q", a)
	}
}
