package i18n_test

import (
	"testing"

	"github.com/xraph/smsrelay/i18n"
)

func TestLocaliseFallbacks(t *testing.T) {
	l := i18n.New()

	tests := []struct {
		locale, key, want string
	}{
		{"fr", "push.new_donation.title", "Nouveau don"},
		{"fr_CA", "push.new_donation.title", "Nouveau don"},
		{"de", "push.new_donation.title", "New donation"},
		{"", "sms.footer", "Sent on behalf of your organisation"},
		{"en", "missing.key", "missing.key"},
	}

	for _, tt := range tests {
		if got := l.Localise(tt.locale, tt.key); got != tt.want {
			t.Errorf("Localise(%q, %q) = %q, want %q", tt.locale, tt.key, got, tt.want)
		}
	}
}

func TestRegisterWithArgs(t *testing.T) {
	l := i18n.New()
	l.Register("en-GB", i18n.Catalog{"greeting": "Hello %s"})

	if got := l.Localise("en-GB", "greeting", "Ada"); got != "Hello Ada" {
		t.Fatalf("got %q", got)
	}
	if got := l.Localise("en-GB", "sms.footer"); got != "Sent on behalf of your organisation" {
		t.Fatalf("base language lookup failed: %q", got)
	}
}
