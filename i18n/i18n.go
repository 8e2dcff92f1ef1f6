// Package i18n provides the strings sent to donors and recipients.
package i18n

import (
	"fmt"
	"strings"
	"sync"
)

// DefaultLocale is used when a user's locale has no catalog.
const DefaultLocale = "en"

// Catalog maps message keys to format strings.
type Catalog map[string]string

// Localiser renders keys from per-locale catalogs.
type Localiser struct {
	mu       sync.RWMutex
	catalogs map[string]Catalog
	fallback string
}

// New creates a localiser preloaded with the built-in catalogs.
func New() *Localiser {
	l := &Localiser{
		catalogs: make(map[string]Catalog),
		fallback: DefaultLocale,
	}
	for locale, c := range builtin {
		l.Register(locale, c)
	}
	return l
}

// Register adds or extends the catalog for locale.
func (l *Localiser) Register(locale string, c Catalog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	locale = normalise(locale)
	dst, ok := l.catalogs[locale]
	if !ok {
		dst = make(Catalog, len(c))
		l.catalogs[locale] = dst
	}
	for k, v := range c {
		dst[k] = v
	}
}

// Localise renders key in locale. Lookup tries the full locale, its base
// language, then the fallback locale. An unknown key renders as itself.
func (l *Localiser) Localise(locale, key string, args ...any) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, candidate := range []string{normalise(locale), base(locale), l.fallback} {
		if c, ok := l.catalogs[candidate]; ok {
			if format, ok := c[key]; ok {
				if len(args) == 0 {
					return format
				}
				return fmt.Sprintf(format, args...)
			}
		}
	}
	return key
}

func normalise(locale string) string {
	return strings.ToLower(strings.ReplaceAll(locale, "_", "-"))
}

func base(locale string) string {
	l := normalise(locale)
	if i := strings.IndexByte(l, '-'); i > 0 {
		return l[:i]
	}
	return l
}

var builtin = map[string]Catalog{
	"en": {
		"push.new_donation.title": "New donation",
		"push.new_donation.body":  "You have new messages to send",
		"sms.footer":              "Sent on behalf of your organisation",
	},
	"es": {
		"push.new_donation.title": "Nueva donación",
		"push.new_donation.body":  "Tienes mensajes nuevos para enviar",
		"sms.footer":              "Enviado en nombre de tu organización",
	},
	"fr": {
		"push.new_donation.title": "Nouveau don",
		"push.new_donation.body":  "Vous avez de nouveaux messages à envoyer",
		"sms.footer":              "Envoyé au nom de votre organisation",
	},
}
