// Package locale picks the console language and translates its messages.
package locale

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"algoshield.org/console/internal/storage"
)

type Locale string

const (
	PtBR Locale = "pt-BR"
	EnUS Locale = "en-US"

	Fallback = EnUS
)

type Option struct {
	Value Locale
	Label string
	Flag  string
}

// Options lists the selectable locales.
var Options = []Option{
	{Value: PtBR, Label: "Português (Brasil)", Flag: "🇧🇷"},
	{Value: EnUS, Label: "English (US)", Flag: "🇺🇸"},
}

// supported is ordered so the matcher falls back to en-US.
var (
	supported = []language.Tag{language.AmericanEnglish, language.BrazilianPortuguese}
	matcher   = language.NewMatcher(supported)
)

// Valid reports whether l is a supported locale.
func Valid(l Locale) bool {
	return l == PtBR || l == EnUS
}

// Detect maps a POSIX locale string such as "pt_BR.UTF-8" onto a supported
// locale. Unknown or unparsable values fall back to en-US.
func Detect(posix string) Locale {
	s := strings.TrimSpace(posix)
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, "_", "-")
	if s == "" || s == "C" || s == "POSIX" {
		return Fallback
	}
	tag, err := language.Parse(s)
	if err != nil {
		return Fallback
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return Fallback
	}
	return fromTag(supported[idx])
}

func fromTag(t language.Tag) Locale {
	if t == language.BrazilianPortuguese {
		return PtBR
	}
	return EnUS
}

func (l Locale) tag() language.Tag {
	if l == PtBR {
		return language.BrazilianPortuguese
	}
	return language.AmericanEnglish
}

// Manager holds the current locale and persists changes.
type Manager struct {
	store storage.Store

	mu      sync.RWMutex
	current Locale
}

// NewManager starts from the persisted preference when it is valid,
// otherwise from the environment.
func NewManager(ctx context.Context, store storage.Store, envLang string) (*Manager, error) {
	m := &Manager{store: store, current: Detect(envLang)}
	if store == nil {
		return m, nil
	}
	saved, err := store.Get(ctx, storage.KeyLocale)
	if err != nil {
		return m, err
	}
	if Valid(Locale(saved)) {
		m.current = Locale(saved)
	}
	return m, nil
}

func (m *Manager) Current() Locale {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// CurrentOption returns the display entry of the current locale.
func (m *Manager) CurrentOption() Option {
	cur := m.Current()
	for _, o := range Options {
		if o.Value == cur {
			return o
		}
	}
	return Options[1]
}

func (m *Manager) Set(ctx context.Context, l Locale) error {
	if !Valid(l) {
		return fmt.Errorf("locale: unsupported locale %q", l)
	}
	m.mu.Lock()
	m.current = l
	m.mu.Unlock()
	if m.store == nil {
		return nil
	}
	return m.store.Set(ctx, storage.KeyLocale, string(l))
}

// Toggle switches between the two locales.
func (m *Manager) Toggle(ctx context.Context) (Locale, error) {
	next := PtBR
	if m.Current() == PtBR {
		next = EnUS
	}
	return next, m.Set(ctx, next)
}

// Printer formats catalog messages in the current locale.
func (m *Manager) Printer() *message.Printer {
	return message.NewPrinter(m.Current().tag(), message.Catalog(messages))
}

// T translates key with optional format arguments.
func (m *Manager) T(key string, args ...any) string {
	return m.Printer().Sprintf(key, args...)
}

var messages = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.AmericanEnglish))
	for key, tr := range translations {
		must(b.SetString(language.AmericanEnglish, key, tr[0]))
		must(b.SetString(language.BrazilianPortuguese, key, tr[1]))
	}
	return b
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
