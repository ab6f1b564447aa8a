package locale

import (
	"context"
	"testing"

	"algoshield.org/console/internal/storage"
)

func TestDetect(t *testing.T) {
	t.Parallel()

	cases := map[string]Locale{
		"pt_BR.UTF-8":     PtBR,
		"pt_BR":           PtBR,
		"pt":              PtBR,
		"en_US.UTF-8":     EnUS,
		"en_GB.UTF-8":     EnUS,
		"en":              EnUS,
		"fr_FR.UTF-8":     EnUS,
		"C":               EnUS,
		"":                EnUS,
		"de_DE@euro":      EnUS,
		"not a locale!!!": EnUS,
	}
	for in, want := range cases {
		if got := Detect(in); got != want {
			t.Errorf("Detect(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestManagerPrefersPersisted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemory()
	_ = store.Set(ctx, storage.KeyLocale, "pt-BR")

	m, err := NewManager(ctx, store, "en_US.UTF-8")
	if err != nil {
		t.Fatal(err)
	}
	if m.Current() != PtBR {
		t.Fatalf("Current = %s, want pt-BR", m.Current())
	}

	_ = store.Set(ctx, storage.KeyLocale, "es-ES")
	m, _ = NewManager(ctx, store, "pt_BR.UTF-8")
	if m.Current() != PtBR {
		t.Fatalf("invalid persisted value must fall back to env, got %s", m.Current())
	}
}

func TestSetAndToggle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemory()
	m, _ := NewManager(ctx, store, "")
	if m.Current() != EnUS || m.CurrentOption().Label != "English (US)" {
		t.Fatalf("unexpected start %s", m.Current())
	}

	if err := m.Set(ctx, "fr-FR"); err == nil {
		t.Fatal("unsupported locale accepted")
	}
	next, err := m.Toggle(ctx)
	if err != nil || next != PtBR {
		t.Fatalf("Toggle = %s, %v", next, err)
	}
	if v, _ := store.Get(ctx, storage.KeyLocale); v != "pt-BR" {
		t.Fatalf("persisted %q", v)
	}
	if next, _ := m.Toggle(ctx); next != EnUS {
		t.Fatalf("second toggle = %s", next)
	}
}

func TestTranslations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _ := NewManager(ctx, nil, "en_US")
	if got := m.T(MsgNavRules); got != "Rules" {
		t.Fatalf("en rules = %q", got)
	}
	if got := m.T(MsgSyntheticRunning, 2, 5); got != "Event 2 of 5" {
		t.Fatalf("en running = %q", got)
	}

	_ = m.Set(ctx, PtBR)
	if got := m.T(MsgNavRules); got != "Regras" {
		t.Fatalf("pt rules = %q", got)
	}
	if got := m.T(MsgRoleAssigned, "admin", "ana@example.com"); got != "Papel admin atribuído a ana@example.com" {
		t.Fatalf("pt assigned = %q", got)
	}
}

func TestEveryKeyTranslated(t *testing.T) {
	t.Parallel()

	for key, tr := range translations {
		if tr[0] == "" || tr[1] == "" {
			t.Errorf("key %s has an empty translation", key)
		}
	}
}
