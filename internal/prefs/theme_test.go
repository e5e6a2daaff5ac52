package prefs

import (
	"testing"

	"github.com/avelins/radioatlas/internal/storage"
	"github.com/avelins/radioatlas/pkg/logger"
)

func TestDefaultsToSystemTheme(t *testing.T) {
	store := NewThemeStore(storage.NewMemoryKV(), ThemeDark, logger.NewNop())
	if store.Current() != ThemeDark {
		t.Fatalf("current = %s, want system default dark", store.Current())
	}
}

func TestSetPersists(t *testing.T) {
	kv := storage.NewMemoryKV()

	store := NewThemeStore(kv, ThemeDark, logger.NewNop())
	store.Set(ThemeLight)

	reloaded := NewThemeStore(kv, ThemeDark, logger.NewNop())
	if reloaded.Current() != ThemeLight {
		t.Fatalf("reloaded = %s, want light", reloaded.Current())
	}
}

func TestToggle(t *testing.T) {
	store := NewThemeStore(storage.NewMemoryKV(), ThemeLight, logger.NewNop())

	if got := store.Toggle(); got != ThemeDark {
		t.Fatalf("toggle = %s, want dark", got)
	}
	if got := store.Toggle(); got != ThemeLight {
		t.Fatalf("second toggle = %s, want light", got)
	}
}

func TestUnknownSavedValueIgnored(t *testing.T) {
	kv := storage.NewMemoryKV()
	kv.Set(storage.KeyTheme, "solarized")

	store := NewThemeStore(kv, ThemeLight, logger.NewNop())
	if store.Current() != ThemeLight {
		t.Fatalf("current = %s, want fallback to system default", store.Current())
	}
}

func TestResetClearsSavedPreference(t *testing.T) {
	kv := storage.NewMemoryKV()

	store := NewThemeStore(kv, ThemeDark, logger.NewNop())
	store.Set(ThemeLight)
	store.Reset()

	if store.Current() != ThemeDark {
		t.Fatalf("current = %s, want system default after reset", store.Current())
	}
	if _, ok, _ := kv.Get(storage.KeyTheme); ok {
		t.Fatal("saved preference survived reset")
	}
}
