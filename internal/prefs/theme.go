// Package prefs persists small per-user session preferences on the
// key-value boundary.
package prefs

import (
	"sync"

	"github.com/avelins/radioatlas/internal/storage"
	"github.com/avelins/radioatlas/pkg/logger"
)

// Theme is the UI color scheme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ThemeStore holds the persisted theme preference. A read failure or an
// unknown stored value falls back to the system default.
type ThemeStore struct {
	kv            storage.KV
	systemDefault Theme
	logger        *logger.Logger

	mu      sync.Mutex
	current Theme
}

// NewThemeStore loads the saved theme, falling back to systemDefault.
func NewThemeStore(kv storage.KV, systemDefault Theme, log *logger.Logger) *ThemeStore {
	s := &ThemeStore{
		kv:            kv,
		systemDefault: systemDefault,
		logger:        log.Named("prefs"),
		current:       systemDefault,
	}

	saved, ok, err := kv.Get(storage.KeyTheme)
	if err != nil {
		s.logger.Warn("Failed to read saved theme, using system default",
			logger.Error(err),
		)
		return s
	}
	if ok && (Theme(saved) == ThemeLight || Theme(saved) == ThemeDark) {
		s.current = Theme(saved)
	}
	return s
}

// Current returns the active theme.
func (s *ThemeStore) Current() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set persists and activates the theme. A write failure is logged and the
// in-memory value still changes.
func (s *ThemeStore) Set(theme Theme) {
	s.mu.Lock()
	s.current = theme
	s.mu.Unlock()

	if err := s.kv.Set(storage.KeyTheme, string(theme)); err != nil {
		s.logger.Error("Failed to persist theme", logger.Error(err))
	}
}

// Toggle flips between light and dark and returns the new theme.
func (s *ThemeStore) Toggle() Theme {
	next := ThemeLight
	if s.Current() == ThemeLight {
		next = ThemeDark
	}
	s.Set(next)
	return next
}

// Reset drops the saved preference and returns to the system default.
func (s *ThemeStore) Reset() {
	s.mu.Lock()
	s.current = s.systemDefault
	s.mu.Unlock()

	if err := s.kv.Remove(storage.KeyTheme); err != nil {
		s.logger.Error("Failed to clear saved theme", logger.Error(err))
	}
}
