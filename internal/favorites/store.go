package favorites

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/avelins/radioatlas/internal/directory"
	"github.com/avelins/radioatlas/internal/storage"
	"github.com/avelins/radioatlas/pkg/logger"
)

// ErrInvalidImport indicates an import payload that is not a JSON array of
// valid station records. The import is rejected wholesale; nothing changes.
var ErrInvalidImport = errors.New("invalid favorites import")

// Store is a persisted set of full station records, unique by station id.
// Every mutation is written through to the key-value store; write failures
// are logged and never block the in-memory operation.
type Store struct {
	kv     storage.KV
	logger *logger.Logger

	mu    sync.Mutex
	items []*directory.Station
}

// NewStore creates a favorites store and loads any persisted set. A read
// failure or a corrupt payload is treated as "no saved favorites".
func NewStore(kv storage.KV, log *logger.Logger) *Store {
	s := &Store{
		kv:     kv,
		logger: log.Named("favorites"),
	}
	s.load()
	return s
}

func (s *Store) load() {
	blob, ok, err := s.kv.Get(storage.KeyFavorites)
	if err != nil {
		s.logger.Warn("Failed to read persisted favorites, starting empty",
			logger.Error(err),
		)
		return
	}
	if !ok {
		return
	}

	var items []*directory.Station
	if err := json.Unmarshal([]byte(blob), &items); err != nil {
		s.logger.Warn("Persisted favorites are corrupt, starting empty",
			logger.Error(err),
		)
		return
	}
	s.items = items
}

// Toggle adds the station if absent, removes it if present, persists the
// result, and reports the resulting membership.
func (s *Store) Toggle(station *directory.Station) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, fav := range s.items {
		if fav.ID == station.ID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.persistLocked()
			return false
		}
	}

	s.items = append(s.items, station)
	s.persistLocked()
	return true
}

// IsFavorite reports whether the id is in the set.
func (s *Store) IsFavorite(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fav := range s.items {
		if fav.ID == id {
			return true
		}
	}
	return false
}

// All returns the favorites in insertion order.
func (s *Store) All() []*directory.Station {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*directory.Station, len(s.items))
	copy(out, s.items)
	return out
}

// Count returns the number of favorites.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// ExportAll serializes the set as a pretty-printed JSON array.
func (s *Store) ExportAll() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.MarshalIndent(s.items, "", "  ")
}

// ImportAll replaces the set wholesale with the stations in blob, which must
// be a JSON array of valid records. On any validation failure the existing
// set is left untouched and ErrInvalidImport is returned. Returns the number
// of imported stations.
func (s *Store) ImportAll(blob []byte) (int, error) {
	var items []*directory.Station
	if err := json.Unmarshal(blob, &items); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	seen := make(map[string]bool, len(items))
	for i, st := range items {
		if st == nil || st.ID == "" || st.Name == "" {
			return 0, fmt.Errorf("%w: record %d is missing required fields", ErrInvalidImport, i)
		}
		if seen[st.ID] {
			return 0, fmt.Errorf("%w: duplicate station id %s", ErrInvalidImport, st.ID)
		}
		seen[st.ID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.persistLocked()

	s.logger.Info("Imported favorites", logger.Int("count", len(items)))
	return len(items), nil
}

// ClearAll unconditionally empties the set and persists. Confirmation is the
// caller's concern.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.persistLocked()
}

func (s *Store) persistLocked() {
	blob, err := json.Marshal(s.items)
	if err != nil {
		s.logger.Error("Failed to serialize favorites", logger.Error(err))
		return
	}
	if err := s.kv.Set(storage.KeyFavorites, string(blob)); err != nil {
		s.logger.Error("Failed to persist favorites", logger.Error(err))
	}
}
