package catalog

import (
	"github.com/avelins/radioatlas/pkg/logger"
)

// DisplayMeta is the per-marker rendering metadata.
type DisplayMeta struct {
	Name       string `json:"name"`
	Country    string `json:"country"`
	FaviconURL string `json:"favicon_url"`
	Votes      int    `json:"votes"`
}

// Placement is one marker placement record for the rendering boundary.
type Placement struct {
	ID   string      `json:"id"`
	Lat  float64     `json:"lat"`
	Lon  float64     `json:"lon"`
	Meta DisplayMeta `json:"meta"`
}

// Placements projects the light index into marker placement records.
// A station without coordinates or with a failed health check never appears
// here, regardless of what the raw catalog contained.
func (s *Store) Placements() []Placement {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Placement, 0, len(s.index))
	for _, st := range s.index {
		if !st.HasGeo() || !st.IsHealthy() {
			continue
		}
		out = append(out, Placement{
			ID:  st.ID,
			Lat: *st.Lat,
			Lon: *st.Lon,
			Meta: DisplayMeta{
				Name:       st.Name,
				Country:    st.Country,
				FaviconURL: st.FaviconURL,
				Votes:      st.Votes,
			},
		})
	}
	return out
}

// PlacementChange is one delta between two placement snapshots.
type PlacementChange struct {
	Type      string // "added", "updated", "removed"
	ID        string
	Placement *Placement // nil for removals
}

// PlacementDiffer tracks placements between catalog loads so the rendering
// layer can patch markers incrementally instead of rebuilding the map.
type PlacementDiffer struct {
	previous map[string]Placement
	logger   *logger.Logger
}

// NewPlacementDiffer creates an empty differ; the first DetectChanges call
// reports every placement as added.
func NewPlacementDiffer(log *logger.Logger) *PlacementDiffer {
	return &PlacementDiffer{
		previous: make(map[string]Placement),
		logger:   log.Named("placement-diff"),
	}
}

// DetectChanges compares the current placements against the previous
// snapshot and returns the deltas.
func (d *PlacementDiffer) DetectChanges(current []Placement) []PlacementChange {
	changes := []PlacementChange{}
	currentMap := make(map[string]Placement, len(current))

	for i := range current {
		currentMap[current[i].ID] = current[i]
	}

	for id, cur := range currentMap {
		prev, exists := d.previous[id]
		if !exists {
			p := cur
			changes = append(changes, PlacementChange{Type: "added", ID: id, Placement: &p})
			continue
		}
		if prev != cur {
			p := cur
			changes = append(changes, PlacementChange{Type: "updated", ID: id, Placement: &p})
		}
	}

	for id := range d.previous {
		if _, exists := currentMap[id]; !exists {
			changes = append(changes, PlacementChange{Type: "removed", ID: id})
		}
	}

	d.previous = currentMap

	d.logger.Debug("Placement changes detected",
		logger.Int("current", len(current)),
		logger.Int("changes", len(changes)),
	)

	return changes
}
