package selection

import (
	"context"
	"sync"

	"github.com/avelins/radioatlas/internal/directory"
	"github.com/avelins/radioatlas/pkg/logger"
)

// Catalog is what the coordinator needs from the station record store.
type Catalog interface {
	GetCached(id string) (*directory.Station, bool)
	ResolveFull(ctx context.Context, id string) (*directory.Station, error)
	PickRandom() (directory.StationLight, bool)
}

// Player is what the coordinator needs from the playback controller.
type Player interface {
	Start(station *directory.Station)
}

// Favorites reports favorite membership for a station id.
type Favorites interface {
	IsFavorite(id string) bool
}

// NotificationKind distinguishes the phases of a selection.
type NotificationKind int

const (
	// SelectionPending fires immediately on select; details may still be
	// resolving over the network.
	SelectionPending NotificationKind = iota
	// SelectionReady fires once the full record is available and playback
	// has been handed off.
	SelectionReady
	// SelectionFailed fires when the station could not be resolved; the
	// selection is cleared.
	SelectionFailed
)

// Notification is one outbound selection event for UI collaborators.
type Notification struct {
	Kind       NotificationKind
	StationID  string
	Station    *directory.Station // set for SelectionReady
	IsFavorite bool
	Err        error // set for SelectionFailed
}

// Event is an inbound signal from the rendering boundary.
type Event interface{ isEvent() }

// MarkerInteracted means the user activated a station marker.
type MarkerInteracted struct {
	StationID string
}

func (MarkerInteracted) isEvent() {}

// Bounds is a geographic viewport rectangle.
type Bounds struct {
	NorthLat float64
	SouthLat float64
	WestLon  float64
	EastLon  float64
}

// ViewportChanged reports a pan or zoom. Informational only for now;
// reserved for region-scoped loading.
type ViewportChanged struct {
	Bounds Bounds
}

func (ViewportChanged) isEvent() {}

// Coordinator glues marker interactions, the record store, the playback
// controller, and the favorites store together. Switching selection
// supersedes any pending resolve: its result is discarded by generation.
type Coordinator struct {
	catalog   Catalog
	player    Player
	favorites Favorites
	logger    *logger.Logger
	notify    func(Notification)

	mu       sync.Mutex
	gen      uint64
	current  *directory.Station
	viewport *Bounds
}

// NewCoordinator creates a selection coordinator.
func NewCoordinator(catalog Catalog, player Player, favorites Favorites, log *logger.Logger) *Coordinator {
	return &Coordinator{
		catalog:   catalog,
		player:    player,
		favorites: favorites,
		logger:    log.Named("selection"),
	}
}

// SetNotify registers the outbound notification observer. Must be set
// before the first Select.
func (c *Coordinator) SetNotify(fn func(Notification)) {
	c.notify = fn
}

// Select resolves the station and hands it to the playback controller.
// It reports SelectionPending immediately and never blocks the caller on
// the network; SelectionReady (or SelectionFailed) follows.
func (c *Coordinator) Select(ctx context.Context, id string) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	c.send(Notification{Kind: SelectionPending, StationID: id})

	if station, ok := c.catalog.GetCached(id); ok {
		c.ready(gen, station)
		return
	}

	go func() {
		station, err := c.catalog.ResolveFull(ctx, id)

		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		if err != nil {
			c.current = nil
			c.mu.Unlock()
			c.logger.Warn("Selection failed",
				logger.String("station_id", id),
				logger.Error(err),
			)
			c.send(Notification{Kind: SelectionFailed, StationID: id, Err: err})
			return
		}
		c.mu.Unlock()
		c.ready(gen, station)
	}()
}

// SelectRandom picks a uniformly random station from the light index and
// selects it. Returns false if the index is empty.
func (c *Coordinator) SelectRandom(ctx context.Context) bool {
	light, ok := c.catalog.PickRandom()
	if !ok {
		return false
	}
	c.Select(ctx, light.ID)
	return true
}

// Current returns the active selection, if any.
func (c *Coordinator) Current() (*directory.Station, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.current != nil
}

// CurrentIsFavorite reports favorite membership for the active selection.
func (c *Coordinator) CurrentIsFavorite() bool {
	c.mu.Lock()
	station := c.current
	c.mu.Unlock()
	return station != nil && c.favorites.IsFavorite(station.ID)
}

// Run consumes rendering-boundary events until the channel closes or the
// context is cancelled.
func (c *Coordinator) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.dispatch(ctx, ev)
		}
	}
}

func (c *Coordinator) dispatch(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case MarkerInteracted:
		c.Select(ctx, e.StationID)
	case ViewportChanged:
		c.mu.Lock()
		b := e.Bounds
		c.viewport = &b
		c.mu.Unlock()
		c.logger.Debug("Viewport changed",
			logger.Float64("north", e.Bounds.NorthLat),
			logger.Float64("south", e.Bounds.SouthLat),
		)
	}
}

// LastViewport returns the most recent viewport bounds, if any were
// reported. Cache behavior does not depend on it.
func (c *Coordinator) LastViewport() (Bounds, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.viewport == nil {
		return Bounds{}, false
	}
	return *c.viewport, true
}

func (c *Coordinator) ready(gen uint64, station *directory.Station) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.current = station
	c.mu.Unlock()

	c.send(Notification{
		Kind:       SelectionReady,
		StationID:  station.ID,
		Station:    station,
		IsFavorite: c.favorites.IsFavorite(station.ID),
	})
	c.player.Start(station)
}

func (c *Coordinator) send(n Notification) {
	if c.notify != nil {
		c.notify(n)
	}
}
