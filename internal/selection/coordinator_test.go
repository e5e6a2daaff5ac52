package selection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/avelins/radioatlas/internal/directory"
	"github.com/avelins/radioatlas/pkg/logger"
)

type stubCatalog struct {
	mu      sync.Mutex
	cached  map[string]*directory.Station
	remote  map[string]*directory.Station
	errs    map[string]error
	gate    chan struct{} // when set, ResolveFull blocks on it
	random  *directory.StationLight
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{
		cached: make(map[string]*directory.Station),
		remote: make(map[string]*directory.Station),
		errs:   make(map[string]error),
	}
}

func (c *stubCatalog) GetCached(id string) (*directory.Station, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.cached[id]
	return st, ok
}

func (c *stubCatalog) ResolveFull(ctx context.Context, id string) (*directory.Station, error) {
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.errs[id]; ok {
		return nil, err
	}
	if st, ok := c.remote[id]; ok {
		return st, nil
	}
	return nil, directory.ErrStationNotFound
}

func (c *stubCatalog) PickRandom() (directory.StationLight, bool) {
	if c.random == nil {
		return directory.StationLight{}, false
	}
	return *c.random, true
}

type stubPlayer struct {
	starts chan *directory.Station
}

func (p *stubPlayer) Start(st *directory.Station) { p.starts <- st }

type stubFavorites struct{ ids map[string]bool }

func (f *stubFavorites) IsFavorite(id string) bool { return f.ids[id] }

func station(id string) *directory.Station {
	return &directory.Station{ID: id, Name: "Station " + id, StreamURL: "http://stream/" + id}
}

type notificationLog struct {
	mu   sync.Mutex
	all  []Notification
	next chan Notification
}

func newNotificationLog() *notificationLog {
	return &notificationLog{next: make(chan Notification, 16)}
}

func (l *notificationLog) record(n Notification) {
	l.mu.Lock()
	l.all = append(l.all, n)
	l.mu.Unlock()
	l.next <- n
}

func (l *notificationLog) wait(t *testing.T, kind NotificationKind) Notification {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-l.next:
			if n.Kind == kind {
				return n
			}
		case <-deadline:
			t.Fatalf("notification kind %d never arrived", kind)
		}
	}
}

func newTestCoordinator(cat *stubCatalog, favs *stubFavorites) (*Coordinator, *stubPlayer, *notificationLog) {
	if favs == nil {
		favs = &stubFavorites{ids: map[string]bool{}}
	}
	player := &stubPlayer{starts: make(chan *directory.Station, 8)}
	log := newNotificationLog()
	c := NewCoordinator(cat, player, favs, logger.NewNop())
	c.SetNotify(log.record)
	return c, player, log
}

func waitStart(t *testing.T, p *stubPlayer) *directory.Station {
	t.Helper()
	select {
	case st := <-p.starts:
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("playback was never started")
		return nil
	}
}

func TestSelectCachedIsImmediate(t *testing.T) {
	cat := newStubCatalog()
	cat.cached["a"] = station("a")
	c, player, notes := newTestCoordinator(cat, nil)

	c.Select(context.Background(), "a")

	notes.wait(t, SelectionPending)
	ready := notes.wait(t, SelectionReady)
	if ready.Station == nil || ready.Station.ID != "a" {
		t.Fatalf("ready notification carries %+v", ready.Station)
	}
	if st := waitStart(t, player); st.ID != "a" {
		t.Errorf("playback started for %s, want a", st.ID)
	}
}

func TestSelectResolvesOnCacheMiss(t *testing.T) {
	cat := newStubCatalog()
	cat.remote["a"] = station("a")
	c, player, notes := newTestCoordinator(cat, nil)

	c.Select(context.Background(), "a")

	pending := notes.wait(t, SelectionPending)
	if pending.StationID != "a" {
		t.Errorf("pending for %s, want a", pending.StationID)
	}
	notes.wait(t, SelectionReady)
	waitStart(t, player)

	if st, ok := c.Current(); !ok || st.ID != "a" {
		t.Error("current selection not set after ready")
	}
}

func TestSelectFailureClearsSelection(t *testing.T) {
	cat := newStubCatalog()
	cat.errs["a"] = directory.ErrStationNotFound
	c, player, notes := newTestCoordinator(cat, nil)

	c.Select(context.Background(), "a")

	failed := notes.wait(t, SelectionFailed)
	if !errors.Is(failed.Err, directory.ErrStationNotFound) {
		t.Errorf("failure carries %v, want ErrStationNotFound", failed.Err)
	}
	if _, ok := c.Current(); ok {
		t.Error("failed selection left a current station")
	}
	select {
	case st := <-player.starts:
		t.Errorf("playback started for %s after a failed selection", st.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSupersededResolveIsDiscarded(t *testing.T) {
	cat := newStubCatalog()
	cat.remote["x"] = station("x")
	cat.cached["y"] = station("y")
	gate := make(chan struct{})
	cat.gate = gate

	c, player, _ := newTestCoordinator(cat, nil)

	// X stalls in its detail fetch; the user switches to Y meanwhile.
	// Y resolves from cache and never touches the gate.
	c.Select(context.Background(), "x")
	c.Select(context.Background(), "y")

	if st := waitStart(t, player); st.ID != "y" {
		t.Fatalf("playback started for %s, want y", st.ID)
	}

	// X's fetch finally completes; its result must be discarded.
	close(gate)
	time.Sleep(50 * time.Millisecond)

	if st, ok := c.Current(); !ok || st.ID != "y" {
		t.Fatal("stale resolve replaced the current selection")
	}
	select {
	case st := <-player.starts:
		t.Fatalf("stale resolve started playback for %s", st.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSelectRandom(t *testing.T) {
	cat := newStubCatalog()
	c, player, _ := newTestCoordinator(cat, nil)

	if c.SelectRandom(context.Background()) {
		t.Fatal("SelectRandom over an empty index must return false")
	}

	cat.random = &directory.StationLight{ID: "r", Name: "Random FM"}
	cat.cached["r"] = station("r")

	if !c.SelectRandom(context.Background()) {
		t.Fatal("SelectRandom returned false on a populated index")
	}
	if st := waitStart(t, player); st.ID != "r" {
		t.Errorf("playback started for %s, want r", st.ID)
	}
}

func TestFavoriteMembershipReported(t *testing.T) {
	cat := newStubCatalog()
	cat.cached["a"] = station("a")
	favs := &stubFavorites{ids: map[string]bool{"a": true}}
	c, _, notes := newTestCoordinator(cat, favs)

	c.Select(context.Background(), "a")

	ready := notes.wait(t, SelectionReady)
	if !ready.IsFavorite {
		t.Error("ready notification must report favorite membership")
	}
	if !c.CurrentIsFavorite() {
		t.Error("CurrentIsFavorite lost the membership")
	}
}

func TestMarkerInteractedEvent(t *testing.T) {
	cat := newStubCatalog()
	cat.cached["a"] = station("a")
	c, player, _ := newTestCoordinator(cat, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event, 4)
	go c.Run(ctx, events)

	events <- ViewportChanged{Bounds: Bounds{NorthLat: 50, SouthLat: 40, WestLon: 0, EastLon: 10}}
	events <- MarkerInteracted{StationID: "a"}

	if st := waitStart(t, player); st.ID != "a" {
		t.Errorf("marker interaction selected %s, want a", st.ID)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if b, ok := c.LastViewport(); ok && b.NorthLat == 50 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("viewport bounds were not recorded")
}
