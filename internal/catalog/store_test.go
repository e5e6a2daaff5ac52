package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/avelins/radioatlas/internal/directory"
	"github.com/avelins/radioatlas/pkg/logger"
)

func ptr(v float64) *float64 { return &v }

func lightFixture(id string, lat, lon *float64, healthy bool) directory.StationLight {
	return directory.StationLight{
		ID:          id,
		Name:        "Station " + id,
		Lat:         lat,
		Lon:         lon,
		Country:     "Testland",
		Votes:       10,
		LastCheckOK: healthy,
	}
}

func fullFixture(id string) *directory.Station {
	return &directory.Station{
		ID:          id,
		Name:        "Station " + id,
		StreamURL:   "http://stream.example/" + id,
		ResolvedURL: "http://resolved.example/" + id,
		LastCheckOK: true,
	}
}

// stubDirectory scripts the directory client for store tests.
type stubDirectory struct {
	mu         sync.Mutex
	light      []directory.StationLight
	lightErr   error
	records    map[string]*directory.Station
	errs       map[string]error
	fetchCount map[string]int
	gate       chan struct{} // when set, FetchFullRecord blocks on it
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		records:    make(map[string]*directory.Station),
		errs:       make(map[string]error),
		fetchCount: make(map[string]int),
	}
}

func (d *stubDirectory) FetchLightCatalog(ctx context.Context, limit int, healthyGeoOnly bool) ([]directory.StationLight, error) {
	return d.light, d.lightErr
}

func (d *stubDirectory) FetchFullRecord(ctx context.Context, id string) (*directory.Station, error) {
	d.mu.Lock()
	d.fetchCount[id]++
	gate := d.gate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.errs[id]; ok {
		return nil, err
	}
	if st, ok := d.records[id]; ok {
		return st, nil
	}
	return nil, directory.ErrStationNotFound
}

func (d *stubDirectory) fetches(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fetchCount[id]
}

func TestLoadInitialIndexFilters(t *testing.T) {
	dir := newStubDirectory()
	dir.light = []directory.StationLight{
		lightFixture("a", ptr(48.2), ptr(16.4), true),
		lightFixture("b", nil, nil, true), // null coordinates
		lightFixture("c", ptr(-33.9), ptr(151.2), true),
	}

	store := NewStore(dir, logger.NewNop())
	count, err := store.LoadInitialIndex(context.Background(), 100)
	if err != nil {
		t.Fatalf("LoadInitialIndex failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("indexed %d stations, want 2", count)
	}

	index := store.Index()
	for _, st := range index {
		if st.ID == "b" {
			t.Error("station without coordinates made it into the index")
		}
	}
}

func TestLoadInitialIndexDropsUnhealthy(t *testing.T) {
	dir := newStubDirectory()
	dir.light = []directory.StationLight{
		lightFixture("a", ptr(1), ptr(2), true),
		lightFixture("b", ptr(3), ptr(4), false), // failed last stream check
	}

	store := NewStore(dir, logger.NewNop())
	count, err := store.LoadInitialIndex(context.Background(), 100)
	if err != nil {
		t.Fatalf("LoadInitialIndex failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("indexed %d stations, want 1", count)
	}
}

func TestResolveFullCoalescing(t *testing.T) {
	dir := newStubDirectory()
	dir.records["x"] = fullFixture("x")
	gate := make(chan struct{})
	dir.gate = gate

	store := NewStore(dir, logger.NewNop())

	const callers = 8
	results := make(chan *directory.Station, callers)
	errs := make(chan error, callers)

	var started sync.WaitGroup
	started.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			started.Done()
			st, err := store.ResolveFull(context.Background(), "x")
			results <- st
			errs <- err
		}()
	}
	started.Wait()
	close(gate)

	var first *directory.Station
	for i := 0; i < callers; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("ResolveFull failed: %v", err)
		}
		st := <-results
		if first == nil {
			first = st
		} else if st != first {
			t.Error("concurrent callers received different records")
		}
	}

	if n := dir.fetches("x"); n != 1 {
		t.Fatalf("directory was hit %d times, want exactly 1", n)
	}
}

func TestResolveFullCallerCancelDoesNotPoisonOthers(t *testing.T) {
	dir := newStubDirectory()
	dir.records["x"] = fullFixture("x")
	gate := make(chan struct{})
	dir.gate = gate

	store := NewStore(dir, logger.NewNop())

	ctxA, cancelA := context.WithCancel(context.Background())
	aErr := make(chan error, 1)
	go func() {
		_, err := store.ResolveFull(ctxA, "x")
		aErr <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for dir.fetches("x") == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if dir.fetches("x") == 0 {
		t.Fatal("first caller never started the fetch")
	}

	bSt := make(chan *directory.Station, 1)
	bErr := make(chan error, 1)
	go func() {
		st, err := store.ResolveFull(context.Background(), "x")
		bSt <- st
		bErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	// The initiating caller bails out; the shared fetch must keep going.
	cancelA()
	select {
	case err := <-aErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("cancelled caller got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller never returned")
	}

	close(gate)

	select {
	case st := <-bSt:
		if err := <-bErr; err != nil {
			t.Fatalf("attached caller got %v, want the record", err)
		}
		if st.ID != "x" {
			t.Fatalf("attached caller got station %s, want x", st.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("attached caller never returned")
	}

	if n := dir.fetches("x"); n != 1 {
		t.Fatalf("directory was hit %d times, want 1", n)
	}
	if _, ok := store.GetCached("x"); !ok {
		t.Fatal("record missing from the detail cache after the shared fetch")
	}
}

func TestResolveFullFailureNotCached(t *testing.T) {
	dir := newStubDirectory()
	dir.errs["x"] = &directory.UnavailableError{Op: "full record", Err: errors.New("boom")}

	store := NewStore(dir, logger.NewNop())

	if _, err := store.ResolveFull(context.Background(), "x"); !directory.IsUnavailable(err) {
		t.Fatalf("got %v, want UnavailableError", err)
	}

	// The failure recovers upstream; the next call must retry the fetch.
	dir.mu.Lock()
	delete(dir.errs, "x")
	dir.records["x"] = fullFixture("x")
	dir.mu.Unlock()

	st, err := store.ResolveFull(context.Background(), "x")
	if err != nil {
		t.Fatalf("ResolveFull after recovery failed: %v", err)
	}
	if st.ID != "x" {
		t.Fatalf("got station %s, want x", st.ID)
	}
	if n := dir.fetches("x"); n != 2 {
		t.Fatalf("directory was hit %d times, want 2 (no negative caching)", n)
	}
}

func TestGetCachedNeverFetches(t *testing.T) {
	dir := newStubDirectory()
	dir.records["x"] = fullFixture("x")

	store := NewStore(dir, logger.NewNop())

	if _, ok := store.GetCached("x"); ok {
		t.Fatal("cache hit before any resolve")
	}
	if n := dir.fetches("x"); n != 0 {
		t.Fatalf("GetCached triggered %d fetches", n)
	}

	if _, err := store.ResolveFull(context.Background(), "x"); err != nil {
		t.Fatalf("ResolveFull failed: %v", err)
	}
	st, ok := store.GetCached("x")
	if !ok || st.ID != "x" {
		t.Fatal("cache miss after successful resolve")
	}
	if n := dir.fetches("x"); n != 1 {
		t.Fatalf("directory was hit %d times, want 1", n)
	}
}

func TestClearDetails(t *testing.T) {
	dir := newStubDirectory()
	dir.records["x"] = fullFixture("x")

	store := NewStore(dir, logger.NewNop())
	if _, err := store.ResolveFull(context.Background(), "x"); err != nil {
		t.Fatalf("ResolveFull failed: %v", err)
	}

	store.ClearDetails()
	if _, ok := store.GetCached("x"); ok {
		t.Fatal("detail cache survived an explicit clear")
	}
}

func TestPickRandom(t *testing.T) {
	dir := newStubDirectory()
	store := NewStore(dir, logger.NewNop())

	if _, ok := store.PickRandom(); ok {
		t.Fatal("PickRandom on an empty index must return false")
	}

	dir.light = []directory.StationLight{
		lightFixture("a", ptr(1), ptr(2), true),
		lightFixture("b", ptr(3), ptr(4), true),
	}
	if _, err := store.LoadInitialIndex(context.Background(), 100); err != nil {
		t.Fatalf("LoadInitialIndex failed: %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		st, ok := store.PickRandom()
		if !ok {
			t.Fatal("PickRandom returned false on a populated index")
		}
		seen[st.ID] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("100 picks over 2 stations never saw both: %v", seen)
	}
}

func TestProgress(t *testing.T) {
	dir := newStubDirectory()
	dir.light = []directory.StationLight{
		lightFixture("a", ptr(1), ptr(2), true),
		lightFixture("b", ptr(3), ptr(4), true),
	}

	store := NewStore(dir, logger.NewNop())
	if _, err := store.LoadInitialIndex(context.Background(), 100); err != nil {
		t.Fatalf("LoadInitialIndex failed: %v", err)
	}

	loaded, total := store.Progress()
	if loaded != 0 || total != 2 {
		t.Fatalf("progress = %d/%d before materialization, want 0/2", loaded, total)
	}

	store.MarkMaterialized(1)
	loaded, _ = store.Progress()
	if loaded != 1 {
		t.Fatalf("loaded = %d, want 1", loaded)
	}

	store.MarkMaterialized(99)
	loaded, total = store.Progress()
	if loaded != total {
		t.Fatalf("materialized count must clamp to total, got %d/%d", loaded, total)
	}
}

func TestLoadInitialIndexPropagatesError(t *testing.T) {
	dir := newStubDirectory()
	dir.lightErr = &directory.UnavailableError{Op: "light catalog", Err: fmt.Errorf("down")}

	store := NewStore(dir, logger.NewNop())
	if _, err := store.LoadInitialIndex(context.Background(), 100); !directory.IsUnavailable(err) {
		t.Fatalf("got %v, want UnavailableError", err)
	}
}
