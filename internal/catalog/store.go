package catalog

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/avelins/radioatlas/internal/directory"
	"github.com/avelins/radioatlas/pkg/logger"
)

// Directory is what the store needs from the remote directory client.
type Directory interface {
	FetchLightCatalog(ctx context.Context, limit int, healthyGeoOnly bool) ([]directory.StationLight, error)
	FetchFullRecord(ctx context.Context, id string) (*directory.Station, error)
}

// Store is the two-tier station record cache: a light index covering the
// whole loaded catalog for map rendering, and a detail cache hydrated one
// station at a time when the user interacts with one.
type Store struct {
	dir    Directory
	logger *logger.Logger
	rng    *rand.Rand

	mu      sync.Mutex
	index   []directory.StationLight
	details map[string]*directory.Station
	pending map[string]*pendingFetch
	loaded  int
	total   int
}

// pendingFetch tracks a single in-flight detail fetch so concurrent callers
// for the same id share one network request.
type pendingFetch struct {
	done    chan struct{}
	station *directory.Station
	err     error
}

// NewStore creates a station record store backed by the given directory.
func NewStore(dir Directory, log *logger.Logger) *Store {
	return &Store{
		dir:     dir,
		logger:  log.Named("catalog"),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		details: make(map[string]*directory.Station),
		pending: make(map[string]*pendingFetch),
	}
}

// LoadInitialIndex fetches the top-limit stations by popularity that carry
// coordinates and passed their last health check, and installs them as the
// light index. Entries failing the geo/health check are dropped even if the
// upstream filter let them through. Returns the number of indexed stations.
func (s *Store) LoadInitialIndex(ctx context.Context, limit int) (int, error) {
	stations, err := s.dir.FetchLightCatalog(ctx, limit, true)
	if err != nil {
		return 0, err
	}

	filtered := make([]directory.StationLight, 0, len(stations))
	for _, st := range stations {
		if !st.HasGeo() || !st.IsHealthy() {
			continue
		}
		filtered = append(filtered, st)
	}

	s.mu.Lock()
	s.index = filtered
	s.total = len(filtered)
	s.loaded = 0
	s.mu.Unlock()

	s.logger.Info("Loaded station index",
		logger.Int("fetched", len(stations)),
		logger.Int("indexed", len(filtered)),
	)

	return len(filtered), nil
}

// MarkMaterialized records rendering progress: the number of indexed stations
// the rendering layer has turned into markers so far.
func (s *Store) MarkMaterialized(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if count > s.total {
		count = s.total
	}
	s.loaded = count
}

// Progress returns how many indexed stations have been materialized as
// markers, and how many there are in total.
func (s *Store) Progress() (loaded, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded, s.total
}

// Index returns a copy of the current light index in load order.
func (s *Store) Index() []directory.StationLight {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]directory.StationLight, len(s.index))
	copy(out, s.index)
	return out
}

// ResolveFull returns the full record for a station id, fetching it from the
// directory on a cache miss. Concurrent callers for the same id share a
// single in-flight fetch. Failures are never cached; a later call retries.
func (s *Store) ResolveFull(ctx context.Context, id string) (*directory.Station, error) {
	s.mu.Lock()
	if st, ok := s.details[id]; ok {
		s.mu.Unlock()
		return st, nil
	}

	if p, inFlight := s.pending[id]; inFlight {
		s.mu.Unlock()
		select {
		case <-p.done:
			return p.station, p.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p := &pendingFetch{done: make(chan struct{})}
	s.pending[id] = p
	s.mu.Unlock()

	// The shared fetch runs detached from the initiating caller's context so
	// one caller's cancellation cannot fail everyone attached to it. Each
	// caller still honors its own context while waiting.
	go func() {
		station, err := s.dir.FetchFullRecord(context.WithoutCancel(ctx), id)

		s.mu.Lock()
		if err == nil {
			s.details[id] = station
		}
		delete(s.pending, id)
		s.mu.Unlock()

		p.station = station
		p.err = err
		close(p.done)

		if err != nil {
			s.logger.Debug("Detail fetch failed",
				logger.String("station_id", id),
				logger.Error(err),
			)
		}
	}()

	select {
	case <-p.done:
		return p.station, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetCached returns the full record for id if it is already hydrated.
// Never triggers network I/O.
func (s *Store) GetCached(id string) (*directory.Station, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.details[id]
	return st, ok
}

// PickRandom returns a uniformly random entry from the light index,
// or false if the index is empty.
func (s *Store) PickRandom() (directory.StationLight, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.index) == 0 {
		return directory.StationLight{}, false
	}
	return s.index[s.rng.Intn(len(s.index))], true
}

// ClearDetails drops the detail cache. The light index is untouched.
func (s *Store) ClearDetails() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.details = make(map[string]*directory.Station)
	s.logger.Debug("Detail cache cleared")
}
