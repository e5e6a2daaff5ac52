package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avelins/radioatlas/internal/directory"
	"github.com/avelins/radioatlas/pkg/logger"
)

// ClickRegistrar reports playback starts to the directory. Best-effort;
// the controller swallows every failure.
type ClickRegistrar interface {
	RegisterClick(ctx context.Context, id string) error
}

// Controller owns at most one live playback session. Starting a session for
// a new station supersedes any prior one; a generation counter tags every
// asynchronous callback so late events from a superseded attempt can never
// touch the current session.
type Controller struct {
	transport   Transport
	clicks      ClickRegistrar
	loadTimeout time.Duration
	retryDelay  time.Duration
	maxRetries  int
	logger      *logger.Logger
	notify      func(Session)

	mu         sync.Mutex
	gen        uint64
	station    *directory.Station
	session    Session
	handle     Handle
	cancel     context.CancelFunc
	loadTimer  *time.Timer
	retryTimer *time.Timer
}

// NewController creates a playback session controller.
func NewController(
	transport Transport,
	clicks ClickRegistrar,
	loadTimeout time.Duration,
	retryDelay time.Duration,
	maxRetries int,
	log *logger.Logger,
) *Controller {
	return &Controller{
		transport:   transport,
		clicks:      clicks,
		loadTimeout: loadTimeout,
		retryDelay:  retryDelay,
		maxRetries:  maxRetries,
		logger:      log.Named("playback"),
		session:     Session{Status: StatusIdle},
	}
}

// SetNotify registers an observer called with a session snapshot after every
// state change. Must be set before the first Start.
func (c *Controller) SetNotify(fn func(Session)) {
	c.notify = fn
}

// Session returns a snapshot of the current session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Start begins a playback session for the station, superseding any prior
// session. The resolved stream URL is attempted first; the raw stream URL is
// kept as the fallback for the single automatic retry.
func (c *Controller) Start(station *directory.Station) {
	c.mu.Lock()
	c.teardownLocked()
	c.gen++
	gen := c.gen
	c.station = station

	streamURL := station.ResolvedURL
	if streamURL == "" {
		streamURL = station.StreamURL
	}
	if streamURL == "" {
		c.session = Session{
			StationID:    station.ID,
			Status:       StatusError,
			ErrorMessage: msgNoStreamURL,
		}
		c.mu.Unlock()
		c.notifyCurrent()
		return
	}

	c.session = Session{
		StationID:     station.ID,
		Status:        StatusLoading,
		AttemptedURLs: []string{streamURL},
	}
	c.armLoadTimerLocked(gen)
	c.mu.Unlock()

	c.logger.Info("Starting playback",
		logger.String("station_id", station.ID),
		logger.String("station_name", station.Name),
	)

	c.notifyCurrent()
	go c.attempt(gen, streamURL)
}

// Stop tears down the live session and returns to idle. All pending timers
// and the transport binding are cancelled before it returns.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.gen++
	c.teardownLocked()
	c.station = nil
	c.session = Session{Status: StatusIdle}
	c.mu.Unlock()
	c.notifyCurrent()
}

// TogglePlay pauses a playing session, resumes a paused one, and restarts a
// failed one from scratch (the manual-retry affordance).
func (c *Controller) TogglePlay() {
	c.mu.Lock()
	switch c.session.Status {
	case StatusPlaying:
		if c.handle != nil {
			c.handle.Pause()
		}
		c.session.Status = StatusPaused
		c.mu.Unlock()
		c.notifyCurrent()
	case StatusPaused:
		if c.handle != nil {
			c.handle.Resume()
		}
		c.session.Status = StatusPlaying
		c.mu.Unlock()
		c.notifyCurrent()
	case StatusError:
		station := c.station
		c.mu.Unlock()
		if station != nil {
			c.Start(station)
		}
	default:
		c.mu.Unlock()
	}
}

// attempt binds the transport to streamURL for the given session generation.
func (c *Controller) attempt(gen uint64, streamURL string) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		cancel()
		return
	}
	c.cancel = cancel
	c.mu.Unlock()

	handle, err := c.transport.Open(ctx, streamURL)
	if err != nil {
		c.onTransportError(gen, err)
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		handle.Close()
		return
	}
	c.handle = handle
	c.mu.Unlock()

	for ev := range handle.Events() {
		c.applyEvent(gen, ev)
	}
}

// applyEvent applies a transport event, discarding it if the session it
// belongs to has been superseded.
func (c *Controller) applyEvent(gen uint64, ev Event) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}

	switch ev.Type {
	case EventPlaying:
		c.stopTimersLocked()
		c.session.Status = StatusPlaying
		c.session.ErrorMessage = ""
		stationID := c.session.StationID
		c.mu.Unlock()
		c.notifyCurrent()
		c.registerClick(stationID)
	case EventPaused:
		if c.session.Status == StatusPlaying {
			c.session.Status = StatusPaused
		}
		c.mu.Unlock()
		c.notifyCurrent()
	case EventError:
		c.mu.Unlock()
		c.onTransportError(gen, ev.Err)
	default:
		c.mu.Unlock()
	}
}

// onTransportError decides between the single fallback retry and terminal
// error state.
func (c *Controller) onTransportError(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.failLocked(gen, err)
}

// failLocked applies a playback failure. Called with the lock held; releases
// it before notifying.
func (c *Controller) failLocked(gen uint64, err error) {
	if errors.Is(err, ErrBlocked) {
		c.stopTimersLocked()
		c.closeHandleLocked()
		c.session.Status = StatusError
		c.session.ErrorMessage = msgBlocked
		c.mu.Unlock()
		c.notifyCurrent()
		return
	}

	lastURL := ""
	if n := len(c.session.AttemptedURLs); n > 0 {
		lastURL = c.session.AttemptedURLs[n-1]
	}
	fallbackURL := ""
	if c.station != nil {
		fallbackURL = c.station.StreamURL
	}

	if c.session.RetryCount < c.maxRetries && fallbackURL != "" && fallbackURL != lastURL {
		c.session.RetryCount++
		c.session.Status = StatusLoading
		c.session.AttemptedURLs = append(c.session.AttemptedURLs, fallbackURL)
		c.closeHandleLocked()
		c.stopLoadTimerLocked()
		// The load timer is armed once the fallback attempt actually starts,
		// so the retry delay does not eat into its budget.
		c.retryTimer = time.AfterFunc(c.retryDelay, func() {
			c.mu.Lock()
			if gen != c.gen {
				c.mu.Unlock()
				return
			}
			c.armLoadTimerLocked(gen)
			c.mu.Unlock()
			c.attempt(gen, fallbackURL)
		})
		c.mu.Unlock()

		c.logger.Warn("Retrying with fallback stream url",
			logger.String("url", fallbackURL),
			logger.Error(err),
		)
		c.notifyCurrent()
		return
	}

	c.stopTimersLocked()
	c.closeHandleLocked()
	c.session.Status = StatusError
	c.session.ErrorMessage = errorMessage(err)
	stationID := c.session.StationID
	c.mu.Unlock()

	c.logger.Warn("Playback failed",
		logger.String("station_id", stationID),
		logger.Error(err),
	)
	c.notifyCurrent()
}

// onLoadTimeout fires when Loading outlasts the time budget without
// reaching Playing. The status check and the failure transition share one
// lock hold so a session that just reached Playing cannot be torn down by
// a timer firing on the boundary.
func (c *Controller) onLoadTimeout(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.session.Status != StatusLoading {
		c.mu.Unlock()
		return
	}
	c.failLocked(gen, ErrLoadTimeout)
}

func (c *Controller) registerClick(stationID string) {
	if c.clicks == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.clicks.RegisterClick(ctx, stationID); err != nil {
			c.logger.Debug("Click registration failed",
				logger.String("station_id", stationID),
				logger.Error(err),
			)
		}
	}()
}

func (c *Controller) armLoadTimerLocked(gen uint64) {
	if c.loadTimer != nil {
		c.loadTimer.Stop()
	}
	c.loadTimer = time.AfterFunc(c.loadTimeout, func() {
		c.onLoadTimeout(gen)
	})
}

func (c *Controller) stopTimersLocked() {
	c.stopLoadTimerLocked()
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func (c *Controller) stopLoadTimerLocked() {
	if c.loadTimer != nil {
		c.loadTimer.Stop()
		c.loadTimer = nil
	}
}

func (c *Controller) closeHandleLocked() {
	if c.handle != nil {
		c.handle.Close()
		c.handle = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) teardownLocked() {
	c.stopTimersLocked()
	c.closeHandleLocked()
}

func (c *Controller) snapshotLocked() Session {
	snap := c.session
	snap.AttemptedURLs = append([]string(nil), c.session.AttemptedURLs...)
	return snap
}

func (c *Controller) notifyCurrent() {
	if c.notify == nil {
		return
	}
	c.mu.Lock()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// errorMessage maps a playback failure to the user-facing text.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoStreamURL):
		return msgNoStreamURL
	case errors.Is(err, ErrLoadTimeout):
		return msgTimeout
	case errors.Is(err, ErrBlocked):
		return msgBlocked
	default:
		return msgUnavailable
	}
}
