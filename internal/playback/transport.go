package playback

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avelins/radioatlas/pkg/logger"
)

// EventType identifies a transport event.
type EventType int

const (
	// EventPlaying fires once the stream delivers audio data.
	EventPlaying EventType = iota
	// EventPaused fires when the transport pauses without being asked to
	// by the controller (an external pause).
	EventPaused
	// EventError fires on any transport failure.
	EventError
)

// Event is one asynchronous notification from an audio transport.
type Event struct {
	Type EventType
	Err  error
}

// Handle is one live binding to an audio stream. The events channel is
// closed when the handle terminates, by error or by Close.
type Handle interface {
	Events() <-chan Event
	Pause()
	Resume()
	Close() error
}

// Transport starts audio playback for a stream URL. Open must not block on
// the network; connection progress and failures are reported as events.
type Transport interface {
	Open(ctx context.Context, streamURL string) (Handle, error)
}

// HTTPTransport plays a stream by holding an HTTP connection open and
// draining it. It reports EventPlaying once the first audio bytes arrive.
type HTTPTransport struct {
	httpClient *http.Client
	userAgent  string
	logger     *logger.Logger
}

// NewHTTPTransport creates a transport tuned for long-lived audio streams:
// no overall request timeout, keep-alive on, compression off.
func NewHTTPTransport(userAgent string, log *logger.Logger) *HTTPTransport {
	transport := &http.Transport{
		MaxIdleConns:       10,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: true,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &HTTPTransport{
		httpClient: &http.Client{Transport: transport},
		userAgent:  userAgent,
		logger:     log.Named("http-transport"),
	}
}

// Open starts streaming from streamURL until the context is cancelled or the
// handle is closed.
func (t *HTTPTransport) Open(ctx context.Context, streamURL string) (Handle, error) {
	if streamURL == "" {
		return nil, ErrNoStreamURL
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &httpHandle{
		events: make(chan Event, 4),
		cancel: cancel,
	}
	h.cond = sync.NewCond(&h.mu)

	go t.run(ctx, streamURL, h)
	return h, nil
}

func (t *HTTPTransport) run(ctx context.Context, streamURL string, h *httpHandle) {
	defer close(h.events)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addCacheBreaker(streamURL), nil)
	if err != nil {
		h.emit(Event{Type: EventError, Err: fmt.Errorf("failed to create request: %w", err)})
		return
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("User-Agent", t.userAgent)

	t.logger.Debug("Connecting to audio stream", logger.String("url", streamURL))

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			h.emit(Event{Type: EventError, Err: fmt.Errorf("failed to connect: %w", err)})
		}
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		h.emit(Event{Type: EventError, Err: fmt.Errorf("%w: status %d", ErrBlocked, resp.StatusCode)})
		return
	case resp.StatusCode != http.StatusOK:
		h.emit(Event{Type: EventError, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)})
		return
	}

	t.logger.Debug("Connected to audio stream",
		logger.String("url", streamURL),
		logger.String("content_type", resp.Header.Get("Content-Type")),
		logger.String("station_name", resp.Header.Get("icy-name")),
	)

	reader := bufio.NewReaderSize(resp.Body, 64*1024)
	buf := make([]byte, 4096)
	playing := false

	for {
		if !h.waitWhilePaused() {
			return
		}

		n, err := reader.Read(buf)
		if n > 0 && !playing {
			playing = true
			h.emit(Event{Type: EventPlaying})
		}
		if err != nil {
			if ctx.Err() == nil && !h.isClosed() {
				h.emit(Event{Type: EventError, Err: fmt.Errorf("stream read failed: %w", err)})
			}
			return
		}
	}
}

// addCacheBreaker appends a timestamp parameter so intermediate caches do
// not serve a stale stream start.
func addCacheBreaker(streamURL string) string {
	separator := "?"
	if strings.Contains(streamURL, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%snocache=%d", streamURL, separator, time.Now().UnixNano())
}

type httpHandle struct {
	events chan Event
	cancel context.CancelFunc

	mu     sync.Mutex
	cond   *sync.Cond
	paused bool
	closed bool
}

func (h *httpHandle) Events() <-chan Event {
	return h.events
}

func (h *httpHandle) Pause() {
	h.mu.Lock()
	h.paused = true
	h.mu.Unlock()
}

func (h *httpHandle) Resume() {
	h.mu.Lock()
	h.paused = false
	h.mu.Unlock()
	h.cond.Broadcast()
}

func (h *httpHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()
	h.cond.Broadcast()
	h.cancel()
	return nil
}

// waitWhilePaused blocks while the handle is paused. Returns false once the
// handle is closed.
func (h *httpHandle) waitWhilePaused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for h.paused && !h.closed {
		h.cond.Wait()
	}
	return !h.closed
}

func (h *httpHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// emit delivers an event without blocking forever on a consumer that went
// away; the channel buffer absorbs the burst around termination.
func (h *httpHandle) emit(ev Event) {
	select {
	case h.events <- ev:
	default:
	}
}
