package playback

import "errors"

// Status is the state of a playback session.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusPlaying
	StatusPaused
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Session is a snapshot of one playback attempt lifecycle. A session is
// created on selection and superseded by the next selection or stop.
type Session struct {
	StationID     string
	Status        Status
	ErrorMessage  string
	AttemptedURLs []string
	RetryCount    int
}

// Playback failure sentinels. The controller converts these into session
// error state; they never escape its boundary.
var (
	// ErrNoStreamURL means the station record carries no playable URL.
	ErrNoStreamURL = errors.New("no stream url")
	// ErrLoadTimeout means the stream did not start within the time budget.
	ErrLoadTimeout = errors.New("stream load timed out")
	// ErrBlocked means the platform refused to start playback without an
	// explicit user action. Not retried; the user must trigger playback.
	ErrBlocked = errors.New("playback blocked by platform policy")
)

// User-facing messages for the error states the UI must distinguish.
const (
	msgNoStreamURL = "no stream url available"
	msgTimeout     = "stream load timed out"
	msgBlocked     = "press play to start this station"
	msgUnavailable = "this station is not available right now"
)
