package sessions

import "errors"

var (
	// ErrNotFound means no session matched, or the caller does not own an
	// active session with that id.
	ErrNotFound = errors.New("session not found")
	// ErrForbidden means the session belongs to another user.
	ErrForbidden = errors.New("access denied")
	// ErrSessionEnded means the session was already finalized, either by an
	// explicit end or by the sweeper winning the race.
	ErrSessionEnded = errors.New("session already ended")
	// ErrActiveExists is returned by the store when creating would violate
	// the one-active-session-per-user constraint.
	ErrActiveExists = errors.New("active session already exists")
	// ErrSongNotFound means a supplied song id does not resolve.
	ErrSongNotFound = errors.New("song not found")
	// ErrPredictionUnavailable wraps classifier failures during explicit end.
	// The session stays active so the client can retry.
	ErrPredictionUnavailable = errors.New("prediction unavailable")
)
