package models

import "time"

// WatchProgress is a resumable-viewing record keyed by (viewer, content)
type WatchProgress struct {
	ID          string    `json:"id" db:"id"`
	ViewerID    string    `json:"viewer_id" db:"viewer_id"`
	MediaID     string    `json:"media_id" db:"media_id"`
	MediaType   string    `json:"media_type" db:"media_type"`
	EpisodeID   string    `json:"episode_id,omitempty" db:"episode_id"`
	Position    float64   `json:"position" db:"position"`
	Duration    float64   `json:"duration" db:"duration"`
	Completed   bool      `json:"completed" db:"completed"`
	LastWatched time.Time `json:"last_watched" db:"last_watched"`
}

// Remaining returns the seconds left to watch
func (w *WatchProgress) Remaining() float64 {
	return w.Duration - w.Position
}
