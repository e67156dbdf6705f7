package models

import "time"

// PlaybackEventType constants
const (
	EventSessionStarted  = "session_started"
	EventSourceSwitched  = "source_switched"
	EventSessionTornDown = "session_torn_down"
	EventContentComplete = "content_completed"
)

// PlaybackEvent is published to the message queue on session lifecycle
// transitions and consumed by the analytics worker.
type PlaybackEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	ViewerID  string    `json:"viewer_id,omitempty"`
	MediaID   string    `json:"media_id"`
	MediaType string    `json:"media_type"`
	EpisodeID string    `json:"episode_id,omitempty"`
	SourceID  string    `json:"source_id,omitempty"`
	Position  float64   `json:"position,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
