package models

import "time"

// SessionState represents the lifecycle state of a playback session
type SessionState string

// SessionState constants
const (
	SessionStateUninitialized SessionState = "uninitialized"
	SessionStateLoading       SessionState = "loading"
	SessionStateReady         SessionState = "ready"
	SessionStatePlaying       SessionState = "playing"
	SessionStatePaused        SessionState = "paused"
	SessionStateSwitching     SessionState = "switching"
	SessionStateTornDown      SessionState = "torn_down"
)

// EngineKind identifies the playback engine a client should attach
type EngineKind string

// EngineKind constants
const (
	EngineKindNative    EngineKind = "native"
	EngineKindAdaptive  EngineKind = "adaptive"
	EngineKindNativeHLS EngineKind = "native_hls"
	EngineKindEmbed     EngineKind = "embed"
)

// Attachment tells the client what to attach and how. It is produced by
// the playback engine adapter for the currently validated source.
type Attachment struct {
	Engine           EngineKind  `json:"engine"`
	URL              string      `json:"url,omitempty"`
	QualityURLs      QualityURLs `json:"quality_urls,omitempty"`
	BufferingGoalSec float64     `json:"buffering_goal_sec,omitempty"`
	InitialBandwidth int64       `json:"initial_bandwidth,omitempty"`
	ResumePosition   float64     `json:"resume_position,omitempty"`
	ResumePlaying    bool        `json:"resume_playing,omitempty"`
	Autoplay         bool        `json:"autoplay,omitempty"`
}

// PlayerState mirrors the client-side player controls for one session
type PlayerState struct {
	CurrentTime   float64 `json:"current_time"`
	Duration      float64 `json:"duration"`
	Buffered      float64 `json:"buffered"`
	Volume        float64 `json:"volume"`
	Muted         bool    `json:"muted"`
	Playing       bool    `json:"playing"`
	Fullscreen    bool    `json:"fullscreen"`
	Quality       string  `json:"quality"`
	AutoQuality   bool    `json:"auto_quality"`
	AudioTrack    string  `json:"audio_track,omitempty"`
	TextTrack     string  `json:"text_track,omitempty"`
	HideCaptions  bool    `json:"hide_captions"`
	PlaybackRate  float64 `json:"playback_rate"`
}

// PlaybackSession is the server-side record of one mounted player. At most
// one session is live per viewer+content slot; a source change allocates a
// new generation rather than a new session.
type PlaybackSession struct {
	ID           string       `json:"id"`
	ViewerID     string       `json:"viewer_id,omitempty"`
	MediaID      string       `json:"media_id"`
	MediaType    string       `json:"media_type"`
	EpisodeID    string       `json:"episode_id,omitempty"`
	State        SessionState `json:"state"`
	Generation   uint64       `json:"generation"`
	SourceID     string       `json:"source_id,omitempty"`
	Sources      []Source     `json:"sources"`
	Attachment   *Attachment  `json:"attachment,omitempty"`
	Player       PlayerState  `json:"player"`
	Capabilities Capabilities `json:"capabilities"`
	BandwidthBPS int64        `json:"bandwidth_bps"`
	SampledAt    time.Time    `json:"sampled_at"`
	HLSFallback  bool         `json:"hls_fallback"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
