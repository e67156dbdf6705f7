package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// MediaType constants
const (
	MediaTypeMovie   = "movie"
	MediaTypeSeries  = "series"
	MediaTypeEpisode = "episode"
)

// Metadata holds additional media metadata
type Metadata map[string]interface{}

// Value implements driver.Valuer for database storage
func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner for database retrieval
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = make(Metadata)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, m)
}

// Movie represents a standalone title in the catalog
type Movie struct {
	ID          string           `json:"id" db:"id"`
	Title       string           `json:"title" db:"title"`
	Overview    string           `json:"overview" db:"overview"`
	PosterURL   string           `json:"poster_url" db:"poster_url"`
	BackdropURL string           `json:"backdrop_url" db:"backdrop_url"`
	Year        int              `json:"year" db:"year"`
	Duration    float64          `json:"duration" db:"duration"`
	Access      AccessDescriptor `json:"access"`
	Metadata    Metadata         `json:"metadata" db:"metadata"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

// Series represents an episodic title in the catalog
type Series struct {
	ID          string           `json:"id" db:"id"`
	Title       string           `json:"title" db:"title"`
	Overview    string           `json:"overview" db:"overview"`
	PosterURL   string           `json:"poster_url" db:"poster_url"`
	BackdropURL string           `json:"backdrop_url" db:"backdrop_url"`
	Year        int              `json:"year" db:"year"`
	Access      AccessDescriptor `json:"access"`
	Metadata    Metadata         `json:"metadata" db:"metadata"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

// Episode represents one episode of a series. The Access field is optional:
// when nil the series-level descriptor applies.
type Episode struct {
	ID        string            `json:"id" db:"id"`
	SeriesID  string            `json:"series_id" db:"series_id"`
	Season    int               `json:"season" db:"season"`
	Number    int               `json:"number" db:"number"`
	Title     string            `json:"title" db:"title"`
	Overview  string            `json:"overview" db:"overview"`
	Duration  float64           `json:"duration" db:"duration"`
	Access    *AccessDescriptor `json:"access,omitempty"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}

// EffectiveAccess returns the descriptor gating this episode: its own when
// present, else the series-level one.
func (e *Episode) EffectiveAccess(series AccessDescriptor) AccessDescriptor {
	if e.Access != nil {
		return *e.Access
	}
	return series
}
