package models

import (
	"database/sql/driver"
	"encoding/json"
)

// StreamKind classifies how a source is played back
type StreamKind string

// StreamKind constants
const (
	StreamKindFile  StreamKind = "file"
	StreamKindHLS   StreamKind = "hls"
	StreamKindDASH  StreamKind = "dash"
	StreamKindEmbed StreamKind = "embed"
)

// QualityURLs maps a quality label (e.g. "1080p") to a playable URL
type QualityURLs map[string]string

// Value implements driver.Valuer for database storage
func (q QualityURLs) Value() (driver.Value, error) {
	return json.Marshal(q)
}

// Scan implements sql.Scanner for database retrieval
func (q *QualityURLs) Scan(value interface{}) error {
	if value == nil {
		*q = make(QualityURLs)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, q)
}

// RawSource is a server/source descriptor as stored or ingested, before
// normalization. Field names vary across ingest paths, hence the aliases.
type RawSource struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Type        string      `json:"type,omitempty" db:"type"`
	URL         string      `json:"url,omitempty" db:"url"`
	URLs        QualityURLs `json:"urls,omitempty" db:"urls"`
	QualityURLs QualityURLs `json:"qualityUrls,omitempty" db:"-"`
	QualityMap  QualityURLs `json:"quality_urls,omitempty" db:"-"`
	IsDefault   bool        `json:"is_default" db:"is_default"`
	ObjectKey   string      `json:"object_key,omitempty" db:"object_key"`
}

// Source is a normalized source with a resolved stream kind. For non-free
// content the URL fields are stripped and only populated by the protected
// URL exchange.
type Source struct {
	ID          string      `json:"id"`
	Label       string      `json:"label"`
	Kind        StreamKind  `json:"kind"`
	URL         string      `json:"url,omitempty"`
	QualityURLs QualityURLs `json:"quality_urls,omitempty"`
	IsDefault   bool        `json:"is_default"`
}

// Qualities returns the quality labels available for the source
func (s *Source) Qualities() []string {
	labels := make([]string, 0, len(s.QualityURLs))
	for label := range s.QualityURLs {
		labels = append(labels, label)
	}
	return labels
}
