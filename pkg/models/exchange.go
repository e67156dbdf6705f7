package models

// ExchangeRequest asks the backend to release playable URLs for one source
// after server-side entitlement revalidation.
type ExchangeRequest struct {
	SourceID        string     `json:"sourceId"`
	EpisodeID       string     `json:"episodeId,omitempty"`
	MovieID         string     `json:"movieId,omitempty"`
	MediaID         string     `json:"mediaId,omitempty"`
	MediaType       string     `json:"mediaType,omitempty"`
	AccessType      AccessType `json:"accessType"`
	ExcludeFromPlan bool       `json:"excludeFromPlan"`
}

// ExchangeResponse carries the validated source on success. On failure the
// Error field holds a stable code, never a raw backend message.
type ExchangeResponse struct {
	Success bool    `json:"success"`
	Source  *Source `json:"source,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// Exchange error codes
const (
	ExchangeErrNotAuthenticated = "not_authenticated"
	ExchangeErrNotEntitled      = "not_entitled"
	ExchangeErrSourceNotFound   = "source_not_found"
	ExchangeErrUnavailable      = "unavailable"
)
