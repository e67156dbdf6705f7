// Package source canonicalizes raw server/source descriptors into a uniform
// shape with a resolved stream kind. Ingest paths disagree on field names
// and type tags, so everything funnels through Normalize before the rest of
// the system sees a source.
package source

import (
	"strings"

	"github.com/openstreamhub/streamgate/pkg/models"
)

// embedHosts are URL substrings that identify third-party embed players
// when no explicit type tag is present.
var embedHosts = []string{
	"youtube.com",
	"youtu.be",
	"vimeo.com",
	"dailymotion.com",
	"ok.ru",
	"streamtape",
}

// Normalize canonicalizes a list of raw source descriptors. When the
// content's access tier is not free, playable URLs are stripped from the
// output so that paid playback can only go through the protected URL
// exchange.
func Normalize(raws []models.RawSource, access models.AccessDescriptor) []models.Source {
	sources := make([]models.Source, 0, len(raws))
	for _, raw := range raws {
		s := normalizeOne(raw)
		if !access.IsFree() {
			s.URL = ""
			s.QualityURLs = nil
		}
		sources = append(sources, s)
	}
	return sources
}

func normalizeOne(raw models.RawSource) models.Source {
	qualityURLs := cleanQualityURLs(firstQualityMap(raw))

	return models.Source{
		ID:          raw.ID,
		Label:       raw.Name,
		Kind:        ResolveKind(raw.Type, pickURL(raw.URL, qualityURLs)),
		URL:         raw.URL,
		QualityURLs: qualityURLs,
		IsDefault:   raw.IsDefault,
	}
}

// firstQualityMap picks the first populated quality-URL alias. Older rows
// use "urls", the ingest API used "qualityUrls" and then "quality_urls".
func firstQualityMap(raw models.RawSource) models.QualityURLs {
	for _, m := range []models.QualityURLs{raw.URLs, raw.QualityURLs, raw.QualityMap} {
		if len(m) > 0 {
			return m
		}
	}
	return nil
}

// cleanQualityURLs drops sentinel "undefined" entries and returns nil for
// maps with no usable entries, so absence is uniformly represented.
func cleanQualityURLs(urls models.QualityURLs) models.QualityURLs {
	if len(urls) == 0 {
		return nil
	}

	cleaned := make(models.QualityURLs, len(urls))
	for label, u := range urls {
		if u == "" || strings.EqualFold(u, "undefined") {
			continue
		}
		cleaned[label] = u
	}

	if len(cleaned) == 0 {
		return nil
	}
	return cleaned
}

// pickURL returns the single URL when set, else any quality URL, for kind
// inference only.
func pickURL(url string, qualityURLs models.QualityURLs) string {
	if url != "" {
		return url
	}
	for _, u := range qualityURLs {
		return u
	}
	return ""
}

// ResolveKind resolves the stream kind for a source. Resolution order:
// explicit type tag, URL suffix, known embed hosts, default HLS. A source
// always leaves here with a resolved kind even when the declared tag is
// absent or malformed.
func ResolveKind(declared, url string) models.StreamKind {
	switch strings.ToLower(strings.TrimSpace(declared)) {
	case "embed", "iframe":
		return models.StreamKindEmbed
	case "mp4", "file":
		return models.StreamKindFile
	case "hls", "m3u8":
		return models.StreamKindHLS
	case "dash", "mpd":
		return models.StreamKindDASH
	}

	lower := strings.ToLower(url)
	// Ignore query strings when matching suffixes
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}

	switch {
	case strings.HasSuffix(lower, ".m3u8"):
		return models.StreamKindHLS
	case strings.HasSuffix(lower, ".mpd"):
		return models.StreamKindDASH
	case strings.HasSuffix(lower, ".mp4"):
		return models.StreamKindFile
	}

	for _, host := range embedHosts {
		if strings.Contains(lower, host) {
			return models.StreamKindEmbed
		}
	}

	return models.StreamKindHLS
}

// DefaultSource returns the source flagged as default, else the first one.
// Returns nil for an empty list.
func DefaultSource(sources []models.Source) *models.Source {
	for i := range sources {
		if sources[i].IsDefault {
			return &sources[i]
		}
	}
	if len(sources) > 0 {
		return &sources[0]
	}
	return nil
}

// FindByID returns the source with the given id, or nil.
func FindByID(sources []models.Source, id string) *models.Source {
	for i := range sources {
		if sources[i].ID == id {
			return &sources[i]
		}
	}
	return nil
}
