package playback

import (
	"github.com/openstreamhub/streamgate/internal/bandwidth"
	"github.com/openstreamhub/streamgate/pkg/models"
)

// BuildAttachment maps a playable source onto the engine a client should
// mount. File sources attach natively with the quality ladder exposed,
// manifest sources (HLS, DASH) attach through the adaptive engine seeded
// with the session's bandwidth estimate, and embeds pass the provider URL
// through untouched.
func BuildAttachment(src models.Source, session *models.PlaybackSession, bufferingGoal, resumePos float64, resumePlaying, autoplay bool) models.Attachment {
	attachment := models.Attachment{
		ResumePosition: resumePos,
		ResumePlaying:  resumePlaying,
		Autoplay:       autoplay,
	}

	switch src.Kind {
	case models.StreamKindEmbed:
		attachment.Engine = models.EngineKindEmbed
		attachment.URL = src.URL

	case models.StreamKindFile:
		attachment.Engine = models.EngineKindNative
		attachment.URL = initialFileURL(src, session.BandwidthBPS)
		attachment.QualityURLs = src.QualityURLs

	case models.StreamKindHLS:
		if session.HLSFallback {
			attachment.Engine = models.EngineKindNativeHLS
			attachment.URL = src.URL
			break
		}
		attachment.Engine = models.EngineKindAdaptive
		attachment.URL = src.URL
		attachment.BufferingGoalSec = bufferingGoal
		attachment.InitialBandwidth = session.BandwidthBPS

	case models.StreamKindDASH:
		attachment.Engine = models.EngineKindAdaptive
		attachment.URL = src.URL
		attachment.BufferingGoalSec = bufferingGoal
		attachment.InitialBandwidth = session.BandwidthBPS

	default:
		attachment.Engine = models.EngineKindAdaptive
		attachment.URL = src.URL
		attachment.BufferingGoalSec = bufferingGoal
		attachment.InitialBandwidth = session.BandwidthBPS
	}

	return attachment
}

// initialFileURL picks the starting rendition for a native file source:
// the quality the bandwidth estimate supports, else the bare source URL.
func initialFileURL(src models.Source, bps int64) string {
	if len(src.QualityURLs) > 0 {
		label := bandwidth.SelectQuality(src.Qualities(), bps)
		if url, ok := src.QualityURLs[label]; ok && url != "" {
			return url
		}
	}
	return src.URL
}

// SwitchQuality rebinds a native file session to another rendition of the
// same source, preserving position and play state. Manifest sources handle
// quality internally, so this only applies to file attachments.
func SwitchQuality(session *models.PlaybackSession, label string) bool {
	if session.Attachment == nil || session.Attachment.Engine != models.EngineKindNative {
		return false
	}
	url, ok := session.Attachment.QualityURLs[label]
	if !ok || url == "" {
		return false
	}

	session.Attachment.URL = url
	session.Attachment.ResumePosition = session.Player.CurrentTime
	session.Attachment.ResumePlaying = session.Player.Playing
	session.Player.Quality = label
	session.Player.AutoQuality = false
	return true
}
