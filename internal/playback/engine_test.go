package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openstreamhub/streamgate/pkg/models"
)

func TestBuildAttachment(t *testing.T) {
	session := &models.PlaybackSession{BandwidthBPS: 5_000_000}

	tests := []struct {
		name           string
		src            models.Source
		hlsFallback    bool
		expectedEngine models.EngineKind
		expectedURL    string
	}{
		{
			name: "file source attaches natively at the supported rendition",
			src: models.Source{
				Kind: models.StreamKindFile,
				URL:  "https://cdn.example.com/bare.mp4",
				QualityURLs: models.QualityURLs{
					"480p":  "https://cdn.example.com/480.mp4",
					"720p":  "https://cdn.example.com/720.mp4",
					"1080p": "https://cdn.example.com/1080.mp4",
				},
			},
			expectedEngine: models.EngineKindNative,
			// 5 Mbps carries 720p but not 1080p
			expectedURL: "https://cdn.example.com/720.mp4",
		},
		{
			name: "file source without ladder uses the bare url",
			src: models.Source{
				Kind: models.StreamKindFile,
				URL:  "https://cdn.example.com/bare.mp4",
			},
			expectedEngine: models.EngineKindNative,
			expectedURL:    "https://cdn.example.com/bare.mp4",
		},
		{
			name: "hls source attaches through the adaptive engine",
			src: models.Source{
				Kind: models.StreamKindHLS,
				URL:  "https://cdn.example.com/master.m3u8",
			},
			expectedEngine: models.EngineKindAdaptive,
			expectedURL:    "https://cdn.example.com/master.m3u8",
		},
		{
			name: "hls source after fallback attaches natively",
			src: models.Source{
				Kind: models.StreamKindHLS,
				URL:  "https://cdn.example.com/master.m3u8",
			},
			hlsFallback:    true,
			expectedEngine: models.EngineKindNativeHLS,
			expectedURL:    "https://cdn.example.com/master.m3u8",
		},
		{
			name: "dash source attaches through the adaptive engine",
			src: models.Source{
				Kind: models.StreamKindDASH,
				URL:  "https://cdn.example.com/manifest.mpd",
			},
			expectedEngine: models.EngineKindAdaptive,
			expectedURL:    "https://cdn.example.com/manifest.mpd",
		},
		{
			name: "embed source passes the provider url through",
			src: models.Source{
				Kind: models.StreamKindEmbed,
				URL:  "https://www.youtube.com/embed/abc123",
			},
			expectedEngine: models.EngineKindEmbed,
			expectedURL:    "https://www.youtube.com/embed/abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session.HLSFallback = tt.hlsFallback

			attachment := BuildAttachment(tt.src, session, 30, 12.5, true, true)

			assert.Equal(t, tt.expectedEngine, attachment.Engine)
			assert.Equal(t, tt.expectedURL, attachment.URL)
			assert.Equal(t, 12.5, attachment.ResumePosition)
			assert.True(t, attachment.ResumePlaying)
			assert.True(t, attachment.Autoplay)

			if attachment.Engine == models.EngineKindAdaptive {
				assert.Equal(t, 30.0, attachment.BufferingGoalSec)
				assert.Equal(t, int64(5_000_000), attachment.InitialBandwidth)
			} else {
				assert.Zero(t, attachment.InitialBandwidth)
			}
		})
	}
}

func TestSwitchQuality(t *testing.T) {
	session := &models.PlaybackSession{
		Attachment: &models.Attachment{
			Engine: models.EngineKindNative,
			URL:    "https://cdn.example.com/720.mp4",
			QualityURLs: models.QualityURLs{
				"480p": "https://cdn.example.com/480.mp4",
				"720p": "https://cdn.example.com/720.mp4",
			},
		},
		Player: models.PlayerState{CurrentTime: 99, Playing: true, AutoQuality: true},
	}

	assert.True(t, SwitchQuality(session, "480p"))
	assert.Equal(t, "https://cdn.example.com/480.mp4", session.Attachment.URL)
	assert.Equal(t, 99.0, session.Attachment.ResumePosition)
	assert.True(t, session.Attachment.ResumePlaying)
	assert.False(t, session.Player.AutoQuality)

	assert.False(t, SwitchQuality(session, "2160p"))
}

func TestSwitchQualityNonNativeEngine(t *testing.T) {
	session := &models.PlaybackSession{
		Attachment: &models.Attachment{Engine: models.EngineKindAdaptive},
	}
	assert.False(t, SwitchQuality(session, "720p"))

	session.Attachment = nil
	assert.False(t, SwitchQuality(session, "720p"))
}
