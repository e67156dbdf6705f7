// Package bandwidth estimates a viewer's network throughput and turns the
// estimate into an initial quality choice. Estimates come from the client's
// connection hint when available, else from a timed download of a reference
// resource served by the gateway, else from a fixed default.
package bandwidth

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/openstreamhub/streamgate/pkg/models"
)

// DefaultBPS is the estimate used when no hint and no probe is available
// (roughly 5 Mbps).
const DefaultBPS int64 = 5_000_000

// qualityBPS maps a quality label's pixel height to the sustained bitrate
// it needs, in bits per second.
var qualityBPS = map[int]int64{
	240:  700_000,
	360:  1_000_000,
	480:  2_500_000,
	720:  5_000_000,
	1080: 8_000_000,
	1440: 16_000_000,
	2160: 25_000_000,
}

// Estimator produces bandwidth estimates for playback sessions
type Estimator struct {
	defaultBPS    int64
	probeSize     int
	resampleEvery time.Duration
}

// NewEstimator creates an estimator. Zero values fall back to package
// defaults.
func NewEstimator(defaultBPS int64, probeSize int, resampleEvery time.Duration) *Estimator {
	if defaultBPS <= 0 {
		defaultBPS = DefaultBPS
	}
	if probeSize <= 0 {
		probeSize = 512 * 1024
	}
	if resampleEvery <= 0 {
		resampleEvery = 30 * time.Second
	}
	return &Estimator{
		defaultBPS:    defaultBPS,
		probeSize:     probeSize,
		resampleEvery: resampleEvery,
	}
}

// FromHint converts a connection-hint downlink (megabits/sec) to bits/sec.
// Returns 0 for an unusable hint.
func (e *Estimator) FromHint(downlinkMbps float64) int64 {
	if downlinkMbps <= 0 {
		return 0
	}
	return int64(downlinkMbps * 1_000_000)
}

// FromProbe computes bits/sec from a timed download of size bytes. Returns
// 0 for an unusable measurement.
func (e *Estimator) FromProbe(size int, elapsed time.Duration) int64 {
	if size <= 0 || elapsed <= 0 {
		return 0
	}
	return int64(float64(size*8) / elapsed.Seconds())
}

// Estimate resolves the best available estimate: connection hint, then
// probe measurement, then the fixed default.
func (e *Estimator) Estimate(caps models.Capabilities, probeSize int, probeElapsed time.Duration) int64 {
	if bps := e.FromHint(caps.DownlinkMbps); bps > 0 {
		return bps
	}
	if bps := e.FromProbe(probeSize, probeElapsed); bps > 0 {
		return bps
	}
	return e.defaultBPS
}

// Default returns the fallback estimate
func (e *Estimator) Default() int64 {
	return e.defaultBPS
}

// ProbeSize returns the reference-resource size in bytes
func (e *Estimator) ProbeSize() int {
	return e.probeSize
}

// NeedsResample reports whether the sample taken at sampledAt is stale
func (e *Estimator) NeedsResample(sampledAt, now time.Time) bool {
	return sampledAt.IsZero() || now.Sub(sampledAt) >= e.resampleEvery
}

// ProbePayload returns the fixed-size reference resource the client times.
// Content is incompressible-ish rotating bytes so transfer time reflects
// the wire, not gzip.
func (e *Estimator) ProbePayload() []byte {
	payload := make([]byte, e.probeSize)
	for i := range payload {
		payload[i] = byte(i*31 + 17)
	}
	return payload
}

// SelectQuality picks the highest quality label whose bitrate requirement
// fits within the estimate, given the labels available for a source. Labels
// it cannot parse (no leading pixel height) are ignored. Returns the lowest
// available label when nothing fits, and "" for no labels.
func SelectQuality(labels []string, bps int64) string {
	type candidate struct {
		label  string
		height int
	}

	candidates := make([]candidate, 0, len(labels))
	for _, label := range labels {
		if h := parseHeight(label); h > 0 {
			candidates = append(candidates, candidate{label: label, height: h})
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].height > candidates[j].height
	})

	for _, c := range candidates {
		if required, ok := requiredBPS(c.height); ok && bps >= required {
			return c.label
		}
	}

	// Nothing fits: take the lowest quality rather than refusing to play
	return candidates[len(candidates)-1].label
}

// requiredBPS returns the bitrate needed for a pixel height, matching the
// nearest ladder step at or below it.
func requiredBPS(height int) (int64, bool) {
	if bps, ok := qualityBPS[height]; ok {
		return bps, true
	}

	best := 0
	for h := range qualityBPS {
		if h <= height && h > best {
			best = h
		}
	}
	if best == 0 {
		return 0, false
	}
	return qualityBPS[best], true
}

// parseHeight extracts the pixel height from labels like "1080p", "720",
// "480p HD". Returns 0 when the label has no leading number.
func parseHeight(label string) int {
	label = strings.TrimSpace(label)
	i := 0
	for i < len(label) && label[i] >= '0' && label[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0
	}
	h, err := strconv.Atoi(label[:i])
	if err != nil {
		return 0
	}
	return h
}
