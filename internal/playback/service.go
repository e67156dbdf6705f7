package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openstreamhub/streamgate/internal/access"
	"github.com/openstreamhub/streamgate/internal/bandwidth"
	"github.com/openstreamhub/streamgate/internal/config"
	"github.com/openstreamhub/streamgate/internal/database"
	"github.com/openstreamhub/streamgate/internal/logging"
	"github.com/openstreamhub/streamgate/internal/metrics"
	"github.com/openstreamhub/streamgate/internal/platform"
	"github.com/openstreamhub/streamgate/internal/source"
	"github.com/openstreamhub/streamgate/internal/tracing"
	"github.com/openstreamhub/streamgate/pkg/models"
)

// Sentinel errors returned by the session service
var (
	ErrMediaNotFound     = errors.New("media not found")
	ErrNoSources         = errors.New("no playable sources")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionTornDown   = errors.New("session is torn down")
	ErrSourceNotFound    = errors.New("source not found")
	ErrStaleExchange     = errors.New("exchange response is stale")
	ErrPlaybackFailed    = errors.New("playback failed on all engines")
	ErrInvalidTransition = errors.New("invalid session state transition")
)

// AccessDeniedError carries the gate decision for a locked title so the
// transport layer can surface the call to action.
type AccessDeniedError struct {
	Decision access.Decision
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied: action=%s", e.Decision.Action)
}

// Repository is the catalog and entitlement lookup surface the service needs
type Repository interface {
	GetMovie(ctx context.Context, id string) (*models.Movie, error)
	GetSeries(ctx context.Context, id string) (*models.Series, error)
	GetEpisode(ctx context.Context, id string) (*models.Episode, error)
	ListSources(ctx context.Context, mediaID string) ([]models.RawSource, error)
	GetSource(ctx context.Context, id string) (*models.RawSource, error)
	GetActiveSubscription(ctx context.Context, viewerID string) (*models.Subscription, error)
	GetActiveRental(ctx context.Context, viewerID, mediaID string) (*models.Rental, error)
	GetSettings(ctx context.Context) (*models.SiteSettings, error)
}

// Resumer answers where a viewer left off on a title
type Resumer interface {
	Resume(ctx context.Context, viewerID, mediaID, episodeID string) (float64, error)
}

// SessionStore persists sessions, cached entitlements, and cached settings
type SessionStore interface {
	SetSession(ctx context.Context, session *models.PlaybackSession, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (*models.PlaybackSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
	GetEntitlements(ctx context.Context, viewerID, mediaID string) (models.Entitlements, bool, error)
	SetEntitlements(ctx context.Context, viewerID, mediaID string, ent models.Entitlements, ttl time.Duration) error
	GetSettings(ctx context.Context) (*models.SiteSettings, error)
	SetSettings(ctx context.Context, settings *models.SiteSettings, ttl time.Duration) error
}

// Signer issues short-lived playable URLs for protected sources
type Signer interface {
	PresignSource(ctx context.Context, raw *models.RawSource, src models.Source) (models.Source, error)
}

// Publisher emits playback lifecycle events to the message queue
type Publisher interface {
	PublishEvent(ctx context.Context, event *models.PlaybackEvent) error
}

const (
	entitlementsTTL = 5 * time.Minute
	settingsTTL     = 5 * time.Minute
)

// Service drives playback sessions end to end: source normalization, access
// gating, engine attachment, source switching, and teardown.
type Service struct {
	repo      Repository
	store     SessionStore
	signer    Signer
	publisher Publisher
	resumer   Resumer
	estimator *bandwidth.Estimator
	cfg       config.PlaybackConfig
	logger    *logging.Logger
}

// NewService creates a playback service
func NewService(repo Repository, store SessionStore, signer Signer, publisher Publisher, resumer Resumer, estimator *bandwidth.Estimator, cfg config.PlaybackConfig, logger *logging.Logger) *Service {
	return &Service{
		repo:      repo,
		store:     store,
		signer:    signer,
		publisher: publisher,
		resumer:   resumer,
		estimator: estimator,
		cfg:       cfg,
		logger:    logger,
	}
}

// StartRequest describes a new playback session
type StartRequest struct {
	ViewerID     string
	MediaID      string
	MediaType    string
	EpisodeID    string
	Capabilities models.Capabilities
	ProbeBytes   int
	ProbeElapsed time.Duration
	Autoplay     *bool
}

// resolvedMedia is the playable unit a session targets after catalog lookup
type resolvedMedia struct {
	Access    models.AccessDescriptor
	Duration  float64
	ContentID string
}

func (s *Service) resolveMedia(ctx context.Context, mediaType, mediaID, episodeID string) (*resolvedMedia, error) {
	switch mediaType {
	case models.MediaTypeMovie:
		movie, err := s.repo.GetMovie(ctx, mediaID)
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrMediaNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load movie: %w", err)
		}
		if movie == nil {
			return nil, ErrMediaNotFound
		}
		return &resolvedMedia{Access: movie.Access, Duration: movie.Duration, ContentID: movie.ID}, nil

	case models.MediaTypeSeries:
		series, err := s.repo.GetSeries(ctx, mediaID)
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrMediaNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load series: %w", err)
		}
		if series == nil {
			return nil, ErrMediaNotFound
		}
		episode, err := s.repo.GetEpisode(ctx, episodeID)
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrMediaNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load episode: %w", err)
		}
		if episode == nil || episode.SeriesID != series.ID {
			return nil, ErrMediaNotFound
		}
		return &resolvedMedia{
			Access:    episode.EffectiveAccess(series.Access),
			Duration:  episode.Duration,
			ContentID: episode.ID,
		}, nil

	default:
		return nil, ErrMediaNotFound
	}
}

// loadEntitlements resolves the viewer's entitlements for one title,
// cache first. A lookup failure degrades to unloaded entitlements so the
// gate can apply its pending policy instead of hard-locking the title.
func (s *Service) loadEntitlements(ctx context.Context, viewerID, mediaID string) models.Entitlements {
	if viewerID == "" {
		return models.Entitlements{Loaded: true}
	}

	ent, hit, err := s.store.GetEntitlements(ctx, viewerID, mediaID)
	if err == nil && hit {
		metrics.RecordCacheAccess("entitlements", true)
		return ent
	}
	metrics.RecordCacheAccess("entitlements", false)

	sub, err := s.repo.GetActiveSubscription(ctx, viewerID)
	if err != nil {
		s.logger.WithViewerID(viewerID).ErrorWithErr("failed to load subscription", err)
		return models.Entitlements{}
	}
	rental, err := s.repo.GetActiveRental(ctx, viewerID, mediaID)
	if err != nil {
		s.logger.WithViewerID(viewerID).ErrorWithErr("failed to load rental", err)
		return models.Entitlements{}
	}

	ent = models.ResolveEntitlements(sub, rental, time.Now())
	if err := s.store.SetEntitlements(ctx, viewerID, mediaID, ent, entitlementsTTL); err != nil {
		s.logger.WithViewerID(viewerID).ErrorWithErr("failed to cache entitlements", err)
	}
	return ent
}

// loadSettings returns the site settings, cache first, falling back to
// built-in defaults when nothing is configured.
func (s *Service) loadSettings(ctx context.Context) *models.SiteSettings {
	if settings, err := s.store.GetSettings(ctx); err == nil && settings != nil {
		metrics.RecordCacheAccess("settings", true)
		return settings
	}
	metrics.RecordCacheAccess("settings", false)

	settings, err := s.repo.GetSettings(ctx)
	if err != nil || settings == nil {
		return &models.SiteSettings{
			BufferingGoalSec: s.cfg.BufferingGoalSec,
			Autoplay:         true,
		}
	}
	if err := s.store.SetSettings(ctx, settings, settingsTTL); err != nil {
		s.logger.ErrorWithErr("failed to cache settings", err)
	}
	return settings
}

// StartSession creates a session for one title: it loads and normalizes the
// title's sources, evaluates the access gate, estimates startup bandwidth,
// and attaches an engine to the default source.
func (s *Service) StartSession(ctx context.Context, req StartRequest) (*models.PlaybackSession, error) {
	span, ctx := tracing.StartSpan(ctx, "playback.start_session")
	defer tracing.FinishSpan(span)

	session, err := s.startSession(ctx, req)
	if err != nil {
		tracing.LogError(span, err)
		return nil, err
	}
	tracing.TagSession(span, session.ID, session.SourceID, session.Generation)
	return session, nil
}

func (s *Service) startSession(ctx context.Context, req StartRequest) (*models.PlaybackSession, error) {
	media, err := s.resolveMedia(ctx, req.MediaType, req.MediaID, req.EpisodeID)
	if err != nil {
		return nil, err
	}

	raws, err := s.repo.ListSources(ctx, media.ContentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	sources := source.Normalize(raws, media.Access)
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	ent := s.loadEntitlements(ctx, req.ViewerID, req.MediaID)
	decision := access.EvaluateForViewer(media.Access, req.ViewerID, ent)
	metrics.RecordGateDecision(string(media.Access.Type), decision.Locked)
	if decision.Locked {
		return nil, &AccessDeniedError{Decision: decision}
	}

	caps := platform.Snapshot(req.Capabilities)
	bps := s.estimator.Estimate(caps, req.ProbeBytes, req.ProbeElapsed)
	metrics.RecordBandwidthEstimate(estimateMethod(caps, req.ProbeBytes, req.ProbeElapsed), bps)

	settings := s.loadSettings(ctx)
	autoplay := settings.Autoplay
	if req.Autoplay != nil {
		autoplay = *req.Autoplay
	}

	var resumePos float64
	if req.ViewerID != "" {
		pos, err := s.resumer.Resume(ctx, req.ViewerID, req.MediaID, req.EpisodeID)
		if err != nil {
			s.logger.WithViewerID(req.ViewerID).ErrorWithErr("failed to load resume position", err)
		} else {
			resumePos = pos
		}
	}

	now := time.Now()
	session := &models.PlaybackSession{
		ID:           uuid.New().String(),
		ViewerID:     req.ViewerID,
		MediaID:      req.MediaID,
		MediaType:    req.MediaType,
		EpisodeID:    req.EpisodeID,
		State:        models.SessionStateLoading,
		Generation:   1,
		Sources:      sources,
		Capabilities: caps,
		BandwidthBPS: bps,
		SampledAt:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
		Player: models.PlayerState{
			CurrentTime:  resumePos,
			Duration:     media.Duration,
			Volume:       1,
			AutoQuality:  true,
			PlaybackRate: 1,
		},
	}

	// While entitlements are pending a protected title stays in loading:
	// no URLs are released until the exchange revalidates server-side.
	if media.Access.IsFree() || ent.Loaded {
		def := source.DefaultSource(sources)
		if err := s.attach(ctx, session, media, def, resumePos, false, autoplay, settings); err != nil {
			return nil, err
		}
	}

	if err := s.store.SetSession(ctx, session, s.cfg.SessionTTL); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	metrics.RecordSessionStarted(session.MediaType, streamKindFor(session))
	s.publish(ctx, &models.PlaybackEvent{
		Type:      models.EventSessionStarted,
		SessionID: session.ID,
		ViewerID:  session.ViewerID,
		MediaID:   session.MediaID,
		MediaType: session.MediaType,
		EpisodeID: session.EpisodeID,
		SourceID:  session.SourceID,
		Timestamp: now,
	})
	s.logger.WithSessionID(session.ID).LogSessionEvent(session.ID, "started", string(session.State), map[string]interface{}{
		"source_id": session.SourceID,
		"engine":    engineFor(session),
	})

	return session, nil
}

// attach binds a validated source to the session. For protected titles the
// playable URLs are re-issued through the signer before the engine is built.
func (s *Service) attach(ctx context.Context, session *models.PlaybackSession, media *resolvedMedia, src *models.Source, resumePos float64, resumePlaying, autoplay bool, settings *models.SiteSettings) error {
	if src == nil {
		return ErrSourceNotFound
	}

	playable := *src
	if !media.Access.IsFree() {
		raw, err := s.repo.GetSource(ctx, src.ID)
		if errors.Is(err, database.ErrNotFound) {
			return ErrSourceNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load source: %w", err)
		}
		if raw == nil {
			return ErrSourceNotFound
		}
		unlocked := source.Normalize([]models.RawSource{*raw}, models.AccessDescriptor{})
		if len(unlocked) == 0 {
			return ErrSourceNotFound
		}
		playable, err = s.signer.PresignSource(ctx, raw, unlocked[0])
		if err != nil {
			return fmt.Errorf("failed to sign source urls: %w", err)
		}
	}

	bufferingGoal := settings.BufferingGoalSec
	if bufferingGoal <= 0 {
		bufferingGoal = s.cfg.BufferingGoalSec
	}

	attachment := BuildAttachment(playable, session, bufferingGoal, resumePos, resumePlaying, autoplay)
	session.SourceID = src.ID
	session.Attachment = &attachment
	session.State = models.SessionStateReady
	session.UpdatedAt = time.Now()
	return nil
}

// SelectSource switches the session to another server. The running engine is
// released in full, the generation advances so in-flight URL exchanges for
// the old source are discarded, and playback resumes at the same position
// and play state.
func (s *Service) SelectSource(ctx context.Context, sessionID, viewerID, sourceID string) (*models.PlaybackSession, error) {
	session, err := s.getOwnedSession(ctx, sessionID, viewerID)
	if err != nil {
		return nil, err
	}
	if session.State == models.SessionStateTornDown {
		return nil, ErrSessionTornDown
	}

	next := source.FindByID(session.Sources, sourceID)
	if next == nil {
		return nil, ErrSourceNotFound
	}

	media, err := s.resolveMedia(ctx, session.MediaType, session.MediaID, session.EpisodeID)
	if err != nil {
		return nil, err
	}

	resumePos := session.Player.CurrentTime
	resumePlaying := session.Player.Playing

	// Release the old engine before the new one is attached. Any exchange
	// still in flight for the previous generation lands stale.
	session.State = models.SessionStateSwitching
	session.Attachment = nil
	session.Generation++
	session.HLSFallback = false

	settings := s.loadSettings(ctx)
	if err := s.attach(ctx, session, media, next, resumePos, resumePlaying, resumePlaying, settings); err != nil {
		return nil, err
	}

	if err := s.store.SetSession(ctx, session, s.cfg.SessionTTL); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	metrics.SourceSwitchesTotal.Inc()
	s.publish(ctx, &models.PlaybackEvent{
		Type:      models.EventSourceSwitched,
		SessionID: session.ID,
		ViewerID:  session.ViewerID,
		MediaID:   session.MediaID,
		MediaType: session.MediaType,
		EpisodeID: session.EpisodeID,
		SourceID:  session.SourceID,
		Position:  resumePos,
		Timestamp: time.Now(),
	})
	s.logger.WithSessionID(session.ID).WithSourceID(sourceID).LogSessionEvent(session.ID, "source_switched", string(session.State), map[string]interface{}{
		"generation": session.Generation,
		"resume_pos": resumePos,
	})

	return session, nil
}

// UpdatePlayerState syncs the client player state into the session and
// advances the playing/paused machine state.
func (s *Service) UpdatePlayerState(ctx context.Context, sessionID, viewerID string, state models.PlayerState) (*models.PlaybackSession, error) {
	session, err := s.getOwnedSession(ctx, sessionID, viewerID)
	if err != nil {
		return nil, err
	}
	if session.State == models.SessionStateTornDown {
		return nil, ErrSessionTornDown
	}

	next := session.State
	switch session.State {
	case models.SessionStateReady, models.SessionStatePlaying, models.SessionStatePaused:
		if state.Playing {
			next = models.SessionStatePlaying
		} else {
			next = models.SessionStatePaused
		}
	case models.SessionStateLoading, models.SessionStateSwitching:
		// Engine not attached yet, keep the lifecycle state and just
		// record the control values.
	default:
		return nil, ErrInvalidTransition
	}

	session.Player = state
	session.State = next
	session.UpdatedAt = time.Now()

	if err := s.store.SetSession(ctx, session, s.cfg.SessionTTL); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	return session, nil
}

// ReportBandwidth refreshes the session's throughput estimate from a
// re-reported connection hint or probe measurement. Reports arriving before
// the resample window elapses leave the current estimate in place.
func (s *Service) ReportBandwidth(ctx context.Context, sessionID, viewerID string, hintMbps float64, probeBytes int, probeElapsed time.Duration) (*models.PlaybackSession, error) {
	session, err := s.getOwnedSession(ctx, sessionID, viewerID)
	if err != nil {
		return nil, err
	}
	if session.State == models.SessionStateTornDown {
		return nil, ErrSessionTornDown
	}

	now := time.Now()
	if !s.estimator.NeedsResample(session.SampledAt, now) {
		return session, nil
	}

	if hintMbps > 0 {
		session.Capabilities.DownlinkMbps = hintMbps
	}
	bps := s.estimator.Estimate(session.Capabilities, probeBytes, probeElapsed)
	metrics.RecordBandwidthEstimate(estimateMethod(session.Capabilities, probeBytes, probeElapsed), bps)

	session.BandwidthBPS = bps
	session.SampledAt = now
	session.UpdatedAt = now
	if err := s.store.SetSession(ctx, session, s.cfg.SessionTTL); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	return session, nil
}

// ReportAdaptiveFailure handles a fatal adaptive-engine error. For HLS
// sources the session falls back to the platform's native HLS playback once;
// a second failure is terminal.
func (s *Service) ReportAdaptiveFailure(ctx context.Context, sessionID, viewerID string) (*models.PlaybackSession, error) {
	session, err := s.getOwnedSession(ctx, sessionID, viewerID)
	if err != nil {
		return nil, err
	}
	if session.State == models.SessionStateTornDown {
		return nil, ErrSessionTornDown
	}

	current := source.FindByID(session.Sources, session.SourceID)
	if current == nil || current.Kind != models.StreamKindHLS || session.HLSFallback {
		return nil, ErrPlaybackFailed
	}
	if session.Attachment == nil {
		return nil, ErrPlaybackFailed
	}

	session.HLSFallback = true
	session.Generation++
	session.Attachment.Engine = models.EngineKindNativeHLS
	session.Attachment.ResumePosition = session.Player.CurrentTime
	session.Attachment.ResumePlaying = session.Player.Playing
	session.State = models.SessionStateReady
	session.UpdatedAt = time.Now()

	if err := s.store.SetSession(ctx, session, s.cfg.SessionTTL); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	metrics.HLSFallbacksTotal.Inc()
	s.logger.WithSessionID(session.ID).Warn("adaptive engine failed, falling back to native hls")
	return session, nil
}

// SetQuality pins a native file session to one rendition. Playback resumes
// at the current position and play state on the new URL.
func (s *Service) SetQuality(ctx context.Context, sessionID, viewerID, label string) (*models.PlaybackSession, error) {
	session, err := s.getOwnedSession(ctx, sessionID, viewerID)
	if err != nil {
		return nil, err
	}
	if session.State == models.SessionStateTornDown {
		return nil, ErrSessionTornDown
	}

	if !SwitchQuality(session, label) {
		return nil, ErrSourceNotFound
	}
	session.UpdatedAt = time.Now()

	if err := s.store.SetSession(ctx, session, s.cfg.SessionTTL); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	return session, nil
}

// GetSession returns the session when it exists and belongs to the viewer
func (s *Service) GetSession(ctx context.Context, sessionID, viewerID string) (*models.PlaybackSession, error) {
	return s.getOwnedSession(ctx, sessionID, viewerID)
}

// Teardown releases the session. The final player position is reported back
// so the caller can persist watch progress before the record disappears.
func (s *Service) Teardown(ctx context.Context, sessionID, viewerID string) (*models.PlaybackSession, error) {
	session, err := s.getOwnedSession(ctx, sessionID, viewerID)
	if err != nil {
		return nil, err
	}

	session.State = models.SessionStateTornDown
	session.Attachment = nil
	session.UpdatedAt = time.Now()

	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("failed to delete session: %w", err)
	}

	metrics.RecordSessionTornDown()
	s.publish(ctx, &models.PlaybackEvent{
		Type:      models.EventSessionTornDown,
		SessionID: session.ID,
		ViewerID:  session.ViewerID,
		MediaID:   session.MediaID,
		MediaType: session.MediaType,
		EpisodeID: session.EpisodeID,
		SourceID:  session.SourceID,
		Position:  session.Player.CurrentTime,
		Timestamp: time.Now(),
	})
	s.logger.WithSessionID(session.ID).LogSessionEvent(session.ID, "torn_down", string(session.State), nil)

	return session, nil
}

func (s *Service) getOwnedSession(ctx context.Context, sessionID, viewerID string) (*models.PlaybackSession, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.ViewerID != viewerID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *Service) publish(ctx context.Context, event *models.PlaybackEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		s.logger.WithSessionID(event.SessionID).ErrorWithErr("failed to publish playback event", err)
	}
}

func engineFor(session *models.PlaybackSession) string {
	if session.Attachment == nil {
		return ""
	}
	return string(session.Attachment.Engine)
}

func streamKindFor(session *models.PlaybackSession) string {
	if src := source.FindByID(session.Sources, session.SourceID); src != nil {
		return string(src.Kind)
	}
	return ""
}

func estimateMethod(caps models.Capabilities, probeBytes int, probeElapsed time.Duration) string {
	if caps.DownlinkMbps > 0 {
		return "hint"
	}
	if probeBytes > 0 && probeElapsed > 0 {
		return "probe"
	}
	return "default"
}
