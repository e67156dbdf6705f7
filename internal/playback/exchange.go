package playback

import (
	"context"
	"errors"
	"time"

	"github.com/openstreamhub/streamgate/internal/access"
	"github.com/openstreamhub/streamgate/internal/database"
	"github.com/openstreamhub/streamgate/internal/metrics"
	"github.com/openstreamhub/streamgate/internal/source"
	"github.com/openstreamhub/streamgate/internal/tracing"
	"github.com/openstreamhub/streamgate/pkg/models"
)

// Exchange revalidates entitlements server-side and issues short-lived
// playable URLs for one source. Failures map onto stable error codes; the
// underlying cause is logged, never returned to the client.
func (s *Service) Exchange(ctx context.Context, viewerID string, req models.ExchangeRequest) *models.ExchangeResponse {
	span, ctx := tracing.StartSpan(ctx, "playback.exchange")
	defer tracing.FinishSpan(span)
	tracing.SetTag(span, "exchange.source_id", req.SourceID)

	start := time.Now()
	resp := s.exchange(ctx, viewerID, req)

	result := "success"
	if !resp.Success {
		result = resp.Error
	}
	tracing.SetTag(span, "exchange.result", result)
	metrics.RecordExchange(result, time.Since(start).Seconds())
	s.logger.WithViewerID(viewerID).LogExchange(req.SourceID, exchangeMediaID(req), resp.Success, time.Since(start), nil)
	return resp
}

func (s *Service) exchange(ctx context.Context, viewerID string, req models.ExchangeRequest) *models.ExchangeResponse {
	desc := s.exchangeDescriptor(ctx, req)

	if !desc.IsFree() && viewerID == "" {
		return &models.ExchangeResponse{Error: models.ExchangeErrNotAuthenticated}
	}

	if !desc.IsFree() {
		ent := s.loadEntitlements(ctx, viewerID, exchangeMediaID(req))
		if !ent.Loaded {
			return &models.ExchangeResponse{Error: models.ExchangeErrUnavailable}
		}
		decision := access.Evaluate(desc, ent)
		if decision.Locked {
			return &models.ExchangeResponse{Error: models.ExchangeErrNotEntitled}
		}
	}

	raw, err := s.repo.GetSource(ctx, req.SourceID)
	if errors.Is(err, database.ErrNotFound) {
		return &models.ExchangeResponse{Error: models.ExchangeErrSourceNotFound}
	}
	if err != nil {
		s.logger.WithSourceID(req.SourceID).ErrorWithErr("failed to load source for exchange", err)
		return &models.ExchangeResponse{Error: models.ExchangeErrUnavailable}
	}
	if raw == nil {
		return &models.ExchangeResponse{Error: models.ExchangeErrSourceNotFound}
	}

	unlocked := source.Normalize([]models.RawSource{*raw}, models.AccessDescriptor{})
	if len(unlocked) == 0 {
		return &models.ExchangeResponse{Error: models.ExchangeErrSourceNotFound}
	}

	signed, err := s.signer.PresignSource(ctx, raw, unlocked[0])
	if err != nil {
		s.logger.WithSourceID(req.SourceID).ErrorWithErr("failed to sign source urls", err)
		return &models.ExchangeResponse{Error: models.ExchangeErrUnavailable}
	}

	return &models.ExchangeResponse{Success: true, Source: &signed}
}

// exchangeDescriptor rebuilds the access descriptor from the catalog when
// the request names the title, falling back to the descriptor fields the
// request itself carries.
func (s *Service) exchangeDescriptor(ctx context.Context, req models.ExchangeRequest) models.AccessDescriptor {
	mediaType := req.MediaType
	mediaID := req.MediaID
	if req.MovieID != "" {
		mediaType = models.MediaTypeMovie
		mediaID = req.MovieID
	}

	if mediaID != "" {
		if media, err := s.resolveMedia(ctx, mediaType, mediaID, req.EpisodeID); err == nil {
			return media.Access
		}
	}

	return models.AccessDescriptor{
		Type:            req.AccessType,
		ExcludeFromPlan: req.ExcludeFromPlan,
	}
}

func exchangeMediaID(req models.ExchangeRequest) string {
	if req.MovieID != "" {
		return req.MovieID
	}
	return req.MediaID
}

// ApplyExchange binds an exchanged source to the session, unless the
// session has moved to a newer generation in the meantime. Stale results
// are discarded so they cannot clobber the current attachment.
func (s *Service) ApplyExchange(ctx context.Context, sessionID, viewerID string, generation uint64, signed models.Source) (*models.PlaybackSession, error) {
	session, err := s.getOwnedSession(ctx, sessionID, viewerID)
	if err != nil {
		return nil, err
	}
	if session.State == models.SessionStateTornDown {
		return nil, ErrSessionTornDown
	}

	if session.Generation != generation {
		metrics.StaleExchangesDiscarded.Inc()
		s.logger.WithSessionID(sessionID).WithSourceID(signed.ID).Warnf("discarding stale exchange: generation %d, session at %d", generation, session.Generation)
		return nil, ErrStaleExchange
	}

	settings := s.loadSettings(ctx)
	bufferingGoal := settings.BufferingGoalSec
	if bufferingGoal <= 0 {
		bufferingGoal = s.cfg.BufferingGoalSec
	}

	attachment := BuildAttachment(signed, session, bufferingGoal, session.Player.CurrentTime, session.Player.Playing, session.Player.Playing)
	session.SourceID = signed.ID
	session.Attachment = &attachment
	session.State = models.SessionStateReady
	session.UpdatedAt = time.Now()

	if err := s.store.SetSession(ctx, session, s.cfg.SessionTTL); err != nil {
		return nil, err
	}
	return session, nil
}
