package playback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/openstreamhub/streamgate/internal/access"
	"github.com/openstreamhub/streamgate/internal/bandwidth"
	"github.com/openstreamhub/streamgate/internal/config"
	"github.com/openstreamhub/streamgate/internal/database"
	"github.com/openstreamhub/streamgate/internal/logging"
	"github.com/openstreamhub/streamgate/pkg/models"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetMovie(ctx context.Context, id string) (*models.Movie, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Movie), args.Error(1)
}

func (m *MockRepository) GetSeries(ctx context.Context, id string) (*models.Series, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Series), args.Error(1)
}

func (m *MockRepository) GetEpisode(ctx context.Context, id string) (*models.Episode, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Episode), args.Error(1)
}

func (m *MockRepository) ListSources(ctx context.Context, mediaID string) ([]models.RawSource, error) {
	args := m.Called(ctx, mediaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RawSource), args.Error(1)
}

func (m *MockRepository) GetSource(ctx context.Context, id string) (*models.RawSource, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RawSource), args.Error(1)
}

func (m *MockRepository) GetActiveSubscription(ctx context.Context, viewerID string) (*models.Subscription, error) {
	args := m.Called(ctx, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockRepository) GetActiveRental(ctx context.Context, viewerID, mediaID string) (*models.Rental, error) {
	args := m.Called(ctx, viewerID, mediaID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rental), args.Error(1)
}

func (m *MockRepository) GetSettings(ctx context.Context) (*models.SiteSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SiteSettings), args.Error(1)
}

// MockStore is a mock implementation of SessionStore
type MockStore struct {
	mock.Mock
}

func (m *MockStore) SetSession(ctx context.Context, session *models.PlaybackSession, ttl time.Duration) error {
	args := m.Called(ctx, session, ttl)
	return args.Error(0)
}

func (m *MockStore) GetSession(ctx context.Context, sessionID string) (*models.PlaybackSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlaybackSession), args.Error(1)
}

func (m *MockStore) DeleteSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *MockStore) GetEntitlements(ctx context.Context, viewerID, mediaID string) (models.Entitlements, bool, error) {
	args := m.Called(ctx, viewerID, mediaID)
	return args.Get(0).(models.Entitlements), args.Bool(1), args.Error(2)
}

func (m *MockStore) SetEntitlements(ctx context.Context, viewerID, mediaID string, ent models.Entitlements, ttl time.Duration) error {
	args := m.Called(ctx, viewerID, mediaID, ent, ttl)
	return args.Error(0)
}

func (m *MockStore) GetSettings(ctx context.Context) (*models.SiteSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SiteSettings), args.Error(1)
}

func (m *MockStore) SetSettings(ctx context.Context, settings *models.SiteSettings, ttl time.Duration) error {
	args := m.Called(ctx, settings, ttl)
	return args.Error(0)
}

// MockSigner is a mock implementation of Signer
type MockSigner struct {
	mock.Mock
}

func (m *MockSigner) PresignSource(ctx context.Context, raw *models.RawSource, src models.Source) (models.Source, error) {
	args := m.Called(ctx, raw, src)
	return args.Get(0).(models.Source), args.Error(1)
}

// MockPublisher is a mock implementation of Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishEvent(ctx context.Context, event *models.PlaybackEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockResumer is a mock implementation of Resumer
type MockResumer struct {
	mock.Mock
}

func (m *MockResumer) Resume(ctx context.Context, viewerID, mediaID, episodeID string) (float64, error) {
	args := m.Called(ctx, viewerID, mediaID, episodeID)
	return args.Get(0).(float64), args.Error(1)
}

func newTestService(repo *MockRepository, store *MockStore, signer *MockSigner, publisher *MockPublisher) *Service {
	resumer := new(MockResumer)
	resumer.On("Resume", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(0.0, nil)
	return newTestServiceWithResumer(repo, store, signer, publisher, resumer)
}

func newTestServiceWithResumer(repo *MockRepository, store *MockStore, signer *MockSigner, publisher *MockPublisher, resumer *MockResumer) *Service {
	logger, _ := logging.NewConsoleLogger()
	estimator := bandwidth.NewEstimator(5_000_000, 512*1024, 30*time.Second)
	cfg := config.PlaybackConfig{
		SessionTTL:        4 * time.Hour,
		BufferingGoalSec:  30,
		CompleteThreshold: 30 * time.Second,
	}
	return NewService(repo, store, signer, publisher, resumer, estimator, cfg, logger)
}

func freeMovie() *models.Movie {
	return &models.Movie{
		ID:       "movie-1",
		Title:    "Free Movie",
		Duration: 5400,
		Access:   models.AccessDescriptor{Type: models.AccessTypeFree},
	}
}

func fileSources() []models.RawSource {
	return []models.RawSource{
		{
			ID:   "src-1",
			Name: "Server A",
			Type: "mp4",
			URL:  "https://cdn.example.com/movie-1/720.mp4",
			URLs: models.QualityURLs{
				"480p": "https://cdn.example.com/movie-1/480.mp4",
				"720p": "https://cdn.example.com/movie-1/720.mp4",
			},
			IsDefault: true,
		},
		{
			ID:   "src-2",
			Name: "Server B",
			Type: "hls",
			URL:  "https://cdn.example.com/movie-1/master.m3u8",
		},
	}
}

func TestStartSessionFreeMovie(t *testing.T) {
	repo := new(MockRepository)
	store := new(MockStore)
	signer := new(MockSigner)
	publisher := new(MockPublisher)
	svc := newTestService(repo, store, signer, publisher)

	repo.On("GetMovie", mock.Anything, "movie-1").Return(freeMovie(), nil)
	repo.On("ListSources", mock.Anything, "movie-1").Return(fileSources(), nil)
	repo.On("GetSettings", mock.Anything).Return(nil, nil)
	store.On("GetSettings", mock.Anything).Return(nil, nil)
	store.On("SetSession", mock.Anything, mock.Anything, 4*time.Hour).Return(nil)
	publisher.On("PublishEvent", mock.Anything, mock.Anything).Return(nil)

	session, err := svc.StartSession(context.Background(), StartRequest{
		MediaID:   "movie-1",
		MediaType: models.MediaTypeMovie,
	})

	assert.NoError(t, err)
	assert.Equal(t, models.SessionStateReady, session.State)
	assert.Equal(t, uint64(1), session.Generation)
	assert.Equal(t, "src-1", session.SourceID)
	assert.NotNil(t, session.Attachment)
	assert.Equal(t, models.EngineKindNative, session.Attachment.Engine)
	assert.Len(t, session.Sources, 2)

	publisher.AssertCalled(t, "PublishEvent", mock.Anything, mock.MatchedBy(func(e *models.PlaybackEvent) bool {
		return e.Type == models.EventSessionStarted && e.MediaID == "movie-1"
	}))
	signer.AssertNotCalled(t, "PresignSource", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartSessionAnonymousLockedVIP(t *testing.T) {
	repo := new(MockRepository)
	store := new(MockStore)
	svc := newTestService(repo, store, new(MockSigner), new(MockPublisher))

	movie := freeMovie()
	movie.Access = models.AccessDescriptor{Type: models.AccessTypeVIP}
	repo.On("GetMovie", mock.Anything, "movie-1").Return(movie, nil)
	repo.On("ListSources", mock.Anything, "movie-1").Return(fileSources(), nil)

	_, err := svc.StartSession(context.Background(), StartRequest{
		MediaID:   "movie-1",
		MediaType: models.MediaTypeMovie,
	})

	var denied *AccessDeniedError
	assert.ErrorAs(t, err, &denied)
	assert.True(t, denied.Decision.Locked)
	assert.Equal(t, access.CTALogin, denied.Decision.Action)
}

func TestStartSessionSubscriberGetsSignedURLs(t *testing.T) {
	repo := new(MockRepository)
	store := new(MockStore)
	signer := new(MockSigner)
	publisher := new(MockPublisher)
	svc := newTestService(repo, store, signer, publisher)

	movie := freeMovie()
	movie.Access = models.AccessDescriptor{Type: models.AccessTypeVIP}
	raws := fileSources()

	repo.On("GetMovie", mock.Anything, "movie-1").Return(movie, nil)
	repo.On("ListSources", mock.Anything, "movie-1").Return(raws, nil)
	repo.On("GetSource", mock.Anything, "src-1").Return(&raws[0], nil)
	repo.On("GetSettings", mock.Anything).Return(nil, nil)
	store.On("GetEntitlements", mock.Anything, "viewer-1", "movie-1").
		Return(models.Entitlements{Loaded: true, HasSubscription: true}, true, nil)
	store.On("GetSettings", mock.Anything).Return(nil, nil)
	store.On("SetSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	publisher.On("PublishEvent", mock.Anything, mock.Anything).Return(nil)

	signed := models.Source{
		ID:    "src-1",
		Label: "Server A",
		Kind:  models.StreamKindFile,
		URL:   "https://minio.example.com/videos/720.mp4?X-Amz-Signature=abc",
	}
	signer.On("PresignSource", mock.Anything, mock.Anything, mock.Anything).Return(signed, nil)

	session, err := svc.StartSession(context.Background(), StartRequest{
		ViewerID:  "viewer-1",
		MediaID:   "movie-1",
		MediaType: models.MediaTypeMovie,
	})

	assert.NoError(t, err)
	assert.Equal(t, models.SessionStateReady, session.State)
	assert.Contains(t, session.Attachment.URL, "X-Amz-Signature")

	// The catalog listing the client sees must not carry raw URLs
	for _, src := range session.Sources {
		assert.Empty(t, src.URL)
		assert.Empty(t, src.QualityURLs)
	}
}

func TestStartSessionPendingEntitlementsStaysLoading(t *testing.T) {
	repo := new(MockRepository)
	store := new(MockStore)
	signer := new(MockSigner)
	publisher := new(MockPublisher)
	svc := newTestService(repo, store, signer, publisher)

	movie := freeMovie()
	movie.Access = models.AccessDescriptor{Type: models.AccessTypeVIP}

	repo.On("GetMovie", mock.Anything, "movie-1").Return(movie, nil)
	repo.On("ListSources", mock.Anything, "movie-1").Return(fileSources(), nil)
	repo.On("GetSettings", mock.Anything).Return(nil, nil)
	// Entitlement lookup fails: gate must not lock, session must not attach
	store.On("GetEntitlements", mock.Anything, "viewer-1", "movie-1").
		Return(models.Entitlements{}, false, nil)
	repo.On("GetActiveSubscription", mock.Anything, "viewer-1").Return(nil, errors.New("db down"))
	store.On("GetSettings", mock.Anything).Return(nil, nil)
	store.On("SetSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	publisher.On("PublishEvent", mock.Anything, mock.Anything).Return(nil)

	session, err := svc.StartSession(context.Background(), StartRequest{
		ViewerID:  "viewer-1",
		MediaID:   "movie-1",
		MediaType: models.MediaTypeMovie,
	})

	assert.NoError(t, err)
	assert.Equal(t, models.SessionStateLoading, session.State)
	assert.Nil(t, session.Attachment)
	signer.AssertNotCalled(t, "PresignSource", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartSessionNoSources(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockStore), new(MockSigner), new(MockPublisher))

	repo.On("GetMovie", mock.Anything, "movie-1").Return(freeMovie(), nil)
	repo.On("ListSources", mock.Anything, "movie-1").Return([]models.RawSource{}, nil)

	_, err := svc.StartSession(context.Background(), StartRequest{
		MediaID:   "movie-1",
		MediaType: models.MediaTypeMovie,
	})
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestStartSessionEpisodeAccessOverridesSeries(t *testing.T) {
	repo := new(MockRepository)
	store := new(MockStore)
	publisher := new(MockPublisher)
	svc := newTestService(repo, store, new(MockSigner), publisher)
	publisher.On("PublishEvent", mock.Anything, mock.Anything).Return(nil)

	series := &models.Series{
		ID:     "series-1",
		Title:  "Locked Series",
		Access: models.AccessDescriptor{Type: models.AccessTypeVIP},
	}
	// The episode itself is free, so the series-level lock does not apply
	episode := &models.Episode{
		ID:       "ep-1",
		SeriesID: "series-1",
		Duration: 1800,
		Access:   &models.AccessDescriptor{Type: models.AccessTypeFree},
	}

	repo.On("GetSeries", mock.Anything, "series-1").Return(series, nil)
	repo.On("GetEpisode", mock.Anything, "ep-1").Return(episode, nil)
	repo.On("ListSources", mock.Anything, "ep-1").Return(fileSources(), nil)
	repo.On("GetSettings", mock.Anything).Return(nil, nil)
	store.On("GetSettings", mock.Anything).Return(nil, nil)
	store.On("SetSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	session, err := svc.StartSession(context.Background(), StartRequest{
		MediaID:   "series-1",
		MediaType: models.MediaTypeSeries,
		EpisodeID: "ep-1",
	})

	assert.NoError(t, err)
	assert.Equal(t, models.SessionStateReady, session.State)
	assert.NotNil(t, session.Attachment)
}

func readySession() *models.PlaybackSession {
	sources := []models.Source{
		{
			ID:    "src-1",
			Label: "Server A",
			Kind:  models.StreamKindFile,
			URL:   "https://cdn.example.com/movie-1/720.mp4",
			QualityURLs: models.QualityURLs{
				"480p": "https://cdn.example.com/movie-1/480.mp4",
				"720p": "https://cdn.example.com/movie-1/720.mp4",
			},
			IsDefault: true,
		},
		{
			ID:    "src-2",
			Label: "Server B",
			Kind:  models.StreamKindHLS,
			URL:   "https://cdn.example.com/movie-1/master.m3u8",
		},
	}
	return &models.PlaybackSession{
		ID:         "sess-1",
		ViewerID:   "viewer-1",
		MediaID:    "movie-1",
		MediaType:  models.MediaTypeMovie,
		State:      models.SessionStatePlaying,
		Generation: 1,
		SourceID:   "src-1",
		Sources:    sources,
		Attachment: &models.Attachment{
			Engine: models.EngineKindNative,
			URL:    sources[0].URL,
			QualityURLs: models.QualityURLs{
				"480p": "https://cdn.example.com/movie-1/480.mp4",
				"720p": "https://cdn.example.com/movie-1/720.mp4",
			},
		},
		Player: models.PlayerState{
			CurrentTime:  42.5,
			Duration:     5400,
			Playing:      true,
			Volume:       1,
			AutoQuality:  true,
			PlaybackRate: 1,
		},
		BandwidthBPS: 5_000_000,
	}
}

func TestSelectSourceRestoresPositionAndAdvancesGeneration(t *testing.T) {
	repo := new(MockRepository)
	store := new(MockStore)
	publisher := new(MockPublisher)
	svc := newTestService(repo, store, new(MockSigner), publisher)

	session := readySession()
	store.On("GetSession", mock.Anything, "sess-1").Return(session, nil)
	repo.On("GetMovie", mock.Anything, "movie-1").Return(freeMovie(), nil)
	repo.On("GetSettings", mock.Anything).Return(nil, nil)
	store.On("GetSettings", mock.Anything).Return(nil, nil)
	store.On("SetSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	publisher.On("PublishEvent", mock.Anything, mock.Anything).Return(nil)

	updated, err := svc.SelectSource(context.Background(), "sess-1", "viewer-1", "src-2")

	assert.NoError(t, err)
	assert.Equal(t, uint64(2), updated.Generation)
	assert.Equal(t, "src-2", updated.SourceID)
	assert.Equal(t, models.SessionStateReady, updated.State)
	assert.Equal(t, models.EngineKindAdaptive, updated.Attachment.Engine)
	assert.Equal(t, 42.5, updated.Attachment.ResumePosition)
	assert.True(t, updated.Attachment.ResumePlaying)

	publisher.AssertCalled(t, "PublishEvent", mock.Anything, mock.MatchedBy(func(e *models.PlaybackEvent) bool {
		return e.Type == models.EventSourceSwitched && e.SourceID == "src-2"
	}))
}

func TestSelectSourceUnknownSource(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(new(MockRepository), store, new(MockSigner), new(MockPublisher))

	store.On("GetSession", mock.Anything, "sess-1").Return(readySession(), nil)

	_, err := svc.SelectSource(context.Background(), "sess-1", "viewer-1", "src-999")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestUpdatePlayerStateTransitions(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(new(MockRepository), store, new(MockSigner), new(MockPublisher))

	session := readySession()
	store.On("GetSession", mock.Anything, "sess-1").Return(session, nil)
	store.On("SetSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	state := session.Player
	state.Playing = false
	state.CurrentTime = 60

	updated, err := svc.UpdatePlayerState(context.Background(), "sess-1", "viewer-1", state)
	assert.NoError(t, err)
	assert.Equal(t, models.SessionStatePaused, updated.State)
	assert.Equal(t, 60.0, updated.Player.CurrentTime)
}

func TestUpdatePlayerStateWrongViewer(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(new(MockRepository), store, new(MockSigner), new(MockPublisher))

	store.On("GetSession", mock.Anything, "sess-1").Return(readySession(), nil)

	_, err := svc.UpdatePlayerState(context.Background(), "sess-1", "someone-else", models.PlayerState{})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSetQualityKeepsPositionAndPlayState(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(new(MockRepository), store, new(MockSigner), new(MockPublisher))

	session := readySession()
	store.On("GetSession", mock.Anything, "sess-1").Return(session, nil)
	store.On("SetSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	updated, err := svc.SetQuality(context.Background(), "sess-1", "viewer-1", "480p")

	assert.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/movie-1/480.mp4", updated.Attachment.URL)
	assert.Equal(t, 42.5, updated.Attachment.ResumePosition)
	assert.True(t, updated.Attachment.ResumePlaying)
	assert.Equal(t, "480p", updated.Player.Quality)
	assert.False(t, updated.Player.AutoQuality)
	// A quality change within one source is not a source switch
	assert.Equal(t, uint64(1), updated.Generation)
}

func TestReportAdaptiveFailureFallsBackOnce(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(new(MockRepository), store, new(MockSigner), new(MockPublisher))

	session := readySession()
	session.SourceID = "src-2"
	session.Attachment = &models.Attachment{
		Engine: models.EngineKindAdaptive,
		URL:    "https://cdn.example.com/movie-1/master.m3u8",
	}
	store.On("GetSession", mock.Anything, "sess-1").Return(session, nil)
	store.On("SetSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	updated, err := svc.ReportAdaptiveFailure(context.Background(), "sess-1", "viewer-1")
	assert.NoError(t, err)
	assert.True(t, updated.HLSFallback)
	assert.Equal(t, models.EngineKindNativeHLS, updated.Attachment.Engine)
	assert.Equal(t, 42.5, updated.Attachment.ResumePosition)

	// Second failure on the same source is terminal
	_, err = svc.ReportAdaptiveFailure(context.Background(), "sess-1", "viewer-1")
	assert.ErrorIs(t, err, ErrPlaybackFailed)
}

func TestReportAdaptiveFailureNonHLSIsTerminal(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(new(MockRepository), store, new(MockSigner), new(MockPublisher))

	store.On("GetSession", mock.Anything, "sess-1").Return(readySession(), nil)

	_, err := svc.ReportAdaptiveFailure(context.Background(), "sess-1", "viewer-1")
	assert.ErrorIs(t, err, ErrPlaybackFailed)
}

func TestTeardownDeletesAndPublishes(t *testing.T) {
	store := new(MockStore)
	publisher := new(MockPublisher)
	svc := newTestService(new(MockRepository), store, new(MockSigner), publisher)

	store.On("GetSession", mock.Anything, "sess-1").Return(readySession(), nil)
	store.On("DeleteSession", mock.Anything, "sess-1").Return(nil)
	publisher.On("PublishEvent", mock.Anything, mock.Anything).Return(nil)

	session, err := svc.Teardown(context.Background(), "sess-1", "viewer-1")

	assert.NoError(t, err)
	assert.Equal(t, models.SessionStateTornDown, session.State)
	assert.Nil(t, session.Attachment)

	store.AssertCalled(t, "DeleteSession", mock.Anything, "sess-1")
	publisher.AssertCalled(t, "PublishEvent", mock.Anything, mock.MatchedBy(func(e *models.PlaybackEvent) bool {
		return e.Type == models.EventSessionTornDown && e.Position == 42.5
	}))
}

func TestGetSessionNotFound(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(new(MockRepository), store, new(MockSigner), new(MockPublisher))

	store.On("GetSession", mock.Anything, "missing").Return(nil, nil)

	_, err := svc.GetSession(context.Background(), "missing", "viewer-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStartSessionMissingMovieNotFound(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockStore), new(MockSigner), new(MockPublisher))

	repo.On("GetMovie", mock.Anything, "movie-404").Return(nil, database.ErrNotFound)

	_, err := svc.StartSession(context.Background(), StartRequest{
		MediaID:   "movie-404",
		MediaType: models.MediaTypeMovie,
	})
	assert.ErrorIs(t, err, ErrMediaNotFound)
}

func TestStartSessionMissingEpisodeNotFound(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockStore), new(MockSigner), new(MockPublisher))

	series := &models.Series{ID: "series-1", Access: models.AccessDescriptor{Type: models.AccessTypeFree}}
	repo.On("GetSeries", mock.Anything, "series-1").Return(series, nil)
	repo.On("GetEpisode", mock.Anything, "ep-404").Return(nil, database.ErrNotFound)

	_, err := svc.StartSession(context.Background(), StartRequest{
		MediaID:   "series-1",
		MediaType: models.MediaTypeSeries,
		EpisodeID: "ep-404",
	})
	assert.ErrorIs(t, err, ErrMediaNotFound)
}

func TestStartSessionResumesFromTracker(t *testing.T) {
	repo := new(MockRepository)
	store := new(MockStore)
	publisher := new(MockPublisher)
	resumer := new(MockResumer)
	svc := newTestServiceWithResumer(repo, store, new(MockSigner), publisher, resumer)

	repo.On("GetMovie", mock.Anything, "movie-1").Return(freeMovie(), nil)
	repo.On("ListSources", mock.Anything, "movie-1").Return(fileSources(), nil)
	repo.On("GetSettings", mock.Anything).Return(nil, nil)
	repo.On("GetActiveSubscription", mock.Anything, "viewer-1").Return(nil, nil)
	repo.On("GetActiveRental", mock.Anything, "viewer-1", "movie-1").Return(nil, nil)
	store.On("GetEntitlements", mock.Anything, "viewer-1", "movie-1").Return(models.Entitlements{}, false, nil)
	store.On("SetEntitlements", mock.Anything, "viewer-1", "movie-1", mock.Anything, mock.Anything).Return(nil)
	store.On("GetSettings", mock.Anything).Return(nil, nil)
	store.On("SetSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	publisher.On("PublishEvent", mock.Anything, mock.Anything).Return(nil)
	resumer.On("Resume", mock.Anything, "viewer-1", "movie-1", "").Return(300.5, nil)

	session, err := svc.StartSession(context.Background(), StartRequest{
		ViewerID:  "viewer-1",
		MediaID:   "movie-1",
		MediaType: models.MediaTypeMovie,
	})

	assert.NoError(t, err)
	assert.Equal(t, 300.5, session.Player.CurrentTime)
	assert.Equal(t, 300.5, session.Attachment.ResumePosition)
}

func TestReportBandwidthRefreshesStaleEstimate(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(new(MockRepository), store, new(MockSigner), new(MockPublisher))

	session := readySession()
	session.SampledAt = time.Now().Add(-time.Minute)
	store.On("GetSession", mock.Anything, "sess-1").Return(session, nil)
	store.On("SetSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	// 1.25 MB over one second is 10 Mbps
	updated, err := svc.ReportBandwidth(context.Background(), "sess-1", "viewer-1", 0, 1_250_000, time.Second)

	assert.NoError(t, err)
	assert.Equal(t, int64(10_000_000), updated.BandwidthBPS)
	assert.WithinDuration(t, time.Now(), updated.SampledAt, time.Second)
}

func TestReportBandwidthWithinWindowKeepsEstimate(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(new(MockRepository), store, new(MockSigner), new(MockPublisher))

	session := readySession()
	session.SampledAt = time.Now()
	store.On("GetSession", mock.Anything, "sess-1").Return(session, nil)

	updated, err := svc.ReportBandwidth(context.Background(), "sess-1", "viewer-1", 0, 1_250_000, time.Second)

	assert.NoError(t, err)
	assert.Equal(t, int64(5_000_000), updated.BandwidthBPS)
	store.AssertNotCalled(t, "SetSession", mock.Anything, mock.Anything, mock.Anything)
}

func TestReportBandwidthHintOverridesProbe(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(new(MockRepository), store, new(MockSigner), new(MockPublisher))

	session := readySession()
	store.On("GetSession", mock.Anything, "sess-1").Return(session, nil)
	store.On("SetSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	updated, err := svc.ReportBandwidth(context.Background(), "sess-1", "viewer-1", 20, 0, 0)

	assert.NoError(t, err)
	assert.Equal(t, int64(20_000_000), updated.BandwidthBPS)
	assert.Equal(t, 20.0, updated.Capabilities.DownlinkMbps)
}
