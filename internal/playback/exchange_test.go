package playback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/openstreamhub/streamgate/internal/database"
	"github.com/openstreamhub/streamgate/pkg/models"
)

func rentMovie() *models.Movie {
	return &models.Movie{
		ID:       "movie-1",
		Title:    "Rental Movie",
		Duration: 5400,
		Access: models.AccessDescriptor{
			Type:       models.AccessTypeRent,
			PriceCents: 499,
			RentalDays: 2,
		},
	}
}

func TestExchangeAnonymousOnProtectedSource(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockStore), new(MockSigner), new(MockPublisher))

	repo.On("GetMovie", mock.Anything, "movie-1").Return(rentMovie(), nil)

	resp := svc.Exchange(context.Background(), "", models.ExchangeRequest{
		SourceID: "src-1",
		MovieID:  "movie-1",
	})

	assert.False(t, resp.Success)
	assert.Equal(t, models.ExchangeErrNotAuthenticated, resp.Error)
}

func TestExchangeNotEntitled(t *testing.T) {
	repo := new(MockRepository)
	store := new(MockStore)
	svc := newTestService(repo, store, new(MockSigner), new(MockPublisher))

	repo.On("GetMovie", mock.Anything, "movie-1").Return(rentMovie(), nil)
	store.On("GetEntitlements", mock.Anything, "viewer-1", "movie-1").
		Return(models.Entitlements{Loaded: true}, true, nil)

	resp := svc.Exchange(context.Background(), "viewer-1", models.ExchangeRequest{
		SourceID: "src-1",
		MovieID:  "movie-1",
	})

	assert.False(t, resp.Success)
	assert.Equal(t, models.ExchangeErrNotEntitled, resp.Error)
}

func TestExchangeEntitledViewerGetsSignedSource(t *testing.T) {
	repo := new(MockRepository)
	store := new(MockStore)
	signer := new(MockSigner)
	svc := newTestService(repo, store, signer, new(MockPublisher))

	raw := fileSources()[0]
	repo.On("GetMovie", mock.Anything, "movie-1").Return(rentMovie(), nil)
	repo.On("GetSource", mock.Anything, "src-1").Return(&raw, nil)
	store.On("GetEntitlements", mock.Anything, "viewer-1", "movie-1").
		Return(models.Entitlements{Loaded: true, HasRental: true}, true, nil)

	signed := models.Source{
		ID:   "src-1",
		Kind: models.StreamKindFile,
		URL:  "https://minio.example.com/videos/720.mp4?X-Amz-Signature=abc",
	}
	signer.On("PresignSource", mock.Anything, mock.Anything, mock.Anything).Return(signed, nil)

	resp := svc.Exchange(context.Background(), "viewer-1", models.ExchangeRequest{
		SourceID: "src-1",
		MovieID:  "movie-1",
	})

	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Source)
	assert.Contains(t, resp.Source.URL, "X-Amz-Signature")
	assert.Empty(t, resp.Error)
}

func TestExchangeSubscriptionDoesNotCoverExcludedRental(t *testing.T) {
	repo := new(MockRepository)
	store := new(MockStore)
	svc := newTestService(repo, store, new(MockSigner), new(MockPublisher))

	movie := rentMovie()
	movie.Access.ExcludeFromPlan = true
	repo.On("GetMovie", mock.Anything, "movie-1").Return(movie, nil)
	store.On("GetEntitlements", mock.Anything, "viewer-1", "movie-1").
		Return(models.Entitlements{Loaded: true, HasSubscription: true}, true, nil)

	resp := svc.Exchange(context.Background(), "viewer-1", models.ExchangeRequest{
		SourceID: "src-1",
		MovieID:  "movie-1",
	})

	assert.False(t, resp.Success)
	assert.Equal(t, models.ExchangeErrNotEntitled, resp.Error)
}

func TestExchangeFreeSourceNeedsNoViewer(t *testing.T) {
	repo := new(MockRepository)
	signer := new(MockSigner)
	svc := newTestService(repo, new(MockStore), signer, new(MockPublisher))

	raw := fileSources()[0]
	repo.On("GetMovie", mock.Anything, "movie-1").Return(freeMovie(), nil)
	repo.On("GetSource", mock.Anything, "src-1").Return(&raw, nil)

	signed := models.Source{ID: "src-1", Kind: models.StreamKindFile, URL: raw.URL}
	signer.On("PresignSource", mock.Anything, mock.Anything, mock.Anything).Return(signed, nil)

	resp := svc.Exchange(context.Background(), "", models.ExchangeRequest{
		SourceID: "src-1",
		MovieID:  "movie-1",
	})

	assert.True(t, resp.Success)
}

func TestExchangeSourceNotFound(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockStore), new(MockSigner), new(MockPublisher))

	repo.On("GetMovie", mock.Anything, "movie-1").Return(freeMovie(), nil)
	repo.On("GetSource", mock.Anything, "src-404").Return(nil, database.ErrNotFound)

	resp := svc.Exchange(context.Background(), "", models.ExchangeRequest{
		SourceID: "src-404",
		MovieID:  "movie-1",
	})

	assert.False(t, resp.Success)
	assert.Equal(t, models.ExchangeErrSourceNotFound, resp.Error)
}

func TestExchangeSourceLookupFailureIsUnavailable(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockStore), new(MockSigner), new(MockPublisher))

	repo.On("GetMovie", mock.Anything, "movie-1").Return(freeMovie(), nil)
	repo.On("GetSource", mock.Anything, "src-1").Return(nil, errors.New("db down"))

	resp := svc.Exchange(context.Background(), "", models.ExchangeRequest{
		SourceID: "src-1",
		MovieID:  "movie-1",
	})

	assert.False(t, resp.Success)
	assert.Equal(t, models.ExchangeErrUnavailable, resp.Error)
}

func TestExchangeFallsBackToRequestDescriptor(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockStore), new(MockSigner), new(MockPublisher))

	// Request names no title; the descriptor on the request gates alone
	resp := svc.Exchange(context.Background(), "", models.ExchangeRequest{
		SourceID:   "src-1",
		AccessType: models.AccessTypeVIP,
	})

	assert.False(t, resp.Success)
	assert.Equal(t, models.ExchangeErrNotAuthenticated, resp.Error)
}

func TestApplyExchangeCurrentGeneration(t *testing.T) {
	repo := new(MockRepository)
	store := new(MockStore)
	svc := newTestService(repo, store, new(MockSigner), new(MockPublisher))

	session := readySession()
	session.Generation = 3
	store.On("GetSession", mock.Anything, "sess-1").Return(session, nil)
	store.On("GetSettings", mock.Anything).Return(nil, nil)
	repo.On("GetSettings", mock.Anything).Return(nil, nil)
	store.On("SetSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	signed := models.Source{
		ID:   "src-2",
		Kind: models.StreamKindHLS,
		URL:  "https://minio.example.com/videos/master.m3u8?X-Amz-Signature=abc",
	}

	updated, err := svc.ApplyExchange(context.Background(), "sess-1", "viewer-1", 3, signed)

	assert.NoError(t, err)
	assert.Equal(t, "src-2", updated.SourceID)
	assert.Equal(t, models.EngineKindAdaptive, updated.Attachment.Engine)
	assert.Equal(t, 42.5, updated.Attachment.ResumePosition)
}

func TestApplyExchangeStaleGenerationDiscarded(t *testing.T) {
	store := new(MockStore)
	svc := newTestService(new(MockRepository), store, new(MockSigner), new(MockPublisher))

	session := readySession()
	session.Generation = 3
	store.On("GetSession", mock.Anything, "sess-1").Return(session, nil)

	// An exchange issued before the source switch lands late
	_, err := svc.ApplyExchange(context.Background(), "sess-1", "viewer-1", 2, models.Source{ID: "src-1"})

	assert.ErrorIs(t, err, ErrStaleExchange)
	store.AssertNotCalled(t, "SetSession", mock.Anything, mock.Anything, mock.Anything)
}
