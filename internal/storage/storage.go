package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/openstreamhub/streamgate/internal/config"
	"github.com/openstreamhub/streamgate/pkg/models"
)

// Storage issues time-limited playback URLs from object storage. Media
// objects (files, manifests, segments) live in one bucket keyed by source
// object key; the protected URL exchange presigns them per request.
type Storage struct {
	client     *minio.Client
	bucketName string
	urlTTL     time.Duration
}

// New creates a new storage client
func New(cfg config.StorageConfig) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	// Ensure bucket exists
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &Storage{
		client:     client,
		bucketName: cfg.BucketName,
		urlTTL:     ttl,
	}, nil
}

// PresignURL returns a time-limited GET URL for one object
func (s *Storage) PresignURL(ctx context.Context, objectKey string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, objectKey, s.urlTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign object: %w", err)
	}

	return u.String(), nil
}

// PresignSource fills a normalized source with time-limited URLs derived
// from the raw descriptor's object keys. Embed sources pass through their
// URL untouched; they are not ours to sign.
func (s *Storage) PresignSource(ctx context.Context, raw *models.RawSource, src models.Source) (models.Source, error) {
	if src.Kind == models.StreamKindEmbed {
		src.URL = raw.URL
		return src, nil
	}

	if raw.ObjectKey != "" {
		present, err := s.Exists(ctx, raw.ObjectKey)
		if err != nil {
			return src, err
		}
		if !present {
			return src, fmt.Errorf("object %q not found in bucket", raw.ObjectKey)
		}
		signed, err := s.PresignURL(ctx, raw.ObjectKey)
		if err != nil {
			return src, err
		}
		src.URL = signed
	} else if raw.URL != "" {
		// Externally hosted source; nothing to sign
		src.URL = raw.URL
	}

	if len(raw.URLs) > 0 {
		signed := make(models.QualityURLs, len(raw.URLs))
		for label, target := range raw.URLs {
			if key, ok := objectKeyFor(target); ok {
				u, err := s.PresignURL(ctx, key)
				if err != nil {
					return src, err
				}
				signed[label] = u
			} else {
				signed[label] = target
			}
		}
		src.QualityURLs = signed
	}

	return src, nil
}

// objectKeyFor treats quality-map values without a scheme as bucket object
// keys. Absolute URLs point at external hosts and pass through.
func objectKeyFor(target string) (string, bool) {
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" {
		return "", false
	}
	return target, true
}

// Exists checks whether an object is present
func (s *Storage) Exists(ctx context.Context, objectKey string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucketName, objectKey, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}
