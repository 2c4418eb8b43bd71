package storage

import (
	"context"
	"errors"
	"strings"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/garyjia/receipt-approval/internal/application/port"
	"github.com/garyjia/receipt-approval/internal/domain/apperr"
)

// GCSConfig holds Google Cloud Storage settings
type GCSConfig struct {
	Bucket          string
	Prefix          string // object name prefix, e.g. "receipts/"
	CredentialsFile string // empty uses application default credentials
	PublicBaseURL   string // defaults to https://storage.googleapis.com/<bucket>
}

// GCSBlobStore implements port.BlobStore on a Google Cloud Storage bucket
type GCSBlobStore struct {
	client  *gcs.Client
	bucket  string
	prefix  string
	baseURL string
	logger  *zap.Logger
}

// NewGCSBlobStore opens a storage client for the configured bucket
func NewGCSBlobStore(ctx context.Context, cfg GCSConfig, logger *zap.Logger) (*GCSBlobStore, error) {
	if cfg.Bucket == "" {
		return nil, apperr.Validation("gcs bucket is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, apperr.Infrastructure("create gcs client", err)
	}

	baseURL := strings.TrimRight(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + cfg.Bucket
	}

	logger.Info("GCS blob store ready",
		zap.String("bucket", cfg.Bucket),
		zap.String("prefix", cfg.Prefix))

	return &GCSBlobStore{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		baseURL: baseURL,
		logger:  logger,
	}, nil
}

// Store uploads data as a new object and returns its public URL
func (s *GCSBlobStore) Store(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	object := s.prefix + ObjectName(filename)

	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		s.logger.Error("Failed to upload object",
			zap.String("object", object),
			zap.Error(err))
		return "", apperr.Infrastructure("upload object", err)
	}
	if err := w.Close(); err != nil {
		s.logger.Error("Failed to finalize object",
			zap.String("object", object),
			zap.Error(err))
		return "", apperr.Infrastructure("finalize object", err)
	}

	s.logger.Debug("Object uploaded",
		zap.String("object", object),
		zap.Int("size", len(data)))

	return s.baseURL + "/" + object, nil
}

// Delete removes the object behind a URL returned by Store. Missing objects are not an error.
func (s *GCSBlobStore) Delete(ctx context.Context, url string) error {
	object, ok := objectFromURL(s.baseURL, url)
	if !ok {
		return apperr.Validation("blob url %q is not served by this store", url)
	}

	err := s.client.Bucket(s.bucket).Object(object).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		s.logger.Error("Failed to delete object",
			zap.String("object", object),
			zap.Error(err))
		return apperr.Infrastructure("delete object", err)
	}
	return nil
}

// Close releases the storage client
func (s *GCSBlobStore) Close() error {
	return s.client.Close()
}

func objectFromURL(baseURL, url string) (string, bool) {
	object := strings.TrimPrefix(url, baseURL+"/")
	if object == url || object == "" {
		return "", false
	}
	return object, true
}

var _ port.BlobStore = (*GCSBlobStore)(nil)
