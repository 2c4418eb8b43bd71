package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/receipt-approval/internal/application/port"
	"github.com/garyjia/receipt-approval/internal/domain/apperr"
)

// LocalBlobStore implements port.BlobStore on the local filesystem.
// Stored files are served by the HTTP layer under urlPrefix.
type LocalBlobStore struct {
	baseDir   string
	urlPrefix string
	logger    *zap.Logger
}

// NewLocalBlobStore creates a new LocalBlobStore
func NewLocalBlobStore(baseDir, urlPrefix string, logger *zap.Logger) *LocalBlobStore {
	return &LocalBlobStore{
		baseDir:   baseDir,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		logger:    logger,
	}
}

// BaseDir returns the directory blobs are written to
func (s *LocalBlobStore) BaseDir() string {
	return s.baseDir
}

// URLPrefix returns the path blobs are served under
func (s *LocalBlobStore) URLPrefix() string {
	return s.urlPrefix
}

// Store writes data under a unique name and returns its URL
func (s *LocalBlobStore) Store(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	name := ObjectName(filename)
	fullPath := filepath.Join(s.baseDir, name)

	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		s.logger.Error("Failed to create upload directory",
			zap.String("path", s.baseDir),
			zap.Error(err))
		return "", apperr.Infrastructure("create upload directory", err)
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		s.logger.Error("Failed to write blob",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", apperr.Infrastructure("write blob", err)
	}

	s.logger.Debug("Blob stored",
		zap.String("path", fullPath),
		zap.String("content_type", contentType),
		zap.Int("size", len(data)))

	return s.urlPrefix + "/" + name, nil
}

// Delete removes the file behind a URL returned by Store. Missing files are not an error.
func (s *LocalBlobStore) Delete(ctx context.Context, url string) error {
	name := strings.TrimPrefix(url, s.urlPrefix+"/")
	if name == url || name == "" {
		return apperr.Validation("blob url %q is not served by this store", url)
	}

	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(name))
	if err := s.validatePath(fullPath); err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to delete blob",
			zap.String("path", fullPath),
			zap.Error(err))
		return apperr.Infrastructure("delete blob", err)
	}

	s.logger.Debug("Blob deleted", zap.String("path", fullPath))
	return nil
}

// validatePath checks that the path stays within baseDir
func (s *LocalBlobStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return apperr.Infrastructure("resolve path", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return apperr.Infrastructure("resolve base path", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return apperr.Validation("path escapes upload directory: %s", fullPath)
	}
	return nil
}

var _ port.BlobStore = (*LocalBlobStore)(nil)

