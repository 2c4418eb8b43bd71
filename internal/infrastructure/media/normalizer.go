package media

import (
	"bytes"
	"image"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/receipt-approval/internal/application/port"
	"github.com/garyjia/receipt-approval/internal/domain/apperr"
)

const (
	// DefaultMaxWidth bounds stored receipt images
	DefaultMaxWidth = 1600
	// DefaultJPEGQuality is used when re-encoding uploads
	DefaultJPEGQuality = 85
)

// Config tunes image normalization
type Config struct {
	MaxWidth    int
	JPEGQuality int
}

// Normalizer implements port.ImageNormalizer.
// JPEG and PNG uploads are decoded with EXIF orientation applied; PDFs are
// rendered from their first page. Output is always a JPEG no wider than MaxWidth.
type Normalizer struct {
	maxWidth int
	quality  int
	logger   *zap.Logger
}

// NewNormalizer creates a new Normalizer
func NewNormalizer(cfg Config, logger *zap.Logger) *Normalizer {
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = DefaultMaxWidth
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = DefaultJPEGQuality
	}
	return &Normalizer{
		maxWidth: cfg.MaxWidth,
		quality:  cfg.JPEGQuality,
		logger:   logger,
	}
}

// Normalize converts an upload into a bounded JPEG
func (n *Normalizer) Normalize(filename string, data []byte) (*port.NormalizedImage, error) {
	if len(data) == 0 {
		return nil, apperr.Validation("image %q is empty", filename)
	}

	var img image.Image
	var err error

	switch kind := detect(filename, data); kind {
	case "application/pdf":
		img, err = n.renderPDF(data)
	case "image/jpeg", "image/png":
		img, err = imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	default:
		return nil, apperr.Validation("unsupported image type %q for %s; use JPEG, PNG or PDF", kind, filename)
	}
	if err != nil {
		n.logger.Info("Rejected unreadable upload", zap.String("filename", filename), zap.Error(err))
		return nil, apperr.Validation("cannot read image %s: %v", filename, err)
	}

	if img.Bounds().Dx() > n.maxWidth {
		img = imaging.Resize(img, n.maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(n.quality)); err != nil {
		return nil, apperr.Infrastructure("encode jpeg", err)
	}

	bounds := img.Bounds()
	n.logger.Debug("Image normalized",
		zap.String("filename", filename),
		zap.Int("width", bounds.Dx()),
		zap.Int("height", bounds.Dy()),
		zap.Int("size", buf.Len()))

	return &port.NormalizedImage{
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
		Extension:   ".jpg",
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

func (n *Normalizer) renderPDF(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, apperr.Validation("pdf has no pages")
	}
	return doc.Image(0)
}

// detect sniffs the content type, falling back to the extension for PDFs
// that http.DetectContentType misses because of leading bytes.
func detect(filename string, data []byte) string {
	kind := http.DetectContentType(data)
	if kind == "application/octet-stream" && strings.EqualFold(filepath.Ext(filename), ".pdf") &&
		bytes.Contains(data[:min(len(data), 1024)], []byte("%PDF-")) {
		return "application/pdf"
	}
	return kind
}

var _ port.ImageNormalizer = (*Normalizer)(nil)
