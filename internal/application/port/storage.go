package port

import "context"

// BlobStore keeps receipt images and returns a URL that serves them
type BlobStore interface {
	// Store saves the content under a name derived from filename and returns its URL
	Store(ctx context.Context, filename, contentType string, data []byte) (string, error)

	// Delete removes the object behind a URL previously returned by Store
	Delete(ctx context.Context, url string) error
}

// NormalizedImage is a receipt image ready to be stored
type NormalizedImage struct {
	Data        []byte
	ContentType string
	Extension   string
	Width       int
	Height      int
}

// ImageNormalizer converts an upload into a bounded, web-displayable image
type ImageNormalizer interface {
	// Normalize returns apperr.ErrValidation for unsupported or unreadable files
	Normalize(filename string, data []byte) (*NormalizedImage, error)
}

// ReceiptSheet is the tabular content of a history export
type ReceiptSheet struct {
	Title   string
	Headers []string
	Rows    [][]interface{}
}

// ReceiptExporter renders tabular data into a downloadable workbook
type ReceiptExporter interface {
	Export(sheet ReceiptSheet) ([]byte, error)
}
