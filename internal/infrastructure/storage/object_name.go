package storage

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectName builds a collision-free object name that keeps the upload's extension,
// e.g. "receipt-20240501-1b4e28ba-2fa1-11d2-883f-0016d3cca427.jpg".
func ObjectName(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return "receipt-" + time.Now().UTC().Format("20060102") + "-" + uuid.NewString() + ext
}
