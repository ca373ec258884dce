// Package cdn mirrors a built site tree to remote object storage.
package cdn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// ErrMissingCredentials is returned when a backend lacks the settings it
// needs to authenticate.
var ErrMissingCredentials = errors.New("cdn credentials not configured")

// Storage is a remote object store with overwrite semantics.
type Storage interface {
	// Put stores body under key, replacing any previous object.
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	// Clean removes every object below prefix.
	Clean(ctx context.Context, prefix string) error
	// Target identifies the destination, e.g. "bunny:my-zone".
	Target() string
}

// UploadError describes one failed upload in enough detail to retry by hand.
type UploadError struct {
	Key    string
	Status int    // HTTP status, zero when no response arrived
	Body   string // truncated response body
	Err    error
}

func (e *UploadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "upload %s", e.Key)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Body != "" {
		fmt.Fprintf(&b, ": %s", e.Body)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *UploadError) Unwrap() error { return e.Err }

// RemoteKey maps a path relative to the output root onto its remote key.
func RemoteKey(prefix, rel string) string {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "/")
	prefix = strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/")
	if prefix == "" {
		return path.Clean(rel)
	}
	return path.Join(prefix, rel)
}

var contentTypes = map[string]string{
	".html":        "text/html; charset=utf-8",
	".htm":         "text/html; charset=utf-8",
	".css":         "text/css; charset=utf-8",
	".js":          "application/javascript",
	".mjs":         "application/javascript",
	".map":         "application/json",
	".json":        "application/json",
	".webmanifest": "application/manifest+json",
	".xml":         "application/xml",
	".txt":         "text/plain; charset=utf-8",
	".svg":         "image/svg+xml",
	".png":         "image/png",
	".jpg":         "image/jpeg",
	".jpeg":        "image/jpeg",
	".gif":         "image/gif",
	".webp":        "image/webp",
	".avif":        "image/avif",
	".ico":         "image/x-icon",
	".woff":        "font/woff",
	".woff2":       "font/woff2",
	".ttf":         "font/ttf",
	".otf":         "font/otf",
	".mp3":         "audio/mpeg",
	".m4a":         "audio/mp4",
	".pdf":         "application/pdf",
}

// DefaultContentType is used for extensions missing from the table.
const DefaultContentType = "application/octet-stream"

// ContentType returns the MIME type for path based on its extension.
func ContentType(p string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(p))]; ok {
		return ct
	}
	return DefaultContentType
}
