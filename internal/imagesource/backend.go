// Package imagesource generalizes spec.md 1's "folder of images" into a
// Backend interface with a local-filesystem implementation and an
// S3-backed implementation, grounded on the teacher's sync.Backend
// (scttfrdmn/cicada/internal/sync/backend.go). Decoding stays behind
// pipeline.ImageReader exactly as spec.md defines it; Backend only
// enumerates and opens raw bytes.
package imagesource

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"
)

// FileInfo describes one enumerated object, independent of backend.
type FileInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Backend abstracts where a batch's raw image bytes live.
type Backend interface {
	// List returns every object under prefix, recursively.
	List(ctx context.Context, prefix string) ([]FileInfo, error)
	// Open opens one object for reading. The caller must Close it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Stat returns metadata for one object.
	Stat(ctx context.Context, key string) (FileInfo, error)
	Close() error
}

// HasImageExtension reports whether key's extension is one of extensions
// (case-insensitive, entries carry their leading dot, e.g. ".tif").
func HasImageExtension(key string, extensions []string) bool {
	lower := strings.ToLower(key)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// ListImages filters Backend.List's result down to image-key candidates
// matching extensions, sorted for deterministic batch ordering.
func ListImages(ctx context.Context, backend Backend, prefix string, extensions []string) ([]string, error) {
	files, err := backend.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(files))
	for _, f := range files {
		if HasImageExtension(f.Key, extensions) {
			keys = append(keys, f.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
