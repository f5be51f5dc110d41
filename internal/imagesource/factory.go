package imagesource

import (
	"context"
	"fmt"

	"github.com/sebastianmicu24/scipathj/internal/config"
	"github.com/sebastianmicu24/scipathj/internal/pipeline"
)

// Open constructs the Backend named by settings.Kind.
func Open(ctx context.Context, settings config.ImageSourceSettings) (Backend, error) {
	switch settings.Kind {
	case config.SourceLocal:
		return NewLocalBackend(settings.Root)
	case config.SourceS3:
		bucket, _, err := ParseS3URI(settings.Root)
		if err != nil {
			return nil, err
		}
		return NewS3Backend(ctx, bucket)
	default:
		return nil, fmt.Errorf("imagesource: unknown source kind %q", settings.Kind)
	}
}

// NewReader builds the full ImageReader a batch run uses: a
// StandardDecoder over backend, wrapped in a CachingReader sized per
// settings.DecodeCacheSize.
func NewReader(backend Backend, settings config.ImageSourceSettings) (pipeline.ImageReader, error) {
	return NewCachingReader(StandardDecoder{Backend: backend}, settings.DecodeCacheSize)
}

// Prefix returns the enumeration prefix implied by settings.Root for S3
// sources (the part after bucket/), or "" for local sources (the whole
// root directory is walked).
func Prefix(settings config.ImageSourceSettings) (string, error) {
	if settings.Kind != config.SourceS3 {
		return "", nil
	}
	_, prefix, err := ParseS3URI(settings.Root)
	return prefix, err
}
