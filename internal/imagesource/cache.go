package imagesource

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/sebastianmicu24/scipathj/internal/pipeline"
)

// CachingReader wraps a pipeline.ImageReader with a bounded LRU of decoded
// images (spec.md 5 "ImageReader cache"), so a batch that revisits the
// same image_key — retries, re-running feature extraction against an
// already-processed slide — doesn't pay decode cost twice. Grounded on
// the teacher's indirect golang-lru dependency; no pack repo imports it
// directly, so the wiring pattern (decorator around a narrow interface)
// follows the teacher's own decorator style in internal/doi/client.go
// rather than a specific cache-usage example.
type CachingReader struct {
	inner pipeline.ImageReader
	cache *lru.Cache
}

func NewCachingReader(inner pipeline.ImageReader, size int) (*CachingReader, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("imagesource: create decode cache: %w", err)
	}
	return &CachingReader{inner: inner, cache: cache}, nil
}

func (c *CachingReader) Read(ctx context.Context, key string) (pipeline.Image, error) {
	if v, ok := c.cache.Get(key); ok {
		return v.(pipeline.Image), nil
	}
	img, err := c.inner.Read(ctx, key)
	if err != nil {
		return pipeline.Image{}, err
	}
	c.cache.Add(key, img)
	return img, nil
}

// Purge evicts every cached entry, used between unrelated batch runs that
// share one CachingReader.
func (c *CachingReader) Purge() {
	c.cache.Purge()
}
