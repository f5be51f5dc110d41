package imagesource

import (
	"context"
	"testing"

	"github.com/sebastianmicu24/scipathj/internal/pipeline"
)

type countingReader struct {
	calls int
	img   pipeline.Image
}

func (c *countingReader) Read(ctx context.Context, key string) (pipeline.Image, error) {
	c.calls++
	return c.img, nil
}

func TestCachingReaderReadsOnceForRepeatedKey(t *testing.T) {
	inner := &countingReader{img: pipeline.NewImage(2, 2, 1, pipeline.Depth8)}
	cached, err := NewCachingReader(inner, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := cached.Read(context.Background(), "slide-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 decode call for a cached key, got %d", inner.calls)
	}
}

func TestCachingReaderDistinctKeysBothDecode(t *testing.T) {
	inner := &countingReader{img: pipeline.NewImage(2, 2, 1, pipeline.Depth8)}
	cached, err := NewCachingReader(inner, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := cached.Read(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := cached.Read(context.Background(), "b"); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 decode calls for distinct keys, got %d", inner.calls)
	}
}

func TestCachingReaderPurgeForcesRedecode(t *testing.T) {
	inner := &countingReader{img: pipeline.NewImage(2, 2, 1, pipeline.Depth8)}
	cached, err := NewCachingReader(inner, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := cached.Read(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	cached.Purge()
	if _, err := cached.Read(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("expected purge to force a second decode, got %d calls", inner.calls)
	}
}
