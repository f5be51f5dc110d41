package imagesource

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalBackend implements Backend over a directory on disk, adapted from
// the teacher's LocalBackend (internal/sync/local.go): same
// filepath.Walk-based enumeration, minus the MD5 ETag (spec.md's batch
// semantics key off path and mtime, not content hashing).
type LocalBackend struct {
	root string
}

func NewLocalBackend(root string) (*LocalBackend, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("imagesource: local root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("imagesource: local root %q is not a directory", root)
	}
	return &LocalBackend{root: root}, nil
}

func (b *LocalBackend) List(ctx context.Context, prefix string) ([]FileInfo, error) {
	var files []FileInfo
	fullPath := filepath.Join(b.root, prefix)

	err := filepath.Walk(fullPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(b.root, path)
		if err != nil {
			return err
		}
		files = append(files, FileInfo{
			Key:     filepath.ToSlash(relPath),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("imagesource: walk %q: %w", fullPath, err)
	}
	return files, nil
}

func (b *LocalBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(b.root, filepath.FromSlash(key)))
	if err != nil {
		return nil, fmt.Errorf("imagesource: open %q: %w", key, err)
	}
	return f, nil
}

func (b *LocalBackend) Stat(ctx context.Context, key string) (FileInfo, error) {
	info, err := os.Stat(filepath.Join(b.root, filepath.FromSlash(key)))
	if err != nil {
		return FileInfo{}, fmt.Errorf("imagesource: stat %q: %w", key, err)
	}
	return FileInfo{Key: key, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (b *LocalBackend) Close() error { return nil }
