package imagesource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalBackendListFindsNestedFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.png"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "b.tif"), []byte("y"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("z"), 0644); err != nil {
		t.Fatal(err)
	}

	backend, err := NewLocalBackend(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = backend.Close() }()

	keys, err := ListImages(context.Background(), backend, "", []string{".png", ".tif"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 image keys, got %d: %v", len(keys), keys)
	}
	if keys[0] != "a.png" || keys[1] != filepath.ToSlash(filepath.Join("sub", "b.tif")) {
		t.Errorf("unexpected keys: %v", keys)
	}
}

func TestLocalBackendOpenAndStat(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.png"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	backend, err := NewLocalBackend(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fi, err := backend.Stat(context.Background(), "a.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fi.Size != 5 {
		t.Errorf("expected size 5, got %d", fi.Size)
	}

	r, err := backend.Open(context.Background(), "a.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = r.Close() }()
	buf := make([]byte, 5)
	if _, err := r.Read(buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(buf) != "hello" {
		t.Errorf("expected contents %q, got %q", "hello", string(buf))
	}
}

func TestNewLocalBackendRejectsMissingRoot(t *testing.T) {
	if _, err := NewLocalBackend(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Error("expected an error for a missing root directory")
	}
}
