package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestRotatingWriterRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	defer rw.Close()

	chunk := bytes.Repeat([]byte("x"), 600<<10)
	for i := 0; i < 5; i++ {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("Write() #%d error = %v", i, err)
		}
	}

	for _, name := range []string{"app.log", "app.log.1", "app.log.2"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "app.log.3")); !os.IsNotExist(err) {
		t.Errorf("app.log.3 should not exist, stat err = %v", err)
	}
	if got := rw.Size(); got != int64(len(chunk)) {
		t.Errorf("Size() = %d, want %d", got, len(chunk))
	}
}

func TestRotatingWriterDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	rw, err := NewRotatingWriter(path, RotationConfig{})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}

	chunk := bytes.Repeat([]byte("y"), 1024)
	for i := 0; i < 3; i++ {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if got := rw.Size(); got != 3*1024 {
		t.Errorf("Size() = %d, want %d", got, 3*1024)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := rw.Write(chunk); err == nil {
		t.Error("Write() after Close() should fail")
	}
}

func TestRotatingWriterAppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("seed\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	defer rw.Close()

	if got := rw.Size(); got != 5 {
		t.Errorf("Size() = %d, want 5", got)
	}
	if rw.Path() != path {
		t.Errorf("Path() = %q, want %q", rw.Path(), path)
	}
}
