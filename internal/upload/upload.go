// Package upload stages incoming files on local disk until the import that
// consumes them has committed.
package upload

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Stage copies src into dir under a collision-safe name and returns the
// staged file's path. The original base name is kept as a suffix so staged
// files stay recognizable.
func Stage(dir, originalName string, src io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	name := randomHex(4) + "-" + filepath.Base(originalName)
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write staged file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close staged file: %w", err)
	}

	return path, nil
}

// File is an opened staged file. It satisfies the importer's source
// contract: read the content, then Release to dispose of the backing file.
type File struct {
	path string
	f    *os.File
}

func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open staged file: %w", err)
	}
	return &File{path: path, f: f}, nil
}

func (f *File) Read(p []byte) (int, error) {
	return f.f.Read(p)
}

// Release closes and deletes the staged file. Call only after the consumer
// has committed; an unreleased file can be retried.
func (f *File) Release() error {
	if err := f.f.Close(); err != nil {
		return fmt.Errorf("close staged file: %w", err)
	}
	if err := os.Remove(f.path); err != nil {
		return fmt.Errorf("remove staged file: %w", err)
	}
	return nil
}

// Path returns the staged file's location on disk.
func (f *File) Path() string {
	return f.path
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "upload"
	}
	return hex.EncodeToString(b)
}
