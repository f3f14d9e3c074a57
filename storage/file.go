package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var recordNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// FileBackend keeps every record in <dir>/<name>.json.
type FileBackend struct {
	dir string
}

// NewFileBackend creates a file backend rooted at dir
func NewFileBackend(dir string) (*FileBackend, error) {
	// 0700 - chat history is private
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) path(name string) (string, error) {
	if !recordNamePattern.MatchString(name) {
		return "", fmt.Errorf("invalid record name %q", name)
	}
	return filepath.Join(b.dir, name+".json"), nil
}

func (b *FileBackend) Read(name string) ([]byte, error) {
	path, err := b.path(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	return data, nil
}

func (b *FileBackend) Write(name string, data []byte) error {
	path, err := b.path(name)
	if err != nil {
		return err
	}

	if err := atomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	return nil
}

func (b *FileBackend) Close() error {
	return nil
}

// atomicWriteFile writes to a temp file in the same directory, syncs it and
// renames it over path so readers never see a torn record.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return nil
}
