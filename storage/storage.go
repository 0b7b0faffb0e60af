// Package storage is the file-storage collaborator boundary. The workflow
// core only saves and deletes blobs during image creation and batch
// deletion; it never inspects file content.
package storage

import (
	"os"
	"path/filepath"
)

// Store is the contract the rest of the service requires of file storage.
type Store interface {
	Save(path string, data []byte) (string, error)
	Exists(path string) bool
	Delete(path string) error
}

// DiskStore keeps files under a root directory on local disk.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if needed.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{root: root}, nil
}

// Save writes the blob and returns its absolute path.
func (s *DiskStore) Save(path string, data []byte) (string, error) {
	full := filepath.Join(s.root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", err
	}
	return full, nil
}

// Exists reports whether the blob is present.
func (s *DiskStore) Exists(path string) bool {
	_, err := os.Stat(filepath.Join(s.root, path))
	return err == nil
}

// Delete removes the blob; a missing file is not an error.
func (s *DiskStore) Delete(path string) error {
	err := os.Remove(filepath.Join(s.root, path))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
