package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskStore(t *testing.T) {
	store, err := NewDiskStore(filepath.Join(t.TempDir(), "media"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	full, err := store.Save("batches/b1/img-001.jpg", []byte("jpeg bytes"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Errorf("content = %q", data)
	}
	if !store.Exists("batches/b1/img-001.jpg") {
		t.Error("saved file not reported as existing")
	}

	if err := store.Delete("batches/b1/img-001.jpg"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.Exists("batches/b1/img-001.jpg") {
		t.Error("deleted file still reported as existing")
	}
	// Deleting a missing file is silent.
	if err := store.Delete("batches/b1/img-001.jpg"); err != nil {
		t.Errorf("double delete: %v", err)
	}
}
