package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, ok, err := store.ReadBlob("settings"); err != nil || ok {
		t.Fatalf("expected missing blob, got ok=%v err=%v", ok, err)
	}

	want := []byte(`{"forwards":[]}`)
	if err := store.WriteBlob("settings", want); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, ok, err := store.ReadBlob("settings")
	if err != nil || !ok {
		t.Fatalf("read back: ok=%v err=%v", ok, err)
	}
	if string(got) != string(want) {
		t.Errorf("read %q, want %q", got, want)
	}
}

func TestFileStoreOverwriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	store.WriteBlob("settings", []byte("one"))
	store.WriteBlob("settings", []byte("two"))

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly the committed file, found %d entries", len(entries))
	}
	if entries[0].Name() != "settings.json" {
		t.Errorf("unexpected file %s", entries[0].Name())
	}

	got, _ := os.ReadFile(filepath.Join(dir, "settings.json"))
	if string(got) != "two" {
		t.Errorf("overwrite lost: %q", got)
	}
}
