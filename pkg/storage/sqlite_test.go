package storage

import (
	"path/filepath"
	"testing"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

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

func TestSQLiteStoreOverwrite(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	store.WriteBlob("settings", []byte("one"))
	store.WriteBlob("settings", []byte("two"))

	got, ok, err := store.ReadBlob("settings")
	if err != nil || !ok {
		t.Fatalf("read back: ok=%v err=%v", ok, err)
	}
	if string(got) != "two" {
		t.Errorf("overwrite lost: %q", got)
	}
}

func TestSQLiteStoreKeysAreIndependent(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	store.WriteBlob("settings", []byte("rules"))

	if _, ok, _ := store.ReadBlob("other"); ok {
		t.Error("unwritten key resolved to a blob")
	}
}
