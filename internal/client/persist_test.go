package client

import (
	"path/filepath"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	if _, ok := store.Get(KeyLastRoute); ok {
		t.Fatalf("expected empty store")
	}
	if err := store.Set(KeyLastRoute, "/dashboard"); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}
	value, ok := store.Get(KeyLastRoute)
	if !ok || value != "/dashboard" {
		t.Fatalf("unexpected value %q", value)
	}
	if err := store.Delete(KeyLastRoute); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if _, ok := store.Get(KeyLastRoute); ok {
		t.Fatalf("expected key removed")
	}
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	store := NewFileStore(path)
	if err := store.Set(KeyLastRoute, "/events?view=map"); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}
	if err := store.Set(KeyRegistrationDraft, `{"email":"a@b.c"}`); err != nil {
		t.Fatalf("unexpected set error: %v", err)
	}

	reopened := NewFileStore(path)
	value, ok := reopened.Get(KeyLastRoute)
	if !ok || value != "/events?view=map" {
		t.Fatalf("unexpected value %q after reopen", value)
	}

	if err := reopened.Delete(KeyRegistrationDraft); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if _, ok := reopened.Get(KeyRegistrationDraft); ok {
		t.Fatalf("expected draft removed")
	}
	if _, ok := reopened.Get(KeyLastRoute); !ok {
		t.Fatalf("expected untouched key to survive")
	}
}

func TestFileStoreMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
	if _, ok := store.Get(KeyLastRoute); ok {
		t.Fatalf("expected miss for absent file")
	}
	if err := store.Delete(KeyLastRoute); err != nil {
		t.Fatalf("delete on absent file must be a no-op, got %v", err)
	}
}
