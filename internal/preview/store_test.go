package preview

import (
	"strings"
	"testing"
)

func TestCreateGetRelease(t *testing.T) {
	store := NewStore()

	uri := store.Create("image/png", []byte("png"))
	if !strings.HasPrefix(uri, PathPrefix) {
		t.Fatalf("Expected URI under %s, got %s", PathPrefix, uri)
	}

	item, ok := store.Get(uri)
	if !ok {
		t.Fatal("Expected preview to exist")
	}
	if item.MIMEType != "image/png" || string(item.Data) != "png" {
		t.Errorf("Unexpected item: %+v", item)
	}

	if _, ok := store.Get(strings.TrimPrefix(uri, PathPrefix)); !ok {
		t.Error("Expected lookup by bare ID to work")
	}

	store.Release(uri)
	if _, ok := store.Get(uri); ok {
		t.Error("Expected preview to be gone after release")
	}
	if store.Len() != 0 {
		t.Errorf("Expected empty store, got %d items", store.Len())
	}
}

func TestURIsAreUnique(t *testing.T) {
	store := NewStore()
	a := store.Create("image/png", nil)
	b := store.Create("image/png", nil)
	if a == b {
		t.Errorf("Expected distinct URIs, got %s twice", a)
	}
	store.Release("/preview/unknown")
	if store.Len() != 2 {
		t.Errorf("Expected 2 items, got %d", store.Len())
	}
}
