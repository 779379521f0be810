package store

import (
	"context"
	"testing"
)

// TestMemStore_Contract runs the shared Store behaviour suite.
func TestMemStore_Contract(t *testing.T) {
	storeContract(t, NewMemStore())
}

// TestMemStore_ReturnsCopies guards against aliasing the internal slices.
func TestMemStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	facts := []Fact{{ID: "a", Attr: "b", Value: "c"}}
	if err := s.SaveSnapshot(ctx, "snap", facts); err != nil {
		t.Fatalf("SaveSnapshot returned error: %v", err)
	}

	// Mutating the caller's slice must not change the stored snapshot.
	facts[0].ID = "mutated"
	got, err := s.LoadSnapshot(ctx, "snap")
	if err != nil {
		t.Fatalf("LoadSnapshot returned error: %v", err)
	}
	if got[0].ID != "a" {
		t.Error("stored snapshot aliased the caller's slice")
	}

	// Mutating the loaded slice must not change the stored snapshot.
	got[0].ID = "mutated"
	again, err := s.LoadSnapshot(ctx, "snap")
	if err != nil {
		t.Fatalf("LoadSnapshot returned error: %v", err)
	}
	if again[0].ID != "a" {
		t.Error("LoadSnapshot returned the internal slice")
	}
}
