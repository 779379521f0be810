package store

import (
	"context"
	"errors"
	"testing"
)

// storeContract runs the behaviour every Store implementation must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing snapshot returns ErrNotFound", func(t *testing.T) {
		if _, err := s.LoadSnapshot(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("missing journal returns ErrNotFound", func(t *testing.T) {
		if _, err := s.Changes(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("snapshot round trip", func(t *testing.T) {
		facts := []Fact{
			{ID: "alice", Attr: "parent", Value: "bob"},
			{ID: "bob", Attr: "parent", Value: "carol"},
		}
		if err := s.SaveSnapshot(ctx, "snap-1", facts); err != nil {
			t.Fatalf("SaveSnapshot returned error: %v", err)
		}
		got, err := s.LoadSnapshot(ctx, "snap-1")
		if err != nil {
			t.Fatalf("LoadSnapshot returned error: %v", err)
		}
		if len(got) != 2 || got[0] != facts[0] || got[1] != facts[1] {
			t.Errorf("snapshot = %v, want %v", got, facts)
		}
	})

	t.Run("snapshot replacement", func(t *testing.T) {
		if err := s.SaveSnapshot(ctx, "snap-1", []Fact{{ID: "x", Attr: "y", Value: "z"}}); err != nil {
			t.Fatalf("SaveSnapshot returned error: %v", err)
		}
		got, err := s.LoadSnapshot(ctx, "snap-1")
		if err != nil {
			t.Fatalf("LoadSnapshot returned error: %v", err)
		}
		if len(got) != 1 || got[0].ID != "x" {
			t.Errorf("expected replaced snapshot, got %v", got)
		}
	})

	t.Run("journal append order", func(t *testing.T) {
		changes := []Change{
			{Seq: 1, Op: OpAssert, Fact: Fact{ID: "a", Attr: "b", Value: "c"}},
			{Seq: 2, Op: OpAssert, Fact: Fact{ID: "d", Attr: "e", Value: "f"}},
			{Seq: 3, Op: OpRetract, Fact: Fact{ID: "a", Attr: "b", Value: "c"}},
		}
		for _, c := range changes {
			if err := s.AppendChange(ctx, "journal-1", c); err != nil {
				t.Fatalf("AppendChange returned error: %v", err)
			}
		}
		got, err := s.Changes(ctx, "journal-1")
		if err != nil {
			t.Fatalf("Changes returned error: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 changes, got %d", len(got))
		}
		for i := range changes {
			if got[i] != changes[i] {
				t.Errorf("change %d = %+v, want %+v", i, got[i], changes[i])
			}
		}
	})

	t.Run("journals are independent", func(t *testing.T) {
		if err := s.AppendChange(ctx, "journal-2", Change{Seq: 1, Op: OpAssert, Fact: Fact{ID: "q", Attr: "r", Value: "s"}}); err != nil {
			t.Fatalf("AppendChange returned error: %v", err)
		}
		got, err := s.Changes(ctx, "journal-2")
		if err != nil {
			t.Fatalf("Changes returned error: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("expected 1 change in journal-2, got %d", len(got))
		}
	})
}
