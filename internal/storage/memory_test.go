package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"renovationAi/internal/renovation"
)

func TestInMemoryStoreSaveAndList(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	materials := []renovation.MaterialSuggestion{renovation.NewMaterialSuggestion("Subway Tile", "")}
	first, err := store.SaveProject(ctx, Project{SessionID: "s1", Room: "Kitchen", Update: "Paint", Summary: "one", Materials: materials})
	if err != nil {
		t.Fatalf("SaveProject returned error: %v", err)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Errorf("Expected id and timestamp to be assigned, got %+v", first)
	}
	materials[0].Item = "mutated"

	second, _ := store.SaveProject(ctx, Project{SessionID: "s2", Summary: "two"})

	list, err := store.ListProjects(ctx, 0)
	if err != nil {
		t.Fatalf("ListProjects returned error: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("Expected newest first, got %+v", list)
	}

	got, err := store.GetProject(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetProject returned error: %v", err)
	}
	if got.Materials[0].Item != "Subway Tile" {
		t.Errorf("Stored project must not alias caller slices, got %q", got.Materials[0].Item)
	}

	if _, err := store.GetProject(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryStoreCapsHistory(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	for i := 0; i < defaultListLimit+5; i++ {
		if _, err := store.SaveProject(ctx, Project{SessionID: fmt.Sprintf("s%d", i)}); err != nil {
			t.Fatalf("SaveProject returned error: %v", err)
		}
	}
	list, _ := store.ListProjects(ctx, 1000)
	if len(list) != defaultListLimit {
		t.Errorf("Expected %d projects, got %d", defaultListLimit, len(list))
	}
	limited, _ := store.ListProjects(ctx, 3)
	if len(limited) != 3 || limited[0].SessionID != fmt.Sprintf("s%d", defaultListLimit+4) {
		t.Errorf("Unexpected limited list %+v", limited)
	}
}

func TestNewStoreWithoutDatabase(t *testing.T) {
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*InMemoryStore); !ok {
		t.Errorf("Expected in-memory store, got %T", store)
	}
}
