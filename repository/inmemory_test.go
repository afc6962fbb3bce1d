package repository

import (
	"context"
	"testing"

	"github.com/akriventsev/storekit/core"
)

// TestEntity для тестирования
type TestEntity struct {
	IDField string
	Name    string
}

func (e TestEntity) ID() string {
	return e.IDField
}

func TestInMemoryStore_Insert(t *testing.T) {
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	entity := TestEntity{IDField: "test-1", Name: "Test"}
	if err := store.Insert(ctx, entity); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestInMemoryStore_Insert_EmptyID(t *testing.T) {
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	entity := TestEntity{IDField: "", Name: "Test"}
	if err := store.Insert(ctx, entity); err == nil {
		t.Error("Expected error for empty ID")
	}
}

func TestInMemoryStore_Insert_Duplicate(t *testing.T) {
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	entity := TestEntity{IDField: "test-1", Name: "Test"}
	if err := store.Insert(ctx, entity); err != nil {
		t.Fatalf("Failed to insert entity: %v", err)
	}

	err := store.Insert(ctx, entity)
	if err == nil {
		t.Fatal("Expected error for duplicate ID")
	}
	if !core.IsAlreadyExists(err) {
		t.Errorf("Expected ALREADY_EXISTS error, got %v", err)
	}
}

func TestInMemoryStore_Insert_LimitReached(t *testing.T) {
	store := NewInMemoryStore[TestEntity](InMemoryConfig{MaxEntities: 1})
	ctx := context.Background()

	if err := store.Insert(ctx, TestEntity{IDField: "test-1"}); err != nil {
		t.Fatalf("Failed to insert entity: %v", err)
	}

	if err := store.Insert(ctx, TestEntity{IDField: "test-2"}); err == nil {
		t.Error("Expected error when limit reached")
	}
}

func TestInMemoryStore_Update(t *testing.T) {
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	if err := store.Insert(ctx, TestEntity{IDField: "test-1", Name: "Before"}); err != nil {
		t.Fatalf("Failed to insert entity: %v", err)
	}

	if err := store.Update(ctx, TestEntity{IDField: "test-1", Name: "After"}); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	found, exists, err := store.FindByID(ctx, "test-1")
	if err != nil {
		t.Fatalf("Failed to find entity: %v", err)
	}
	if !exists {
		t.Fatal("Expected entity to exist")
	}
	if found.Name != "After" {
		t.Errorf("Expected Name 'After', got %s", found.Name)
	}
}

func TestInMemoryStore_Update_NotFound(t *testing.T) {
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	err := store.Update(ctx, TestEntity{IDField: "nonexistent"})
	if err == nil {
		t.Fatal("Expected error for nonexistent entity")
	}
	if !core.IsNotFound(err) {
		t.Errorf("Expected NOT_FOUND error, got %v", err)
	}
}

func TestInMemoryStore_FindByID_NotFound(t *testing.T) {
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	_, found, err := store.FindByID(ctx, "nonexistent")
	if err != nil {
		t.Errorf("Expected no error for absent entity, got %v", err)
	}
	if found {
		t.Error("Expected found to be false")
	}
}

func TestInMemoryStore_FindAll(t *testing.T) {
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	all, err := store.FindAll(ctx)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if len(all) != 0 {
		t.Errorf("Expected 0 entities, got %d", len(all))
	}

	if err := store.Insert(ctx, TestEntity{IDField: "test-1", Name: "Test1"}); err != nil {
		t.Fatalf("Failed to insert entity: %v", err)
	}
	if err := store.Insert(ctx, TestEntity{IDField: "test-2", Name: "Test2"}); err != nil {
		t.Fatalf("Failed to insert entity: %v", err)
	}

	all, err = store.FindAll(ctx)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 entities, got %d", len(all))
	}

	seen := make(map[string]bool)
	for _, entity := range all {
		if seen[entity.ID()] {
			t.Errorf("Duplicate entity in FindAll: %s", entity.ID())
		}
		seen[entity.ID()] = true
	}
}

func TestInMemoryStore_Find(t *testing.T) {
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	if err := store.Insert(ctx, TestEntity{IDField: "test-1", Name: "Match"}); err != nil {
		t.Fatalf("Failed to insert entity: %v", err)
	}
	if err := store.Insert(ctx, TestEntity{IDField: "test-2", Name: "Other"}); err != nil {
		t.Fatalf("Failed to insert entity: %v", err)
	}

	results, err := store.Find(ctx, func(e TestEntity) bool {
		return e.Name == "Match"
	})
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].ID() != "test-1" {
		t.Errorf("Expected ID 'test-1', got %s", results[0].ID())
	}
}

func TestInMemoryStore_Apply(t *testing.T) {
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	changes := []Change[TestEntity]{
		{Kind: ChangeInsert, Entity: TestEntity{IDField: "test-1", Name: "First"}},
		{Kind: ChangeUpdate, Entity: TestEntity{IDField: "test-1", Name: "Second"}},
	}
	if err := store.Apply(ctx, changes); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	found, exists, _ := store.FindByID(ctx, "test-1")
	if !exists {
		t.Fatal("Expected entity to exist")
	}
	if found.Name != "Second" {
		t.Errorf("Expected Name 'Second', got %s", found.Name)
	}
}

func TestInMemoryStore_Apply_AtomicValidation(t *testing.T) {
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	// Update несуществующей entity должен отклонить весь пакет
	changes := []Change[TestEntity]{
		{Kind: ChangeInsert, Entity: TestEntity{IDField: "test-1", Name: "First"}},
		{Kind: ChangeUpdate, Entity: TestEntity{IDField: "missing"}},
	}
	err := store.Apply(ctx, changes)
	if err == nil {
		t.Fatal("Expected error for update of missing entity")
	}
	if !core.IsNotFound(err) {
		t.Errorf("Expected NOT_FOUND error, got %v", err)
	}

	_, exists, _ := store.FindByID(ctx, "test-1")
	if exists {
		t.Error("Expected no partial application of the batch")
	}
}

func TestInMemoryStore_Delete(t *testing.T) {
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	if err := store.Insert(ctx, TestEntity{IDField: "test-1", Name: "Test"}); err != nil {
		t.Fatalf("Failed to insert entity: %v", err)
	}

	if err := store.Delete(ctx, "test-1"); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	_, exists, _ := store.FindByID(ctx, "test-1")
	if exists {
		t.Error("Expected entity to be deleted")
	}
}

func TestInMemoryStore_Delete_NotFound(t *testing.T) {
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	if err := store.Delete(ctx, "nonexistent"); err == nil {
		t.Error("Expected error for nonexistent entity")
	}
}

func TestInMemoryStore_AddIndex(t *testing.T) {
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	if err := store.Insert(ctx, TestEntity{IDField: "test-1", Name: "Shared"}); err != nil {
		t.Fatalf("Failed to insert entity: %v", err)
	}
	if err := store.Insert(ctx, TestEntity{IDField: "test-2", Name: "Shared"}); err != nil {
		t.Fatalf("Failed to insert entity: %v", err)
	}

	store.AddIndex("name", func(e TestEntity) string {
		return e.Name
	})

	results, err := store.FindByIndex(ctx, "name", "Shared")
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results))
	}
}

func TestInMemoryStore_FindByIndex_IndexNotFound(t *testing.T) {
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	if _, err := store.FindByIndex(ctx, "nonexistent", "key"); err == nil {
		t.Error("Expected error for nonexistent index")
	}
}

func TestInMemoryStore_Index_FollowsUpdate(t *testing.T) {
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	store.AddIndex("name", func(e TestEntity) string {
		return e.Name
	})

	if err := store.Insert(ctx, TestEntity{IDField: "test-1", Name: "Before"}); err != nil {
		t.Fatalf("Failed to insert entity: %v", err)
	}
	if err := store.Update(ctx, TestEntity{IDField: "test-1", Name: "After"}); err != nil {
		t.Fatalf("Failed to update entity: %v", err)
	}

	before, _ := store.FindByIndex(ctx, "name", "Before")
	if len(before) != 0 {
		t.Errorf("Expected 0 results for stale key, got %d", len(before))
	}

	after, _ := store.FindByIndex(ctx, "name", "After")
	if len(after) != 1 {
		t.Errorf("Expected 1 result for new key, got %d", len(after))
	}
}

func TestInMemoryStore_Count(t *testing.T) {
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	count, err := store.Count(ctx)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if count != 0 {
		t.Errorf("Expected count 0, got %d", count)
	}

	if err := store.Insert(ctx, TestEntity{IDField: "test-1", Name: "Test"}); err != nil {
		t.Fatalf("Failed to insert entity: %v", err)
	}

	count, _ = store.Count(ctx)
	if count != 1 {
		t.Errorf("Expected count 1, got %d", count)
	}
}

func TestInMemoryStore_Clear(t *testing.T) {
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	ctx := context.Background()

	if err := store.Insert(ctx, TestEntity{IDField: "test-1", Name: "Test"}); err != nil {
		t.Fatalf("Failed to insert entity: %v", err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	count, _ := store.Count(ctx)
	if count != 0 {
		t.Errorf("Expected count 0 after clear, got %d", count)
	}
}
