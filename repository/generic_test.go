package repository

import (
	"context"
	"testing"

	"github.com/akriventsev/storekit/notify"
)

// assignTestID присваивает сгенерированный ID тестовой entity
func assignTestID(e TestEntity, id string) TestEntity {
	e.IDField = id
	return e
}

func newTestRepository(publisher notify.Publisher) (*GenericRepository[TestEntity], *InMemoryStore[TestEntity]) {
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	repo := NewGenericRepository[TestEntity](store, GenericConfig[TestEntity]{
		AssignID:  assignTestID,
		Publisher: publisher,
	})
	return repo, store
}

func TestGenericRepository_Add_AssignsID(t *testing.T) {
	repo, _ := newTestRepository(nil)
	ctx := context.Background()

	added, err := repo.Add(ctx, TestEntity{Name: "Test"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if added.ID() == "" {
		t.Error("Expected generated ID")
	}
}

func TestGenericRepository_Add_KeepsCallerID(t *testing.T) {
	repo, _ := newTestRepository(nil)
	ctx := context.Background()

	added, err := repo.Add(ctx, TestEntity{IDField: "caller-1", Name: "Test"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if added.ID() != "caller-1" {
		t.Errorf("Expected ID 'caller-1', got %s", added.ID())
	}
}

func TestGenericRepository_Add_EmptyID_NoAssigner(t *testing.T) {
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	repo := NewGenericRepository[TestEntity](store, GenericConfig[TestEntity]{})
	ctx := context.Background()

	if _, err := repo.Add(ctx, TestEntity{Name: "Test"}); err == nil {
		t.Error("Expected error for empty ID without assigner")
	}
}

func TestGenericRepository_StagedNotVisibleBeforeSave(t *testing.T) {
	repo, _ := newTestRepository(nil)
	ctx := context.Background()

	added, err := repo.Add(ctx, TestEntity{Name: "Test"})
	if err != nil {
		t.Fatalf("Failed to add entity: %v", err)
	}

	_, found, err := repo.Get(ctx, added.ID())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if found {
		t.Error("Staged entity must not be visible before SaveChanges")
	}
	if repo.Pending() != 1 {
		t.Errorf("Expected 1 pending change, got %d", repo.Pending())
	}
}

func TestGenericRepository_SaveChanges_RoundTrip(t *testing.T) {
	repo, _ := newTestRepository(nil)
	ctx := context.Background()

	added, err := repo.Add(ctx, TestEntity{Name: "Test"})
	if err != nil {
		t.Fatalf("Failed to add entity: %v", err)
	}

	if err := repo.SaveChanges(ctx); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if repo.Pending() != 0 {
		t.Errorf("Expected 0 pending changes after save, got %d", repo.Pending())
	}

	found, exists, err := repo.Get(ctx, added.ID())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !exists {
		t.Fatal("Expected entity to exist after SaveChanges")
	}
	if found != added {
		t.Errorf("Round-trip mismatch: added %+v, got %+v", added, found)
	}
}

func TestGenericRepository_SaveChanges_Empty(t *testing.T) {
	repo, _ := newTestRepository(nil)
	ctx := context.Background()

	if err := repo.SaveChanges(ctx); err != nil {
		t.Errorf("Expected no error for empty journal, got %v", err)
	}
}

func TestGenericRepository_Update(t *testing.T) {
	repo, _ := newTestRepository(nil)
	ctx := context.Background()

	added, _ := repo.Add(ctx, TestEntity{Name: "Before"})
	if err := repo.SaveChanges(ctx); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	if _, err := repo.Update(ctx, TestEntity{IDField: added.ID(), Name: "After"}); err != nil {
		t.Fatalf("Failed to update: %v", err)
	}
	if err := repo.SaveChanges(ctx); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	found, _, _ := repo.Get(ctx, added.ID())
	if found.Name != "After" {
		t.Errorf("Expected Name 'After', got %s", found.Name)
	}
}

func TestGenericRepository_Update_EmptyID(t *testing.T) {
	repo, _ := newTestRepository(nil)
	ctx := context.Background()

	if _, err := repo.Update(ctx, TestEntity{Name: "Test"}); err == nil {
		t.Error("Expected error for empty ID")
	}
}

func TestGenericRepository_SaveChanges_FailureKeepsJournal(t *testing.T) {
	repo, store := newTestRepository(nil)
	ctx := context.Background()

	// Insert валиден, update указывает на несуществующую entity
	if _, err := repo.Add(ctx, TestEntity{IDField: "new-1", Name: "New"}); err != nil {
		t.Fatalf("Failed to add: %v", err)
	}
	if _, err := repo.Update(ctx, TestEntity{IDField: "missing", Name: "Ghost"}); err != nil {
		t.Fatalf("Failed to stage update: %v", err)
	}

	if err := repo.SaveChanges(ctx); err == nil {
		t.Fatal("Expected SaveChanges to fail")
	}
	if repo.Pending() != 2 {
		t.Errorf("Expected journal to be kept after failure, got %d pending", repo.Pending())
	}

	// Пакет отклонен целиком
	_, exists, _ := store.FindByID(ctx, "new-1")
	if exists {
		t.Error("Expected no partial commit")
	}

	repo.Discard()
	if repo.Pending() != 0 {
		t.Errorf("Expected 0 pending after Discard, got %d", repo.Pending())
	}
}

func TestGenericRepository_All(t *testing.T) {
	repo, _ := newTestRepository(nil)
	ctx := context.Background()

	for _, n := range []int{0, 1, 5} {
		store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
		repo = NewGenericRepository[TestEntity](store, GenericConfig[TestEntity]{AssignID: assignTestID})

		for i := 0; i < n; i++ {
			if _, err := repo.Add(ctx, TestEntity{Name: "Test"}); err != nil {
				t.Fatalf("Failed to add: %v", err)
			}
		}
		if err := repo.SaveChanges(ctx); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}

		all, err := repo.All(ctx)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(all) != n {
			t.Errorf("Expected %d entities, got %d", n, len(all))
		}
	}
}

func TestGenericRepository_Find(t *testing.T) {
	repo, _ := newTestRepository(nil)
	ctx := context.Background()

	_, _ = repo.Add(ctx, TestEntity{IDField: "test-1", Name: "Match"})
	_, _ = repo.Add(ctx, TestEntity{IDField: "test-2", Name: "Other"})
	_, _ = repo.Add(ctx, TestEntity{IDField: "test-3", Name: "Match"})
	if err := repo.SaveChanges(ctx); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	results, err := repo.Find(ctx, func(e TestEntity) bool {
		return e.Name == "Match"
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results))
	}
	for _, e := range results {
		if e.Name != "Match" {
			t.Errorf("Unexpected entity in results: %+v", e)
		}
	}
}

func TestGenericRepository_Find_NilPredicate(t *testing.T) {
	repo, _ := newTestRepository(nil)
	ctx := context.Background()

	if _, err := repo.Find(ctx, nil); err == nil {
		t.Error("Expected error for nil predicate")
	}
}

// stagedRecorder фиксирует дельты очереди мутаций
type stagedRecorder struct {
	store string
	total int64
}

func (r *stagedRecorder) AddStaged(ctx context.Context, store string, delta int64) {
	r.store = store
	r.total += delta
}

func TestGenericRepository_StagedGauge(t *testing.T) {
	recorder := &stagedRecorder{}
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	repo := NewGenericRepository[TestEntity](store, GenericConfig[TestEntity]{
		AssignID: assignTestID,
		Staged:   recorder,
	})
	ctx := context.Background()

	added, err := repo.Add(ctx, TestEntity{Name: "First"})
	if err != nil {
		t.Fatalf("Failed to add: %v", err)
	}
	if _, err := repo.Add(ctx, TestEntity{Name: "Second"}); err != nil {
		t.Fatalf("Failed to add: %v", err)
	}
	if recorder.total != 2 {
		t.Errorf("Expected 2 staged after adds, got %d", recorder.total)
	}

	if err := repo.SaveChanges(ctx); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if recorder.total != 0 {
		t.Errorf("Expected 0 staged after save, got %d", recorder.total)
	}
	if recorder.store != "inmemory-store" {
		t.Errorf("Expected store label 'inmemory-store', got %s", recorder.store)
	}

	if _, err := repo.Update(ctx, TestEntity{IDField: added.ID(), Name: "Changed"}); err != nil {
		t.Fatalf("Failed to stage update: %v", err)
	}
	if recorder.total != 1 {
		t.Errorf("Expected 1 staged after update, got %d", recorder.total)
	}

	repo.Discard()
	if recorder.total != 0 {
		t.Errorf("Expected 0 staged after discard, got %d", recorder.total)
	}
}

func TestGenericRepository_StagedGauge_KeptOnFailedSave(t *testing.T) {
	recorder := &stagedRecorder{}
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	repo := NewGenericRepository[TestEntity](store, GenericConfig[TestEntity]{
		AssignID: assignTestID,
		Staged:   recorder,
	})
	ctx := context.Background()

	if _, err := repo.Update(ctx, TestEntity{IDField: "missing", Name: "Ghost"}); err != nil {
		t.Fatalf("Failed to stage update: %v", err)
	}

	if err := repo.SaveChanges(ctx); err == nil {
		t.Fatal("Expected SaveChanges to fail")
	}
	if recorder.total != 1 {
		t.Errorf("Expected staged count to survive failed save, got %d", recorder.total)
	}
}

// reentrantPublisher обращается к репозиторию из Publish
type reentrantPublisher struct {
	repo    *GenericRepository[TestEntity]
	pending int
	called  bool
}

func (p *reentrantPublisher) Publish(ctx context.Context, event notify.ChangeEvent) error {
	p.pending = p.repo.Pending()
	p.called = true
	return nil
}

func TestGenericRepository_PublisherMayUseRepository(t *testing.T) {
	publisher := &reentrantPublisher{}
	store := NewInMemoryStore[TestEntity](DefaultInMemoryConfig())
	repo := NewGenericRepository[TestEntity](store, GenericConfig[TestEntity]{
		AssignID:  assignTestID,
		Publisher: publisher,
	})
	publisher.repo = repo
	ctx := context.Background()

	if _, err := repo.Add(ctx, TestEntity{Name: "Test"}); err != nil {
		t.Fatalf("Failed to add: %v", err)
	}

	// Publish вызывается после освобождения mu, поэтому publisher
	// может читать состояние репозитория без deadlock
	if err := repo.SaveChanges(ctx); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	if !publisher.called {
		t.Fatal("Expected publisher to be called")
	}
	if publisher.pending != 0 {
		t.Errorf("Expected 0 pending during publish, got %d", publisher.pending)
	}
}

func TestGenericRepository_PublishesCommittedChanges(t *testing.T) {
	watcher := notify.NewWatcher()
	defer func() {
		_ = watcher.Close()
	}()

	events, unsubscribe := watcher.Subscribe(4)
	defer unsubscribe()

	repo, _ := newTestRepository(watcher)
	ctx := context.Background()

	added, _ := repo.Add(ctx, TestEntity{Name: "Test"})
	if err := repo.SaveChanges(ctx); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	select {
	case event := <-events:
		if event.Operation != notify.OpInsert {
			t.Errorf("Expected insert event, got %s", event.Operation)
		}
		if event.EntityID != added.ID() {
			t.Errorf("Expected entity ID %s, got %s", added.ID(), event.EntityID)
		}
	default:
		t.Fatal("Expected a change event after SaveChanges")
	}
}
