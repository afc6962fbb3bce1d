package repository

import (
	"context"
	"testing"
)

func TestStoreFactory_CreateInMemory(t *testing.T) {
	factory := NewStoreFactory()

	store, err := CreateStore[Entity](factory, "inmemory", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if store == nil {
		t.Fatal("Expected store instance")
	}

	if _, err := store.FindAll(context.Background()); err != nil {
		t.Errorf("Expected working store, got %v", err)
	}
}

func TestStoreFactory_CreateInMemory_WithConfig(t *testing.T) {
	factory := NewStoreFactory()

	store, err := CreateStore[Entity](factory, "inmemory", InMemoryConfig{MaxEntities: 10})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if store == nil {
		t.Fatal("Expected store instance")
	}
}

func TestStoreFactory_UnknownType(t *testing.T) {
	factory := NewStoreFactory()

	if _, err := CreateStore[Entity](factory, "cassandra", nil); err == nil {
		t.Error("Expected error for unknown store type")
	}
}

func TestStoreFactory_PostgresRequiresMapper(t *testing.T) {
	factory := NewStoreFactory()

	if _, err := CreateStore[Entity](factory, "postgres", nil); err == nil {
		t.Error("Expected error: postgres store is created via NewPostgresStore")
	}
}

func TestStoreFactory_Register(t *testing.T) {
	factory := NewStoreFactory()

	err := factory.Register("custom", func(config interface{}) (interface{}, error) {
		return NewInMemoryStore[Entity](DefaultInMemoryConfig()), nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	store, err := CreateStore[Entity](factory, "custom", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if store == nil {
		t.Fatal("Expected store instance")
	}
}

func TestStoreFactory_Register_Duplicate(t *testing.T) {
	factory := NewStoreFactory()

	creator := func(config interface{}) (interface{}, error) {
		return NewInMemoryStore[Entity](DefaultInMemoryConfig()), nil
	}
	if err := factory.Register("custom", creator); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := factory.Register("custom", creator); err == nil {
		t.Error("Expected error for duplicate registration")
	}
}

func TestStoreFactory_Register_EmptyName(t *testing.T) {
	factory := NewStoreFactory()

	err := factory.Register("", func(config interface{}) (interface{}, error) {
		return nil, nil
	})
	if err == nil {
		t.Error("Expected error for empty adapter name")
	}
}

func TestStoreFactory_Register_NilCreator(t *testing.T) {
	factory := NewStoreFactory()

	if err := factory.Register("custom", nil); err == nil {
		t.Error("Expected error for nil creator")
	}
}

func TestStoreFactory_TypeMismatch(t *testing.T) {
	factory := NewStoreFactory()

	// Store создан для Entity, запрошен для TestEntity
	err := factory.Register("entity-only", func(config interface{}) (interface{}, error) {
		return NewInMemoryStore[Entity](DefaultInMemoryConfig()), nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, err := CreateStore[TestEntity](factory, "entity-only", nil); err == nil {
		t.Error("Expected error for store type mismatch")
	}
}
