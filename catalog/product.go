// Package catalog демонстрирует специализацию generic репозитория
// для конкретного типа entity через композицию.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/akriventsev/storekit/core"
	"github.com/akriventsev/storekit/notify"
	"github.com/akriventsev/storekit/repository"
)

// Product товар каталога
type Product struct {
	ProductID string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Price     float64   `json:"price" bson:"price"`
	SKU       string    `json:"sku" bson:"sku"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// ID возвращает идентификатор товара
func (p Product) ID() string {
	return p.ProductID
}

// withID присваивает товару сгенерированный идентификатор
func withID(p Product, id string) Product {
	p.ProductID = id
	return p
}

// ProductMapper преобразует Product в database row и обратно
// для PostgreSQL store
type ProductMapper struct{}

// ToRow преобразует товар в row
func (m *ProductMapper) ToRow(p Product) (map[string]interface{}, error) {
	return map[string]interface{}{
		"id":         p.ProductID,
		"name":       p.Name,
		"price":      p.Price,
		"sku":        p.SKU,
		"created_at": p.CreatedAt.Format(time.RFC3339Nano),
	}, nil
}

// FromRow преобразует row в товар
func (m *ProductMapper) FromRow(row map[string]interface{}) (Product, error) {
	p := Product{}
	if id, ok := row["id"].(string); ok {
		p.ProductID = id
	}
	if name, ok := row["name"].(string); ok {
		p.Name = name
	}
	if price, ok := row["price"].(float64); ok {
		p.Price = price
	}
	if sku, ok := row["sku"].(string); ok {
		p.SKU = sku
	}
	if raw, ok := row["created_at"].(string); ok {
		createdAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Product{}, fmt.Errorf("failed to parse created_at: %w", err)
		}
		p.CreatedAt = createdAt
	}
	return p, nil
}

// ProductRepository специализация generic репозитория для товаров.
// Базовая механика делегируется встроенному GenericRepository;
// переопределен только Update.
type ProductRepository struct {
	*repository.GenericRepository[Product]
}

// NewProductRepository создает репозиторий товаров поверх store.
// publisher может быть nil.
func NewProductRepository(store repository.Store[Product], publisher notify.Publisher) *ProductRepository {
	base := repository.NewGenericRepository[Product](store, repository.GenericConfig[Product]{
		AssignID:  withID,
		Publisher: publisher,
	})
	return &ProductRepository{GenericRepository: base}
}

// Update загружает авторитетную сохраненную версию товара и применяет
// только whitelisted поля: Name и Price. ID, SKU и CreatedAt
// caller изменить не может.
func (r *ProductRepository) Update(ctx context.Context, input Product) (Product, error) {
	if input.Price < 0 {
		return Product{}, fmt.Errorf("product price cannot be negative")
	}

	stored, found, err := r.Get(ctx, input.ID())
	if err != nil {
		return Product{}, fmt.Errorf("failed to load product %s: %w", input.ID(), err)
	}
	if !found {
		return Product{}, core.NewError(core.ErrNotFound, fmt.Sprintf("product not found: %s", input.ID()))
	}

	stored.Name = input.Name
	stored.Price = input.Price

	return r.GenericRepository.Update(ctx, stored)
}
