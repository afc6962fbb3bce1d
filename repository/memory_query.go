// Package repository предоставляет generic репозиторий с unit-of-work
// семантикой и адаптеры для различных storage backends.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// memorySort ключ сортировки in-memory запроса
type memorySort struct {
	field string
	order SortOrder
}

// MemoryQueryBuilder реализация QueryBuilder для InMemoryStore.
// Условия оцениваются in-process над JSON-представлением entity,
// зеркально обращению data->>'field' у SQL-реализации: поле условия
// соответствует json-тегу поля entity, ключ id - значению ID().
type MemoryQueryBuilder[T Entity] struct {
	store       *InMemoryStore[T]
	conditions  []QueryCondition
	sorts       []memorySort
	limitValue  *int
	offsetValue *int
	nextLogical string
}

// NewMemoryQueryBuilder создает новый MemoryQueryBuilder
func NewMemoryQueryBuilder[T Entity](store *InMemoryStore[T]) *MemoryQueryBuilder[T] {
	return &MemoryQueryBuilder[T]{
		store:       store,
		conditions:  make([]QueryCondition, 0),
		nextLogical: "AND",
	}
}

// Where добавляет условие фильтрации
func (q *MemoryQueryBuilder[T]) Where(field string, op QueryOperator, value interface{}) QueryBuilder[T] {
	q.conditions = append(q.conditions, QueryCondition{
		Field:    field,
		Operator: op,
		Value:    value,
		Logical:  q.nextLogical,
	})
	q.nextLogical = "AND"
	return q
}

// And задает логический оператор AND для следующего условия
func (q *MemoryQueryBuilder[T]) And() QueryBuilder[T] {
	q.nextLogical = "AND"
	return q
}

// Or задает логический оператор OR для следующего условия
func (q *MemoryQueryBuilder[T]) Or() QueryBuilder[T] {
	q.nextLogical = "OR"
	return q
}

// Not инвертирует следующее условие
func (q *MemoryQueryBuilder[T]) Not() QueryBuilder[T] {
	q.nextLogical = "NOT"
	return q
}

// OrderBy добавляет сортировку
func (q *MemoryQueryBuilder[T]) OrderBy(field string, order SortOrder) QueryBuilder[T] {
	q.sorts = append(q.sorts, memorySort{field: field, order: order})
	return q
}

// OrderByDesc добавляет сортировку по убыванию
func (q *MemoryQueryBuilder[T]) OrderByDesc(field string) QueryBuilder[T] {
	return q.OrderBy(field, Desc)
}

// Limit устанавливает лимит результатов
func (q *MemoryQueryBuilder[T]) Limit(limit int) QueryBuilder[T] {
	q.limitValue = &limit
	return q
}

// Offset устанавливает смещение
func (q *MemoryQueryBuilder[T]) Offset(offset int) QueryBuilder[T] {
	q.offsetValue = &offset
	return q
}

// Page устанавливает пагинацию
func (q *MemoryQueryBuilder[T]) Page(page, pageSize int) QueryBuilder[T] {
	offset := (page - 1) * pageSize
	q.Limit(pageSize)
	q.Offset(offset)
	return q
}

// Execute выполняет запрос и возвращает результаты.
// Без явного OrderBy результаты упорядочены по ID, чтобы
// Offset/Limit работали детерминированно.
func (q *MemoryQueryBuilder[T]) Execute(ctx context.Context) ([]T, error) {
	all, err := q.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	type matchedEntity struct {
		entity T
		fields map[string]interface{}
	}

	matched := make([]matchedEntity, 0, len(all))
	for _, entity := range all {
		fields, err := entityFields(entity)
		if err != nil {
			return nil, err
		}

		ok, err := q.matches(fields)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, matchedEntity{entity: entity, fields: fields})
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		for _, s := range q.sorts {
			c := compareFieldValue(matched[i].fields[s.field], matched[j].fields[s.field])
			if c == 0 {
				continue
			}
			if s.order == Desc {
				return c > 0
			}
			return c < 0
		}
		return matched[i].entity.ID() < matched[j].entity.ID()
	})

	start := 0
	if q.offsetValue != nil {
		start = *q.offsetValue
	}
	if start > len(matched) {
		start = len(matched)
	}
	matched = matched[start:]

	if q.limitValue != nil && *q.limitValue < len(matched) {
		matched = matched[:*q.limitValue]
	}

	entities := make([]T, 0, len(matched))
	for _, m := range matched {
		entities = append(entities, m.entity)
	}

	return entities, nil
}

// Count возвращает количество записей, удовлетворяющих условиям.
// Limit и Offset не учитываются.
func (q *MemoryQueryBuilder[T]) Count(ctx context.Context) (int64, error) {
	all, err := q.store.FindAll(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	for _, entity := range all {
		fields, err := entityFields(entity)
		if err != nil {
			return 0, err
		}

		ok, err := q.matches(fields)
		if err != nil {
			return 0, err
		}
		if ok {
			count++
		}
	}

	return count, nil
}

// First возвращает первую запись
func (q *MemoryQueryBuilder[T]) First(ctx context.Context) (T, error) {
	var zero T
	q.Limit(1)
	results, err := q.Execute(ctx)
	if err != nil {
		return zero, err
	}
	if len(results) == 0 {
		return zero, fmt.Errorf("no results found")
	}
	return results[0], nil
}

// Exists проверяет существование записей
func (q *MemoryQueryBuilder[T]) Exists(ctx context.Context) (bool, error) {
	count, err := q.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// matches оценивает всю цепочку условий. OR разбивает цепочку на группы
// AND-условий; результат истинен, если истинна хотя бы одна группа.
// Это повторяет приоритет AND над OR в плоском SQL WHERE clause.
func (q *MemoryQueryBuilder[T]) matches(fields map[string]interface{}) (bool, error) {
	if len(q.conditions) == 0 {
		return true, nil
	}

	anyGroup := false
	groupOK := true
	for i, cond := range q.conditions {
		if i > 0 && cond.Logical == "OR" {
			anyGroup = anyGroup || groupOK
			groupOK = true
		}

		ok, err := evalCondition(cond, fields)
		if err != nil {
			return false, err
		}
		if cond.Logical == "NOT" {
			ok = !ok
		}

		groupOK = groupOK && ok
	}

	return anyGroup || groupOK, nil
}

// entityFields возвращает JSON-представление entity в виде map;
// ключ id всегда несет значение ID()
func entityFields[T Entity](entity T) (map[string]interface{}, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}

	fields := make(map[string]interface{})
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}

	fields["id"] = entity.ID()
	return fields, nil
}

// evalCondition оценивает одно условие над полями entity
func evalCondition(cond QueryCondition, fields map[string]interface{}) (bool, error) {
	value, exists := fields[cond.Field]

	switch cond.Operator {
	case IsNull:
		return !exists || value == nil, nil
	case IsNotNull:
		return exists && value != nil, nil
	case Eq:
		return compareFieldValue(value, cond.Value) == 0, nil
	case NotEq:
		return compareFieldValue(value, cond.Value) != 0, nil
	case Gt:
		return compareFieldValue(value, cond.Value) > 0, nil
	case Gte:
		return compareFieldValue(value, cond.Value) >= 0, nil
	case Lt:
		return compareFieldValue(value, cond.Value) < 0, nil
	case Lte:
		return compareFieldValue(value, cond.Value) <= 0, nil
	case In, NotIn:
		candidates, err := toArgSlice(cond.Value)
		if err != nil {
			return false, fmt.Errorf("IN/NOT IN requires a slice, got %T: %w", cond.Value, err)
		}
		found := false
		for _, candidate := range candidates {
			if compareFieldValue(value, candidate) == 0 {
				found = true
				break
			}
		}
		if cond.Operator == NotIn {
			return !found, nil
		}
		return found, nil
	case Between:
		bounds, err := toArgSlice(cond.Value)
		if err != nil {
			return false, fmt.Errorf("BETWEEN requires a slice with 2 elements, got %T: %w", cond.Value, err)
		}
		if len(bounds) != 2 {
			return false, fmt.Errorf("BETWEEN requires exactly 2 values, got %d", len(bounds))
		}
		return compareFieldValue(value, bounds[0]) >= 0 && compareFieldValue(value, bounds[1]) <= 0, nil
	case Like:
		return likeMatch(fmt.Sprint(value), fmt.Sprint(cond.Value))
	default:
		return false, fmt.Errorf("unknown operator: %s", cond.Operator)
	}
}

// compareFieldValue сравнивает значение поля с операндом условия.
// Числа сравниваются численно, остальное - по текстовому представлению.
func compareFieldValue(fieldValue, condValue interface{}) int {
	if fn, ok := asFloat(fieldValue); ok {
		if cn, ok := asFloat(condValue); ok {
			switch {
			case fn < cn:
				return -1
			case fn > cn:
				return 1
			default:
				return 0
			}
		}
	}

	return strings.Compare(fmt.Sprint(fieldValue), fmt.Sprint(condValue))
}

// asFloat приводит числовое значение любого числового типа к float64
func asFloat(value interface{}) (float64, bool) {
	switch operandKind(value) {
	case reflect.Float64:
		rv := reflect.ValueOf(value)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(rv.Int()), true
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return float64(rv.Uint()), true
		default:
			return rv.Float(), true
		}
	}
	return 0, false
}

// likeMatch транслирует SQL LIKE шаблон (% и _) в regexp и проверяет значение
func likeMatch(value, pattern string) (bool, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	matched, err := regexp.MatchString(b.String(), value)
	if err != nil {
		return false, fmt.Errorf("invalid LIKE pattern %q: %w", pattern, err)
	}
	return matched, nil
}
