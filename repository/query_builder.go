// Package repository предоставляет generic репозиторий с unit-of-work
// семантикой и адаптеры для различных storage backends.
package repository

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// QueryOperator оператор для фильтрации
type QueryOperator string

const (
	Eq        QueryOperator = "="
	NotEq     QueryOperator = "!="
	Gt        QueryOperator = ">"
	Gte       QueryOperator = ">="
	Lt        QueryOperator = "<"
	Lte       QueryOperator = "<="
	In        QueryOperator = "IN"
	NotIn     QueryOperator = "NOT IN"
	Like      QueryOperator = "LIKE"
	Between   QueryOperator = "BETWEEN"
	IsNull    QueryOperator = "IS NULL"
	IsNotNull QueryOperator = "IS NOT NULL"
)

// SortOrder порядок сортировки
type SortOrder string

const (
	Asc  SortOrder = "ASC"
	Desc SortOrder = "DESC"
)

// QueryCondition условие запроса
type QueryCondition struct {
	Field    string
	Operator QueryOperator
	Value    interface{}
	Logical  string // AND, OR, NOT
}

// QueryBuilder интерфейс для построения запросов с трансляцией
// в язык конкретного хранилища
type QueryBuilder[T Entity] interface {
	Where(field string, op QueryOperator, value interface{}) QueryBuilder[T]
	And() QueryBuilder[T]
	Or() QueryBuilder[T]
	Not() QueryBuilder[T]
	OrderBy(field string, order SortOrder) QueryBuilder[T]
	OrderByDesc(field string) QueryBuilder[T]
	Limit(limit int) QueryBuilder[T]
	Offset(offset int) QueryBuilder[T]
	Page(page, pageSize int) QueryBuilder[T]
	Execute(ctx context.Context) ([]T, error)
	Count(ctx context.Context) (int64, error)
	First(ctx context.Context) (T, error)
	Exists(ctx context.Context) (bool, error)
}

// toArgSlice безопасно конвертирует значение в []interface{}.
// Поддерживает []interface{} напрямую и любые срезы через reflection.
func toArgSlice(value interface{}) ([]interface{}, error) {
	if value == nil {
		return nil, fmt.Errorf("value cannot be nil")
	}

	if slice, ok := value.([]interface{}); ok {
		return slice, nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("value must be a slice, got %T", value)
	}

	result := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		result[i] = rv.Index(i).Interface()
	}

	return result, nil
}

// SQLQueryBuilder реализация QueryBuilder для PostgreSQL.
// Условия транслируются в выражения над JSONB колонкой data;
// сравнение выполняется над текстовым представлением поля.
type SQLQueryBuilder[T Entity] struct {
	db          *pgx.Conn
	mapper      Mapper[T]
	config      PostgresConfig
	conditions  []QueryCondition
	orderBy     []string
	limitValue  *int
	offsetValue *int
	nextLogical string
}

// NewSQLQueryBuilder создает новый SQLQueryBuilder
func NewSQLQueryBuilder[T Entity](db *pgx.Conn, mapper Mapper[T], config PostgresConfig) *SQLQueryBuilder[T] {
	return &SQLQueryBuilder[T]{
		db:          db,
		mapper:      mapper,
		config:      config,
		conditions:  make([]QueryCondition, 0),
		orderBy:     make([]string, 0),
		nextLogical: "AND",
	}
}

// columnRef возвращает SQL-выражение для поля entity
func (q *SQLQueryBuilder[T]) columnRef(field string) string {
	if field == "id" {
		return "id"
	}
	return fmt.Sprintf("data->>'%s'", field)
}

// typedColumnRef возвращает SQL-выражение поля с приведением к типу операнда.
// data->>'field' имеет тип text; у text нет операторов сравнения с числовыми
// и булевыми параметрами, поэтому такие операнды требуют явного cast.
func (q *SQLQueryBuilder[T]) typedColumnRef(field string, value interface{}) string {
	column := q.columnRef(field)
	if field == "id" {
		return column
	}

	switch operandKind(value) {
	case reflect.Float64:
		return fmt.Sprintf("(%s)::numeric", column)
	case reflect.Bool:
		return fmt.Sprintf("(%s)::boolean", column)
	}

	return column
}

// orderRef возвращает SQL-выражение поля для сортировки.
// jsonb-значение сохраняет тип поля, числа сортируются численно.
func (q *SQLQueryBuilder[T]) orderRef(field string) string {
	if field == "id" {
		return "id"
	}
	return fmt.Sprintf("data->'%s'", field)
}

// operandKind сводит тип операнда к Float64 (числа), Bool или Invalid
func operandKind(value interface{}) reflect.Kind {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return reflect.Float64
	case reflect.Bool:
		return reflect.Bool
	}
	return reflect.Invalid
}

// Where добавляет условие фильтрации
func (q *SQLQueryBuilder[T]) Where(field string, op QueryOperator, value interface{}) QueryBuilder[T] {
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
func (q *SQLQueryBuilder[T]) And() QueryBuilder[T] {
	q.nextLogical = "AND"
	return q
}

// Or задает логический оператор OR для следующего условия
func (q *SQLQueryBuilder[T]) Or() QueryBuilder[T] {
	q.nextLogical = "OR"
	return q
}

// Not оборачивает следующее условие в NOT (condition)
func (q *SQLQueryBuilder[T]) Not() QueryBuilder[T] {
	q.nextLogical = "NOT"
	return q
}

// OrderBy добавляет сортировку
func (q *SQLQueryBuilder[T]) OrderBy(field string, order SortOrder) QueryBuilder[T] {
	q.orderBy = append(q.orderBy, fmt.Sprintf("%s %s", q.orderRef(field), order))
	return q
}

// OrderByDesc добавляет сортировку по убыванию
func (q *SQLQueryBuilder[T]) OrderByDesc(field string) QueryBuilder[T] {
	return q.OrderBy(field, Desc)
}

// Limit устанавливает лимит результатов
func (q *SQLQueryBuilder[T]) Limit(limit int) QueryBuilder[T] {
	q.limitValue = &limit
	return q
}

// Offset устанавливает смещение
func (q *SQLQueryBuilder[T]) Offset(offset int) QueryBuilder[T] {
	q.offsetValue = &offset
	return q
}

// Page устанавливает пагинацию
func (q *SQLQueryBuilder[T]) Page(page, pageSize int) QueryBuilder[T] {
	offset := (page - 1) * pageSize
	q.Limit(pageSize)
	q.Offset(offset)
	return q
}

// buildWhereClause строит WHERE clause
func (q *SQLQueryBuilder[T]) buildWhereClause() (string, []interface{}, error) {
	if len(q.conditions) == 0 {
		return "", nil, nil
	}

	var parts []string
	args := make([]interface{}, 0)
	argIndex := 1

	for i, cond := range q.conditions {
		logical := cond.Logical

		var conditionPart string
		switch cond.Operator {
		case IsNull, IsNotNull:
			conditionPart = fmt.Sprintf("%s %s", q.columnRef(cond.Field), cond.Operator)
		case Between:
			values, err := toArgSlice(cond.Value)
			if err != nil {
				return "", nil, fmt.Errorf("BETWEEN requires a slice with 2 elements, got %T: %w", cond.Value, err)
			}
			if len(values) != 2 {
				return "", nil, fmt.Errorf("BETWEEN requires exactly 2 values, got %d", len(values))
			}
			column := q.typedColumnRef(cond.Field, values[0])
			conditionPart = fmt.Sprintf("%s BETWEEN $%d AND $%d", column, argIndex, argIndex+1)
			args = append(args, values[0], values[1])
			argIndex += 2
		case In, NotIn:
			values, err := toArgSlice(cond.Value)
			if err != nil {
				return "", nil, fmt.Errorf("IN/NOT IN requires a slice, got %T: %w", cond.Value, err)
			}
			if len(values) == 0 {
				return "", nil, fmt.Errorf("IN/NOT IN requires at least one value")
			}
			placeholders := make([]string, len(values))
			for j := range values {
				placeholders[j] = fmt.Sprintf("$%d", argIndex)
				args = append(args, values[j])
				argIndex++
			}
			column := q.typedColumnRef(cond.Field, values[0])
			conditionPart = fmt.Sprintf("%s %s (%s)", column, cond.Operator, strings.Join(placeholders, ", "))
		default:
			column := q.typedColumnRef(cond.Field, cond.Value)
			conditionPart = fmt.Sprintf("%s %s $%d", column, cond.Operator, argIndex)
			args = append(args, cond.Value)
			argIndex++
		}

		if logical == "NOT" {
			conditionPart = fmt.Sprintf("NOT (%s)", conditionPart)
			logical = "AND"
		}

		if i > 0 {
			parts = append(parts, fmt.Sprintf("%s %s", logical, conditionPart))
		} else {
			parts = append(parts, conditionPart)
		}
	}

	return "WHERE " + strings.Join(parts, " "), args, nil
}

// BuildQuery строит SQL запрос (экспортирован для тестирования)
func (q *SQLQueryBuilder[T]) BuildQuery() (string, []interface{}, error) {
	var parts []string
	args := make([]interface{}, 0)

	parts = append(parts, "SELECT data FROM", q.config.tableRef())

	whereClause, whereArgs, err := q.buildWhereClause()
	if err != nil {
		return "", nil, err
	}
	if whereClause != "" {
		parts = append(parts, whereClause)
		args = append(args, whereArgs...)
	}

	if len(q.orderBy) > 0 {
		parts = append(parts, "ORDER BY", strings.Join(q.orderBy, ", "))
	}

	if q.limitValue != nil {
		parts = append(parts, fmt.Sprintf("LIMIT %d", *q.limitValue))
	}

	if q.offsetValue != nil {
		parts = append(parts, fmt.Sprintf("OFFSET %d", *q.offsetValue))
	}

	return strings.Join(parts, " "), args, nil
}

// Execute выполняет запрос и возвращает результаты
func (q *SQLQueryBuilder[T]) Execute(ctx context.Context) ([]T, error) {
	query, args, err := q.BuildQuery()
	if err != nil {
		return nil, err
	}

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	store := PostgresStore[T]{config: q.config, mapper: q.mapper}
	return store.collectRows(rows)
}

// Count возвращает количество записей
func (q *SQLQueryBuilder[T]) Count(ctx context.Context) (int64, error) {
	var parts []string
	args := make([]interface{}, 0)

	parts = append(parts, "SELECT COUNT(*) FROM", q.config.tableRef())

	whereClause, whereArgs, err := q.buildWhereClause()
	if err != nil {
		return 0, err
	}
	if whereClause != "" {
		parts = append(parts, whereClause)
		args = append(args, whereArgs...)
	}

	var count int64
	if err := q.db.QueryRow(ctx, strings.Join(parts, " "), args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}

	return count, nil
}

// First возвращает первую запись
func (q *SQLQueryBuilder[T]) First(ctx context.Context) (T, error) {
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
func (q *SQLQueryBuilder[T]) Exists(ctx context.Context) (bool, error) {
	count, err := q.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MongoQueryBuilder реализация QueryBuilder для MongoDB
type MongoQueryBuilder[T Entity] struct {
	collection *mongo.Collection
	config     MongoConfig
	filter     bson.M
	orFilters  []bson.M
	sort       bson.D
	limitValue *int64
	skipValue  *int64
	nextOr     bool
	nextNot    bool
}

// NewMongoQueryBuilder создает новый MongoQueryBuilder
func NewMongoQueryBuilder[T Entity](collection *mongo.Collection, config MongoConfig) *MongoQueryBuilder[T] {
	return &MongoQueryBuilder[T]{
		collection: collection,
		config:     config,
		filter:     bson.M{},
		sort:       bson.D{},
	}
}

// operatorFilter транслирует оператор в bson-выражение
func operatorFilter(op QueryOperator, value interface{}) interface{} {
	switch op {
	case Eq:
		return value
	case NotEq:
		return bson.M{"$ne": value}
	case Gt:
		return bson.M{"$gt": value}
	case Gte:
		return bson.M{"$gte": value}
	case Lt:
		return bson.M{"$lt": value}
	case Lte:
		return bson.M{"$lte": value}
	case In:
		return bson.M{"$in": value}
	case NotIn:
		return bson.M{"$nin": value}
	case Like:
		return bson.M{"$regex": value, "$options": "i"}
	case IsNull:
		return nil
	case IsNotNull:
		return bson.M{"$ne": nil}
	default:
		return value
	}
}

// Where добавляет условие фильтрации
func (q *MongoQueryBuilder[T]) Where(field string, op QueryOperator, value interface{}) QueryBuilder[T] {
	expr := operatorFilter(op, value)
	if q.nextNot {
		if m, ok := expr.(bson.M); ok {
			expr = bson.M{"$not": m}
		} else {
			expr = bson.M{"$ne": expr}
		}
		q.nextNot = false
	}

	if q.nextOr {
		q.orFilters = append(q.orFilters, bson.M{field: expr})
		q.nextOr = false
		return q
	}

	q.filter[field] = expr
	return q
}

// And задает логический оператор AND (условия объединяются AND по умолчанию)
func (q *MongoQueryBuilder[T]) And() QueryBuilder[T] {
	q.nextOr = false
	return q
}

// Or помещает следующее условие в ветку $or
func (q *MongoQueryBuilder[T]) Or() QueryBuilder[T] {
	q.nextOr = true
	return q
}

// Not инвертирует следующее условие через $not
func (q *MongoQueryBuilder[T]) Not() QueryBuilder[T] {
	q.nextNot = true
	return q
}

// OrderBy добавляет сортировку
func (q *MongoQueryBuilder[T]) OrderBy(field string, order SortOrder) QueryBuilder[T] {
	direction := 1
	if order == Desc {
		direction = -1
	}
	q.sort = append(q.sort, bson.E{Key: field, Value: direction})
	return q
}

// OrderByDesc добавляет сортировку по убыванию
func (q *MongoQueryBuilder[T]) OrderByDesc(field string) QueryBuilder[T] {
	return q.OrderBy(field, Desc)
}

// Limit устанавливает лимит результатов
func (q *MongoQueryBuilder[T]) Limit(limit int) QueryBuilder[T] {
	limit64 := int64(limit)
	q.limitValue = &limit64
	return q
}

// Offset устанавливает смещение
func (q *MongoQueryBuilder[T]) Offset(offset int) QueryBuilder[T] {
	offset64 := int64(offset)
	q.skipValue = &offset64
	return q
}

// Page устанавливает пагинацию
func (q *MongoQueryBuilder[T]) Page(page, pageSize int) QueryBuilder[T] {
	offset := (page - 1) * pageSize
	q.Limit(pageSize)
	q.Offset(offset)
	return q
}

// BuildFilter строит итоговый bson-фильтр (экспортирован для тестирования)
func (q *MongoQueryBuilder[T]) BuildFilter() bson.M {
	if len(q.orFilters) == 0 {
		return q.filter
	}

	branches := make([]bson.M, 0, len(q.orFilters)+1)
	if len(q.filter) > 0 {
		branches = append(branches, q.filter)
	}
	branches = append(branches, q.orFilters...)

	return bson.M{"$or": branches}
}

// Execute выполняет запрос и возвращает результаты
func (q *MongoQueryBuilder[T]) Execute(ctx context.Context) ([]T, error) {
	opts := options.Find()

	if len(q.sort) > 0 {
		opts.SetSort(q.sort)
	}
	if q.limitValue != nil {
		opts.SetLimit(*q.limitValue)
	}
	if q.skipValue != nil {
		opts.SetSkip(*q.skipValue)
	}

	cursor, err := q.collection.Find(ctx, q.BuildFilter(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var entities []T
	if err := cursor.All(ctx, &entities); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}

	return entities, nil
}

// Count возвращает количество записей
func (q *MongoQueryBuilder[T]) Count(ctx context.Context) (int64, error) {
	count, err := q.collection.CountDocuments(ctx, q.BuildFilter())
	if err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return count, nil
}

// First возвращает первую запись
func (q *MongoQueryBuilder[T]) First(ctx context.Context) (T, error) {
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
func (q *MongoQueryBuilder[T]) Exists(ctx context.Context) (bool, error) {
	count, err := q.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
