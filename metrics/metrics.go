// Package metrics предоставляет систему метрик на основе OpenTelemetry.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/akriventsev/storekit/repository"
)

// Metrics передается в repository.GenericConfig.Staged для учета
// очереди незакоммиченных мутаций
var _ repository.StagedGauge = (*Metrics)(nil)

// Metrics сборщик метрик операций репозитория
type Metrics struct {
	meter         metric.Meter
	opsTotal      metric.Int64Counter
	opDuration    metric.Float64Histogram
	errorsTotal   metric.Int64Counter
	stagedChanges metric.Int64UpDownCounter
}

// NewMetrics создает новый сборщик метрик
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("storekit")

	opsTotal, err := meter.Int64Counter(
		"repository_operations_total",
		metric.WithDescription("Total number of repository operations"),
	)
	if err != nil {
		return nil, err
	}

	opDuration, err := meter.Float64Histogram(
		"repository_operation_duration_seconds",
		metric.WithDescription("Repository operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errorsTotal, err := meter.Int64Counter(
		"repository_errors_total",
		metric.WithDescription("Total number of repository operation errors"),
	)
	if err != nil {
		return nil, err
	}

	stagedChanges, err := meter.Int64UpDownCounter(
		"repository_staged_changes",
		metric.WithDescription("Number of staged uncommitted changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		meter:         meter,
		opsTotal:      opsTotal,
		opDuration:    opDuration,
		errorsTotal:   errorsTotal,
		stagedChanges: stagedChanges,
	}, nil
}

// RecordOperation записывает выполнение операции хранилища
func (m *Metrics) RecordOperation(ctx context.Context, store, op string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("store", store),
		attribute.String("operation", op),
	)

	m.opsTotal.Add(ctx, 1, attrs)
	m.opDuration.Record(ctx, duration.Seconds(), attrs)

	if err != nil {
		m.errorsTotal.Add(ctx, 1, attrs)
	}
}

// AddStaged изменяет счетчик незакоммиченных мутаций
func (m *Metrics) AddStaged(ctx context.Context, store string, delta int64) {
	m.stagedChanges.Add(ctx, delta, metric.WithAttributes(
		attribute.String("store", store),
	))
}
