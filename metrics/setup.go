// Package metrics предоставляет функции для настройки системы метрик.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Config конфигурация метрик
type Config struct {
	ExporterType  string // пока поддерживается только "prometheus"
	ResourceAttrs map[string]string
}

// Setup настраивает экспорт метрик и регистрирует глобальный MeterProvider
func Setup(config *Config) (*metric.MeterProvider, error) {
	if config == nil {
		config = &Config{ExporterType: "prometheus"}
	}

	var reader metric.Reader
	switch config.ExporterType {
	case "prometheus", "":
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		reader = exporter
	default:
		return nil, fmt.Errorf("unknown exporter type: %s", config.ExporterType)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(buildResourceAttributes(config.ResourceAttrs)...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := metric.NewMeterProvider(
		metric.WithReader(reader),
		metric.WithResource(res),
	)

	otel.SetMeterProvider(provider)

	return provider, nil
}

// buildResourceAttributes преобразует map в атрибуты ресурса
func buildResourceAttributes(attrs map[string]string) []attribute.KeyValue {
	result := make([]attribute.KeyValue, 0, len(attrs)+1)
	result = append(result, attribute.String("service.name", "storekit"))
	for k, v := range attrs {
		result = append(result, attribute.String(k, v))
	}
	return result
}
