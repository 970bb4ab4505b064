package jaeger

import (
	"fmt"

	"go.opentelemetry.io/otel/exporters/jaeger"
)

const defaultEndpoint = "http://jaeger:14268/api/traces"

// NewExporter creates a Jaeger collector exporter. An empty endpoint uses the
// in-cluster collector address.
func NewExporter(endpoint string) (*jaeger.Exporter, error) {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(
		jaeger.WithEndpoint(endpoint),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create jaeger exporter: %w", err)
	}

	return exp, nil
}
