package tracing

import (
	"context"
	"testing"

	"github.com/richxcame/trustx/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TracingConfig{Enabled: false}, "trustx-api", "test", "test")

	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_EnabledWithoutEndpoint(t *testing.T) {
	_, err := Init(context.Background(), config.TracingConfig{Enabled: true}, "trustx-api", "test", "test")
	assert.Error(t, err)
}

func TestStartSpan_NoopProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "detection", "detect", attribute.String("input_kind", "text"))
	defer span.End()

	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
}
