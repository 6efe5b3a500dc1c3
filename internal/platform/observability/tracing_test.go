package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{ServiceName: "discussion"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartEndSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := Tracer
	Tracer = tp.Tracer("test")
	t.Cleanup(func() { Tracer = prev })

	_, span := StartSpan(context.Background(), "comments.Create", attribute.String("post_id", "p1"))
	EndSpan(span, nil)
	_, span = StartSpan(context.Background(), "comments.Edit")
	EndSpan(span, errors.New("store down"))

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "comments.Create", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String("post_id", "p1"))
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "store down", ended[1].Status().Description)
}
