package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestObservability(t *testing.T) {
	obs := New("observability-test")
	defer obs.Shutdown()

	ctx, span := obs.StartSpan(context.Background(), "workflow.fill", attribute.String("workflow_id", "deforum-limn"))
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	assert.NotPanics(t, func() {
		obs.RecordJobProcessed(ctx, "prepare-workflow", "success")
		obs.RecordJobDuration(ctx, "prepare-workflow", 15*time.Millisecond, "success")
	})
}

func TestObservability_NilSafe(t *testing.T) {
	var obs *Observability

	_, span := obs.StartSpan(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NotPanics(t, func() {
		obs.RecordJobProcessed(context.Background(), "x", "success")
		obs.RecordJobDuration(context.Background(), "x", time.Millisecond, "success")
	})
}
