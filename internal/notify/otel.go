package notify

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelBridge forwards every Event as an OTel span event, for ambient
// tracing independent of whatever live subscribers the bus also has.
type OTelBridge struct {
	tracer trace.Tracer
}

// NewOTelBridge wraps tracer. Callers register it by calling Forward for
// every event the bus publishes, typically from a dedicated subscriber
// goroutine rather than synchronously in Publish.
func NewOTelBridge(tracer trace.Tracer) *OTelBridge {
	return &OTelBridge{tracer: tracer}
}

// Forward creates a zero-duration span recording event as an OTel span
// event on the current workflow's span.
func (o *OTelBridge) Forward(event Event) {
	_, span := o.tracer.Start(context.Background(), string(event.Kind))
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("workflow_id", event.WorkflowID),
		attribute.String("node_id", event.NodeID),
		attribute.String("message", event.Message),
	}
	for k, v := range event.Meta {
		attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", v)))
	}
	span.SetAttributes(attrs...)

	if event.Kind == NodeFailed {
		span.SetStatus(codes.Error, event.Message)
	}
}

// Subscribe drives Forward off b's pub/sub for workflowID until ctx is
// cancelled, then unsubscribes.
func (o *OTelBridge) Subscribe(ctx context.Context, b *Bus, workflowID string) {
	ch, unsubscribe := b.Subscribe(workflowID)
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-ch:
				if !ok {
					return
				}
				o.Forward(event)
			}
		}
	}()
}
