// Package tracing provides the shared OTel tracer helper.
//
// Without a registered TracerProvider the global no-op provider is used and
// every call is inert.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "erm"

// Attribute keys shared by the graph and schema layers.
const (
	AttrWorkspaceID = attribute.Key("erm.workspace.id")
	AttrOperation   = attribute.Key("erm.op")
	AttrEntityType  = attribute.Key("erm.entity.type")
	AttrEdgeType    = attribute.Key("erm.edge.type")
)

// Start creates a child span of the span in ctx, or a root span when ctx
// carries none. Callers must End the span.
//
//	ctx, span := tracing.Start(ctx, "graph.traverse",
//	    tracing.AttrWorkspaceID.String(actor.WorkspaceID),
//	)
//	defer span.End()
func Start(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError marks span as failed when err is non-nil and returns err.
func RecordError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
