// Package telemetry turns runtime.Events into OpenTelemetry spans, one
// span per event rather than per open interval.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gearforge/gearforge/internal/runtime"
)

// Sink implements runtime.Sink by recording one point-in-time span per
// event. Spans are started and ended immediately since runtime.Events
// mark instants, not open intervals.
type Sink struct {
	tracer trace.Tracer
}

// NewSink returns a Sink using tracer, typically obtained via
// otel.Tracer("gearforge").
func NewSink(tracer trace.Tracer) *Sink {
	return &Sink{tracer: tracer}
}

func (s *Sink) Observe(ev runtime.Event) {
	_, span := s.tracer.Start(context.Background(), string(ev.Type))
	defer span.End()

	span.SetAttributes(
		attribute.String("run_id", ev.RunID),
		attribute.String("node_id", ev.NodeID),
	)

	if ev.Err != nil {
		span.SetStatus(codes.Error, ev.Err.Message)
		span.RecordError(fmt.Errorf("%s", ev.Err.Message))
	}
}
