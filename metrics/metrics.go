// Package metrics records event stream reading and repair activity with
// OpenTelemetry instruments.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/xmh1011/go-pces"

// Repair outcomes.
const (
	OutcomeRepaired  = "repaired"
	OutcomeIntact    = "intact"
	OutcomeAnomalous = "anomalous"
	OutcomeFailed    = "failed"
)

// Recorder holds the instruments. A nil *Recorder records nothing.
type Recorder struct {
	eventsRead   metric.Int64Counter
	bytesRead    metric.Int64Counter
	filesOpened  metric.Int64Counter
	damagedFiles metric.Int64Counter
	repairs      metric.Int64Counter
}

// New creates the instruments on meter.
func New(meter metric.Meter) (*Recorder, error) {
	var (
		r   Recorder
		err error
	)
	if r.eventsRead, err = meter.Int64Counter("pces.events.read",
		metric.WithDescription("Events returned by stream iterators"),
		metric.WithUnit("{event}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create events counter: %w", err)
	}
	if r.bytesRead, err = meter.Int64Counter("pces.bytes.read",
		metric.WithDescription("Bytes consumed from event stream files"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, fmt.Errorf("failed to create bytes counter: %w", err)
	}
	if r.filesOpened, err = meter.Int64Counter("pces.files.opened",
		metric.WithDescription("Event stream files opened for reading"),
		metric.WithUnit("{file}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create files counter: %w", err)
	}
	if r.damagedFiles, err = meter.Int64Counter("pces.files.damaged",
		metric.WithDescription("Files found without a terminal hash"),
		metric.WithUnit("{file}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create damaged files counter: %w", err)
	}
	if r.repairs, err = meter.Int64Counter("pces.repairs",
		metric.WithDescription("Repair attempts by outcome"),
		metric.WithUnit("{file}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create repairs counter: %w", err)
	}
	return &r, nil
}

// Default creates a Recorder on the global meter provider.
func Default() (*Recorder, error) {
	return New(otel.Meter(instrumentationName))
}

func (r *Recorder) EventRead(ctx context.Context) {
	if r == nil {
		return
	}
	r.eventsRead.Add(ctx, 1)
}

func (r *Recorder) FileOpened(ctx context.Context, tolerant bool) {
	if r == nil {
		return
	}
	r.filesOpened.Add(ctx, 1, metric.WithAttributes(attribute.Bool("tolerant", tolerant)))
}

// FileClosed records the bytes a finished file contributed.
func (r *Recorder) FileClosed(ctx context.Context, bytes int64, damaged bool) {
	if r == nil {
		return
	}
	r.bytesRead.Add(ctx, bytes)
	if damaged {
		r.damagedFiles.Add(ctx, 1)
	}
}

func (r *Recorder) Repair(ctx context.Context, outcome string) {
	if r == nil {
		return
	}
	r.repairs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
