package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestRecorder 返回一个使用手动读取器的 Recorder，便于断言计数
func newTestRecorder(t *testing.T) (*Recorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	r, err := New(provider.Meter("test"))
	require.NoError(t, err)
	return r, reader
}

func sums(t *testing.T, reader *sdkmetric.ManualReader) map[string][]metricdata.DataPoint[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string][]metricdata.DataPoint[int64])
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s should be an int64 sum", m.Name)
			out[m.Name] = sum.DataPoints
		}
	}
	return out
}

func total(points []metricdata.DataPoint[int64]) int64 {
	var n int64
	for _, p := range points {
		n += p.Value
	}
	return n
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	r, reader := newTestRecorder(t)

	r.EventRead(ctx)
	r.EventRead(ctx)
	r.FileOpened(ctx, false)
	r.FileOpened(ctx, true)
	r.FileClosed(ctx, 100, false)
	r.FileClosed(ctx, 50, true)
	r.Repair(ctx, OutcomeRepaired)
	r.Repair(ctx, OutcomeIntact)
	r.Repair(ctx, OutcomeIntact)

	got := sums(t, reader)
	assert.Equal(t, int64(2), total(got["pces.events.read"]))
	assert.Equal(t, int64(150), total(got["pces.bytes.read"]))
	assert.Equal(t, int64(2), total(got["pces.files.opened"]))
	assert.Len(t, got["pces.files.opened"], 2, "tolerant and strict opens are separate series")
	assert.Equal(t, int64(1), total(got["pces.files.damaged"]))

	byOutcome := make(map[string]int64)
	for _, p := range got["pces.repairs"] {
		v, ok := p.Attributes.Value(attribute.Key("outcome"))
		require.True(t, ok)
		byOutcome[v.AsString()] = p.Value
	}
	assert.Equal(t, map[string]int64{OutcomeRepaired: 1, OutcomeIntact: 2}, byOutcome)
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	ctx := context.Background()
	assert.NotPanics(t, func() {
		r.EventRead(ctx)
		r.FileOpened(ctx, true)
		r.FileClosed(ctx, 1, true)
		r.Repair(ctx, OutcomeFailed)
	})
}

func TestSetupWithoutEndpoint(t *testing.T) {
	r, shutdown, err := Setup(context.Background(), ExportConfig{ServiceName: "test"})
	require.NoError(t, err)
	assert.NotNil(t, r)
	assert.NoError(t, shutdown(context.Background()))
}
