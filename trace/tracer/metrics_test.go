// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryMetricsFactoryCounterAccumulates(t *testing.T) {
	f := NewInMemoryMetricsFactory()
	c := f.Counter("widgets", map[string]string{"color": "red"})
	c.Inc(1)
	c.Inc(2)

	assert.Equal(t, int64(3), f.CounterValue("widgets", map[string]string{"color": "red"}))
	assert.Equal(t, int64(0), f.CounterValue("widgets", map[string]string{"color": "blue"}))
}

func TestInMemoryMetricsFactoryGaugeReportsLastValue(t *testing.T) {
	f := NewInMemoryMetricsFactory()
	g := f.Gauge("queue-depth", nil)
	g.Update(5)
	g.Update(9)

	assert.Equal(t, 9.0, f.GaugeValue("queue-depth", nil))
}

func TestNullMetricsFactoryDiscardsSilently(t *testing.T) {
	c := NullMetricsFactory.Counter("x", nil)
	g := NullMetricsFactory.Gauge("y", nil)
	tm := NullMetricsFactory.Timer("z", nil)
	// Must not panic; nothing observable to assert beyond that.
	c.Inc(1)
	g.Update(1)
	tm.Record(1)
}

func TestNewMetricsWiresEveryCounterToFactory(t *testing.T) {
	f := NewInMemoryMetricsFactory()
	m := newMetrics(f)

	m.tracesStartedSampled.Inc(1)
	m.decodingErrors.Inc(2)
	m.reporterQueue.Update(4)

	assert.Equal(t, int64(1), f.CounterValue("traces", map[string]string{"state": "started", "sampled": "y"}))
	assert.Equal(t, int64(2), f.CounterValue("decoding-errors", nil))
	assert.Equal(t, 4.0, f.GaugeValue("reporter-queue", nil))
}
