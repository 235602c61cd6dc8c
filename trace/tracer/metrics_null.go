// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package tracer

import "github.com/flowtrace/client-go/trace"

type nullCounter struct{}

func (nullCounter) Inc(int64) {}

type nullGauge struct{}

func (nullGauge) Update(float64) {}

type nullTimer struct{}

func (nullTimer) Record(int64) {}

type nullMetricsFactory struct{}

// NullMetricsFactory discards everything. It is the default when a Tracer
// is built without WithMetrics.
var NullMetricsFactory trace.MetricsFactory = nullMetricsFactory{}

func (nullMetricsFactory) Counter(string, map[string]string) trace.Counter { return nullCounter{} }
func (nullMetricsFactory) Gauge(string, map[string]string) trace.Gauge     { return nullGauge{} }
func (nullMetricsFactory) Timer(string, map[string]string) trace.Timer    { return nullTimer{} }
