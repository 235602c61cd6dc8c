// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

// Command tracerdemo wires up a Tracer against the example in-process
// collaborators (InMemoryReporter, ExpvarMetricsFactory) and emits a small
// trace to stdout, demonstrating the span-builder algorithm end to end
// without requiring a real collector.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/flowtrace/client-go/trace"
	"github.com/flowtrace/client-go/trace/tracer"
)

func main() {
	reporter := tracer.NewInMemoryReporter()
	metrics := tracer.NewExpvarMetricsFactory()

	tr, err := tracer.NewTracer(
		"tracerdemo",
		tracer.NewProbabilisticSampler(1),
		reporter,
		tracer.WithMetrics(metrics),
		tracer.WithProcessTags(map[string]interface{}{"tracerdemo.version": "dev"}),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tracerdemo:", err)
		os.Exit(1)
	}
	defer tr.Close()

	root := tr.StartSpan("handle-request")
	root.SetTag("http.method", "GET")
	root.SetBaggageItem("request-id", "demo-1")

	carrier := trace.TextMapCarrier{}
	if err := tr.Inject(root.Context(), trace.FormatTextMap, carrier); err != nil {
		fmt.Fprintln(os.Stderr, "tracerdemo: inject failed:", err)
	}

	remoteCtx, err := tr.Extract(trace.FormatTextMap, carrier)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tracerdemo: extract failed:", err)
		os.Exit(1)
	}

	child := tr.StartSpan("call-downstream", tracer.ChildOf(remoteCtx))
	child.SetTag("peer.service", "inventory")
	child.Finish()

	root.Finish()

	for _, span := range reporter.Spans() {
		fmt.Printf("span=%q trace=%s duration=%dns tags=%v\n",
			span.OperationName(), span.Context(), span.DurationNanos(), span.Tags())
	}

	if len(os.Args) > 1 && os.Args[1] == "-serve-vars" {
		fmt.Fprintln(os.Stderr, "tracerdemo: serving /debug/vars on :6060")
		http.ListenAndServe(":6060", nil)
	}
}
