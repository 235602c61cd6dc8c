// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package tracer

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowtrace/client-go/internal/log"
)

// strategyResponse mirrors the JSON document described in spec.md §6
// "Sampling strategy endpoint".
type strategyResponse struct {
	StrategyType          string                  `json:"strategyType"`
	ProbabilisticSampling  *probabilisticStrategy  `json:"probabilisticSampling,omitempty"`
	RateLimitingSampling   *rateLimitingStrategy   `json:"rateLimitingSampling,omitempty"`
	OperationSampling      *operationStrategy      `json:"operationSampling,omitempty"`
}

type probabilisticStrategy struct {
	SamplingRate float64 `json:"samplingRate"`
}

type rateLimitingStrategy struct {
	MaxTracesPerSecond float64 `json:"maxTracesPerSecond"`
}

type operationStrategy struct {
	DefaultSamplingProbability   float64                    `json:"defaultSamplingProbability"`
	DefaultLowerBoundTracesPerSecond float64                `json:"defaultLowerBoundTracesPerSecond"`
	PerOperationStrategies       []perOperationStrategyWire `json:"perOperationStrategies"`
}

type perOperationStrategyWire struct {
	Operation             string                `json:"operation"`
	ProbabilisticSampling *probabilisticStrategy `json:"probabilisticSampling"`
}

// StrategyFetcher retrieves the raw JSON strategy document for a service.
// The default implementation issues an HTTP GET; tests substitute a fake.
type StrategyFetcher interface {
	Fetch(serviceName string) ([]byte, error)
}

// httpStrategyFetcher is the reference Sender-adjacent collaborator: a thin
// net/http client, matching the teacher's own transport layer style
// (DataDog-dd-trace-go: ddtrace/tracer/transport_test.go is itself a plain
// net/http client wrapper with no third-party HTTP framework).
type httpStrategyFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStrategyFetcher builds a fetcher against http://host:port.
func NewHTTPStrategyFetcher(hostPort string) StrategyFetcher {
	return &httpStrategyFetcher{
		baseURL: "http://" + hostPort,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *httpStrategyFetcher) Fetch(serviceName string) ([]byte, error) {
	u := f.baseURL + "/?service=" + url.QueryEscape(serviceName)
	resp, err := f.client.Get(u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tracer: strategy endpoint returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// RemoteSampler wraps an inner Sampler that is atomically replaced by a
// background polling task (spec.md §4.2 "Remote"). Before the first
// successful poll, Sample delegates to the initial sampler passed at
// construction.
type RemoteSampler struct {
	serviceName string
	fetcher     StrategyFetcher
	interval    time.Duration
	metrics     *Metrics
	maxOps      int

	inner    atomic.Pointer[Sampler]
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRemoteSampler starts polling immediately in a background goroutine and
// returns. initial is used for every Sample call until the first successful
// refresh completes.
func NewRemoteSampler(serviceName string, fetcher StrategyFetcher, pollingInterval time.Duration, initial Sampler, metrics *Metrics) *RemoteSampler {
	if metrics == nil {
		metrics = newMetrics(NullMetricsFactory)
	}
	rs := &RemoteSampler{
		serviceName: serviceName,
		fetcher:     fetcher,
		interval:    pollingInterval,
		metrics:     metrics,
		stopCh:      make(chan struct{}),
	}
	var s Sampler = initial
	rs.inner.Store(&s)
	rs.wg.Add(1)
	go rs.pollLoop()
	return rs
}

func (rs *RemoteSampler) currentSampler() Sampler {
	return *rs.inner.Load()
}

func (rs *RemoteSampler) Sample(op string, traceID uint64) SamplingStatus {
	return rs.currentSampler().Sample(op, traceID)
}

func (rs *RemoteSampler) Close() {
	rs.stopOnce.Do(func() { close(rs.stopCh) })
	rs.wg.Wait()
	rs.currentSampler().Close()
}

func (rs *RemoteSampler) Equal(Sampler) bool { return false }

func (rs *RemoteSampler) pollLoop() {
	defer rs.wg.Done()
	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()
	rs.refresh()
	for {
		select {
		case <-rs.stopCh:
			return
		case <-ticker.C:
			rs.refresh()
		}
	}
}

func (rs *RemoteSampler) refresh() {
	body, err := rs.fetcher.Fetch(rs.serviceName)
	if err != nil {
		rs.metrics.samplerQueryFailure.Inc(1)
		log.Warn("tracer: %v", &SamplingStrategyError{Phase: "query", Cause: err})
		return
	}
	rs.metrics.samplerRetrieved.Inc(1)

	var resp strategyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		rs.metrics.samplerParsingFailure.Inc(1)
		log.Warn("tracer: %v", &SamplingStrategyError{Phase: "parsing", Cause: err})
		return
	}

	next, err := samplerFromStrategy(resp, rs.currentSampler(), rs.maxOps)
	if err != nil {
		rs.metrics.samplerParsingFailure.Inc(1)
		log.Warn("tracer: %v", &SamplingStrategyError{Phase: "parsing", Cause: err})
		return
	}

	cur := rs.currentSampler()
	if cur == next {
		// PerOperationSampler.update mutates in place; the mapping may have
		// changed but the Sampler identity didn't, so there's nothing to
		// swap or close.
		rs.metrics.samplerUpdated.Inc(1)
		return
	}
	if cur.Equal(next) {
		return
	}
	cur.Close()
	rs.inner.Store(&next)
	rs.metrics.samplerUpdated.Inc(1)
}

// samplerFromStrategy builds (or updates, for the per-operation case) a
// Sampler from a polled strategy document (spec.md §4.2, §6).
func samplerFromStrategy(resp strategyResponse, current Sampler, maxOps int) (Sampler, error) {
	switch resp.StrategyType {
	case "PROBABILISTIC":
		if resp.ProbabilisticSampling == nil {
			return nil, fmt.Errorf("missing probabilisticSampling")
		}
		return NewProbabilisticSampler(resp.ProbabilisticSampling.SamplingRate), nil
	case "RATE_LIMITING":
		if resp.RateLimitingSampling == nil {
			return nil, fmt.Errorf("missing rateLimitingSampling")
		}
		return NewRateLimitingSampler(resp.RateLimitingSampling.MaxTracesPerSecond), nil
	default:
		if resp.OperationSampling == nil {
			return nil, fmt.Errorf("unrecognized strategyType %q", resp.StrategyType)
		}
		op := resp.OperationSampling
		strategies := make([]PerOperationStrategy, len(op.PerOperationStrategies))
		for i, s := range op.PerOperationStrategies {
			rate := 0.0
			if s.ProbabilisticSampling != nil {
				rate = s.ProbabilisticSampling.SamplingRate
			}
			strategies[i] = PerOperationStrategy{Operation: s.Operation, SamplingRate: rate}
		}
		params := PerOperationSamplerParams{
			DefaultSamplingRate:    op.DefaultSamplingProbability,
			DefaultLowerBoundRate:  op.DefaultLowerBoundTracesPerSecond,
			MaxOperations:          maxOps,
			PerOperationStrategies: strategies,
		}
		if existing, ok := current.(*PerOperationSampler); ok {
			existing.update(params)
			return existing, nil
		}
		return NewPerOperationSampler(params), nil
	}
}
