// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package tracer

import (
	"net/url"
	"strings"
	"sync"

	"github.com/flowtrace/client-go/internal/log"
	"github.com/flowtrace/client-go/trace"
)

// Default header/key names (spec.md §4.1, §6). Each codec holds its own copy
// of all three, but NewTextMapPropagator and NewHTTPHeadersPropagator always
// use these defaults; no exported constructor or option sets other values.
const (
	DefaultStateHeaderKey  = "uber-trace-id"
	DefaultDebugHeaderKey  = "jaeger-debug-id"
	DefaultBaggagePrefix   = "uberctx-"
)

// Injector writes a SpanContext into a carrier.
type Injector interface {
	Inject(sc SpanContext, carrier interface{}) error
}

// Extractor reads a SpanContext out of a carrier.
type Extractor interface {
	Extract(carrier interface{}) (SpanContext, error)
}

// normalizeBaggageKey applies the write-time key normalization described in
// spec.md §4.1: underscores become hyphens, then the whole key is
// lowercased. Reads never apply this: the TextMap codec uses the wire key
// verbatim as the baggage key, and the HTTP-headers codec only lowercases it.
func normalizeBaggageKey(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "_", "-"))
}

// textMapCodec implements the TextMap codec (spec.md §4.1). urlEncode
// toggles the HTTP-headers variant's value encoding; the two codecs are
// otherwise identical, matching the teacher's own TextMapCarrier /
// HTTPHeadersCarrier split (DataDog-dd-trace-go: ddtrace/tracer/textmap_test.go).
type textMapCodec struct {
	headerKey     string
	debugHeaderKey string
	baggagePrefix string
	urlEncode     bool
	caseSensitive bool
}

func newTextMapCodec(urlEncode bool) *textMapCodec {
	return &textMapCodec{
		headerKey:      DefaultStateHeaderKey,
		debugHeaderKey: DefaultDebugHeaderKey,
		baggagePrefix:  DefaultBaggagePrefix,
		urlEncode:      urlEncode,
		caseSensitive:  !urlEncode, // HTTP headers codec compares case-insensitively
	}
}

func (c *textMapCodec) Inject(sc SpanContext, carrier interface{}) error {
	writer, ok := carrier.(trace.TextMapWriter)
	if !ok {
		return &UnsupportedFormatError{Format: "text map writer"}
	}
	if !sc.IsDebugIDContainerOnly() {
		writer.Set(c.headerKey, sc.String())
	}
	sc.ForeachBaggageItem(func(k, v string) bool {
		key := c.baggagePrefix + normalizeBaggageKey(k)
		value := v
		if c.urlEncode {
			value = url.QueryEscape(value)
		}
		writer.Set(key, value)
		return true
	})
	return nil
}

func (c *textMapCodec) Extract(carrier interface{}) (SpanContext, error) {
	reader, ok := carrier.(trace.TextMapReader)
	if !ok {
		return SpanContext{}, &UnsupportedFormatError{Format: "text map reader"}
	}

	var (
		stateValue string
		debugValue string
		found      bool
		baggage    map[string]string
	)
	err := reader.ForeachKey(func(k, v string) error {
		key := k
		if !c.caseSensitive {
			key = strings.ToLower(key)
		}
		switch {
		case key == lowerIfInsensitive(c.headerKey, c.caseSensitive):
			stateValue, found = v, true
		case key == lowerIfInsensitive(c.debugHeaderKey, c.caseSensitive):
			debugValue = v
		case strings.HasPrefix(key, lowerIfInsensitive(c.baggagePrefix, c.caseSensitive)):
			if baggage == nil {
				baggage = make(map[string]string)
			}
			// For the case-sensitive TextMap codec, slice the original key
			// to preserve whatever case the carrier holds. For the
			// case-insensitive HTTP-headers codec, slice the already
			// lowercased key instead: net/http's Header type canonicalizes
			// key case on Set (e.g. "uberctx-k" becomes "Uberctx-K"), which
			// would otherwise corrupt the recovered baggage key's case on
			// every round trip.
			name := k[len(c.baggagePrefix):]
			if !c.caseSensitive {
				name = key[len(c.baggagePrefix):]
			}
			value := v
			if c.urlEncode {
				if decoded, derr := url.QueryUnescape(v); derr == nil {
					value = decoded
				}
			}
			baggage[name] = value
		}
		return nil
	})
	if err != nil {
		return SpanContext{}, err
	}

	if !found {
		if debugValue != "" {
			return newDebugIDContainer(debugValue), nil
		}
		return SpanContext{}, &EmptyStateError{}
	}
	sc, perr := ParseSpanContext(stateValue)
	if perr != nil {
		log.Warn("tracer: %v", perr)
		return SpanContext{}, perr
	}
	if len(baggage) > 0 {
		sc.baggage = baggage
	}
	return sc, nil
}

func lowerIfInsensitive(s string, caseSensitive bool) string {
	if caseSensitive {
		return s
	}
	return strings.ToLower(s)
}

// NewTextMapPropagator returns the TextMap codec, used as both injector and
// extractor against a map[string]string-shaped carrier.
func NewTextMapPropagator() *textMapCodec { return newTextMapCodec(false) }

// NewHTTPHeadersPropagator returns the HTTP-headers codec: case-insensitive
// keys, URL-encoded baggage values.
func NewHTTPHeadersPropagator() *textMapCodec { return newTextMapCodec(true) }

// PropagatorRegistry maps a carrier format identifier to its injector and
// extractor (spec.md §4.1 "Registry"). Reads (Inject, Extract) take the
// shared read lock; writes (Register) take the exclusive lock, matching the
// "read-mostly" contract in spec.md §5.
type PropagatorRegistry struct {
	mu         sync.RWMutex
	injectors  map[trace.Format]Injector
	extractors map[trace.Format]Extractor
}

// NewPropagatorRegistry returns a registry pre-populated with the TextMap
// and HTTPHeaders codecs.
func NewPropagatorRegistry() *PropagatorRegistry {
	r := &PropagatorRegistry{
		injectors:  make(map[trace.Format]Injector),
		extractors: make(map[trace.Format]Extractor),
	}
	tm := NewTextMapPropagator()
	hh := NewHTTPHeadersPropagator()
	r.Register(trace.FormatTextMap, tm, tm)
	r.Register(trace.FormatHTTPHeaders, hh, hh)
	return r
}

// Register installs a codec for format, replacing any existing one.
func (r *PropagatorRegistry) Register(format trace.Format, injector Injector, extractor Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.injectors[format] = injector
	r.extractors[format] = extractor
}

func (r *PropagatorRegistry) Inject(format trace.Format, sc SpanContext, carrier interface{}) error {
	r.mu.RLock()
	injector, ok := r.injectors[format]
	r.mu.RUnlock()
	if !ok {
		return &UnsupportedFormatError{Format: format}
	}
	return injector.Inject(sc, carrier)
}

func (r *PropagatorRegistry) Extract(format trace.Format, carrier interface{}) (SpanContext, error) {
	r.mu.RLock()
	extractor, ok := r.extractors[format]
	r.mu.RUnlock()
	if !ok {
		return SpanContext{}, &UnsupportedFormatError{Format: format}
	}
	return extractor.Extract(carrier)
}
