// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package trace

import "net/http"

// Format identifies a carrier encoding registered in a PropagatorRegistry.
// It is a simple string tag rather than a type-parameterized interface (see
// SPEC_FULL.md §9 DESIGN NOTES): the registry stores Format -> codec pairs.
type Format string

// Format identifiers. The default registry has codecs for FormatTextMap and
// FormatHTTPHeaders only; FormatBinary has no built-in codec. Additional
// formats may be registered at runtime.
const (
	FormatTextMap      Format = "text_map"
	FormatHTTPHeaders  Format = "http_headers"
	FormatBinary       Format = "binary"
)

// TextMapWriter sets key/value pairs on an injection carrier. Both the
// TextMap and HTTPHeaders codecs write through this interface; only their
// value encoding (URL-encoding for HTTP) differs.
type TextMapWriter interface {
	Set(key, value string)
}

// TextMapReader iterates over all key/value pairs of an extraction carrier.
// handler returning an error aborts iteration and surfaces the error to the
// caller of Extract.
type TextMapReader interface {
	ForeachKey(handler func(key, value string) error) error
}

// TextMapCarrier adapts a plain map[string]string to TextMapWriter/Reader.
type TextMapCarrier map[string]string

// Set implements TextMapWriter.
func (c TextMapCarrier) Set(key, value string) {
	c[key] = value
}

// ForeachKey implements TextMapReader.
func (c TextMapCarrier) ForeachKey(handler func(key, value string) error) error {
	for k, v := range c {
		if err := handler(k, v); err != nil {
			return err
		}
	}
	return nil
}

// HTTPHeadersCarrier adapts http.Header to TextMapWriter/Reader, matching
// the teacher's own carrier split (DataDog-dd-trace-go:
// ddtrace/tracer/textmap_test.go TestHTTPHeadersCarrierSet/ForeachKey).
type HTTPHeadersCarrier http.Header

// Set implements TextMapWriter.
func (c HTTPHeadersCarrier) Set(key, value string) {
	http.Header(c).Set(key, value)
}

// ForeachKey implements TextMapReader.
func (c HTTPHeadersCarrier) ForeachKey(handler func(key, value string) error) error {
	for k, vals := range c {
		for _, v := range vals {
			if err := handler(k, v); err != nil {
				return err
			}
		}
	}
	return nil
}
