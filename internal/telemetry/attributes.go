// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by spans across the application.
const (
	RunIDKey   = "aircheck.run_id"
	CountryKey = "aircheck.country"

	StreamNameKey = "stream.name"
	StreamURLKey  = "stream.url"
	StreamFileKey = "stream.file"

	RecordReasonKey = "record.reason"
	RecordBytesKey  = "record.bytes"
	RecordChunksKey = "record.chunks"

	CatalogEndpointKey = "catalog.endpoint"
	CatalogStatusKey   = "catalog.status_code"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// RunAttributes builds the span attributes identifying one recording run.
func RunAttributes(runID, country string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RunIDKey, runID),
		attribute.String(CountryKey, country),
	}
}

// StreamAttributes builds the span attributes for one stream recording.
func StreamAttributes(name, url string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(StreamNameKey, name),
		attribute.String(StreamURLKey, url),
	}
}

// OutcomeAttributes builds the span attributes for a finished recording.
func OutcomeAttributes(reason string, bytes int64, chunks int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RecordReasonKey, reason),
		attribute.Int64(RecordBytesKey, bytes),
		attribute.Int(RecordChunksKey, chunks),
	}
}

// ErrorAttributes marks a span as failed with a typed error.
func ErrorAttributes(errType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errType),
	}
}
