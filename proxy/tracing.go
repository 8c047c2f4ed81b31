package proxy

import (
	ot "github.com/opentracing/opentracing-go"
	ext "github.com/opentracing/opentracing-go/ext"
)

// Span tag names emitted on the forwarding span, mirroring skipper's
// proxy/tracing.go but scoped to this core's own entities rather than
// skipper's route/filter model.
const (
	RouteIDTag       = "proxy.route_id"
	ClusterIDTag     = "proxy.cluster_id"
	DestinationIDTag = "proxy.destination_id"
	ErrorTag         = "error"
)

// setTag is a nil-safe span.SetTag, since a ProxyContext built without a
// tracer attached carries a nil span.
func setTag(span ot.Span, key string, value interface{}) {
	if span == nil {
		return
	}
	span.SetTag(key, value)
}

// finishSpan sets the tags Forward always reports before returning, then
// marks the span's error status from the outcome.
func finishSpan(span ot.Span, routeID string, clusterID string, destination string, errFeature *ForwarderErrorFeature) {
	if span == nil {
		return
	}

	setTag(span, RouteIDTag, routeID)
	setTag(span, ClusterIDTag, clusterID)
	if destination != "" {
		setTag(span, DestinationIDTag, destination)
	}

	if errFeature != nil && errFeature.Error != ErrNone {
		ext.Error.Set(span, true)
		setTag(span, ErrorTag, errFeature.String())
	}
}
