package telemetry

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys shared by the use cases.
const (
	AttrRouteRequested  = attribute.Key("route.requested")
	AttrRouteSkipped    = attribute.Key("route.skipped")
	AttrRouteStops      = attribute.Key("route.stops")
	AttrAnalyticsCached = attribute.Key("analytics.cached")
)
