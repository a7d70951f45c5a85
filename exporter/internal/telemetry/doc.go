// Package telemetry holds the exporter's own metrics: gateway call outcomes
// and latency, scrape counts and duration, and the KDP API availability
// ratio over the most recent scrapes.
//
// These series live in a private registry served on a separate path, so the
// KDP document itself only ever carries catalog series.
package telemetry
