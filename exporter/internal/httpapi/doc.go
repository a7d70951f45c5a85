// Package httpapi implements the exporter's HTTP surface.
//
// New(scraper, self, logger) returns an http.Handler that serves:
//
//	GET /                  landing page with links
//	GET /metrics           runs one scrape and returns the KDP document
//	GET /healthz           resource resolution state and last scrape summary (JSON)
//	GET /exporter/metrics  the exporter's own metrics
//
// /metrics answers 200 even when the KDP API is down: the document then
// carries only HELP and TYPE lines, and missing samples are the outage signal.
package httpapi
