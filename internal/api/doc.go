// Package api hosts the read-only status server for a running crawl.
// Routes:
//   - GET /healthz and /readyz for probes; readyz reports 503 once the run
//     has been asked to stop.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for the current run counters.
//   - GET /v1/visited/{title} to check whether an article is already mapped.
package api
