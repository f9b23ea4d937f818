// Package api hosts the HTTP server, middleware, and REST handlers.
// Notable routes:
//   - POST /scrape runs a crawl and report pipeline synchronously.
//   - GET /download/{filename} serves a generated markdown report.
//   - GET /v1/runs and /v1/runs/{id} list recorded crawl runs.
//   - GET /v1/reports/{filename}/pages splits a report into page sections.
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
package api
