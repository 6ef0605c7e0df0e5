// Package api hosts the operator HTTP surface. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /status for checkpoint position and run counters.
//   - GET /errors for the per-seed error log.
package api
