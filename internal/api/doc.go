// Package api hosts the HTTP status server for operator access.
// Notable routes:
//   - GET /healthz and /readyz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for run-wide progress and live worker activity.
//   - GET /v1/seasons for the per-season completion breakdown.
package api
