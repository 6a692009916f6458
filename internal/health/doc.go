// Package health probes the metrics backend's own /metrics exposition
// endpoint to answer "is the backend reachable and ingesting?". The result
// backs the dashboard's connection-status indicator; probe failures never
// affect the poll loop.
package health
