// Package server is the presentation-layer boundary. It exposes the latest
// snapshot, poller status and controls, the backend health probe, and active
// alerts over a JSON REST API, and pushes every emitted snapshot to dashboard
// clients over a WebSocket hub. Everything here is read-only over snapshots;
// the pipeline has no back-reference to this package.
package server
