// Package config loads and watches the poller configuration file (config.yaml).
//
// Top-level types:
//   - Config — backend_url, refresh_interval, http_port, queries [],
//     thresholds {}, webhooks []
//   - Query — name, expr, group_by (device|mountpoint|mode, empty for none)
//   - Thresholds — warning_pct, critical_pct severity cut-offs per metric
//   - Webhook — type (slack|http), url_env; URL() resolves from the environment
//
// Load(path) reads the YAML file, applies defaults (15s refresh, port 8080),
// clamps the refresh interval to [5s, 60s], then validates required fields
// and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. Only the refresh interval, threshold
// overrides, and webhooks are meant to be applied at runtime; the query
// catalog is fixed at startup.
package config
