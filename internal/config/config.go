package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultRefreshInterval = 15 * time.Second
	DefaultHTTPPort        = 8080
	DefaultWarningPct      = 70.0
	DefaultCriticalPct     = 85.0
)

// Refresh interval bounds. SetInterval and config validation both clamp to
// this range, matching the dashboard's 5–60 second refresh slider.
const (
	MinRefreshInterval = 5 * time.Second
	MaxRefreshInterval = 60 * time.Second
)

// Config is the top-level configuration for the poller.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	// BackendURL is the base URL of the metrics backend, e.g.
	// "http://localhost:9091". Queries go to <BackendURL>/api/v1/query.
	BackendURL string `yaml:"backend_url"`

	// RefreshInterval is the sleep between poll cycles. Clamped to
	// [MinRefreshInterval, MaxRefreshInterval]. Hot-reloadable.
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// HTTPPort is the port the REST API and WebSocket hub listen on.
	HTTPPort int `yaml:"http_port"`

	// Queries is the ordered catalog of named queries executed each cycle.
	// Fixed at startup — not hot-reloadable.
	Queries []Query `yaml:"queries"`

	// Thresholds holds per-metric severity overrides, keyed by query name.
	// Metrics without an entry use the 70/85 defaults. Hot-reloadable.
	Thresholds map[string]Thresholds `yaml:"thresholds"`

	// Webhooks is the list of notification targets for critical series.
	Webhooks []Webhook `yaml:"webhooks"`
}

// Query is one immutable catalog entry.
type Query struct {
	// Name is the unique metric name, e.g. "cpu_usage".
	Name string `yaml:"name"`

	// Expr is the backend query expression.
	Expr string `yaml:"expr"`

	// GroupBy is the label dimension used to split results into series:
	// device | mountpoint | mode. Empty means no grouping label — all
	// samples land in the "unknown" group.
	GroupBy string `yaml:"group_by"`
}

// Thresholds is a per-metric severity threshold pair, in percent.
type Thresholds struct {
	WarningPct  float64 `yaml:"warning_pct"`
	CriticalPct float64 `yaml:"critical_pct"`
}

// Webhook defines one notification delivery target.
type Webhook struct {
	// Type is one of: slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w Webhook) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults and the refresh
// interval is clamped to its bounds.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	cfg.RefreshInterval = ClampInterval(cfg.RefreshInterval)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// ClampInterval restricts d to the allowed refresh interval range.
func ClampInterval(d time.Duration) time.Duration {
	if d < MinRefreshInterval {
		return MinRefreshInterval
	}
	if d > MaxRefreshInterval {
		return MaxRefreshInterval
	}
	return d
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		RefreshInterval: DefaultRefreshInterval,
		HTTPPort:        DefaultHTTPPort,
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.BackendURL == "" {
		return fmt.Errorf("backend_url is required")
	}
	if len(cfg.Queries) == 0 {
		return fmt.Errorf("at least one query is required")
	}

	seen := make(map[string]bool, len(cfg.Queries))
	for i, q := range cfg.Queries {
		if q.Name == "" {
			return fmt.Errorf("queries[%d]: name is required", i)
		}
		if q.Expr == "" {
			return fmt.Errorf("queries[%d] %q: expr is required", i, q.Name)
		}
		if seen[q.Name] {
			return fmt.Errorf("queries[%d]: duplicate name %q", i, q.Name)
		}
		seen[q.Name] = true
		switch q.GroupBy {
		case "", "device", "mountpoint", "mode":
		default:
			return fmt.Errorf("queries[%d] %q: unknown group_by %q", i, q.Name, q.GroupBy)
		}
	}

	for name, th := range cfg.Thresholds {
		if !seen[name] {
			return fmt.Errorf("thresholds: unknown metric %q", name)
		}
		if th.WarningPct > th.CriticalPct {
			return fmt.Errorf("thresholds %q: warning_pct above critical_pct", name)
		}
	}

	for i, wh := range cfg.Webhooks {
		switch wh.Type {
		case "slack", "http":
		default:
			return fmt.Errorf("webhooks[%d]: unknown type %q", i, wh.Type)
		}
	}

	return nil
}
