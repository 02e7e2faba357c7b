package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigurationError marks a fatal configuration problem. It is surfaced
// synchronously at load/validate time; no fetch is attempted after one.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return "config: " + e.Field + ": " + e.Msg
}

// SourceConfig describes a single calendar source subscription.
type SourceConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for identity keys and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown next to events when
	// multi-source display is enabled.
	Name string `yaml:"name" json:"name"`
	// Color is a CSS color used for the source's origin marker.
	Color string `yaml:"color" json:"color"`
	// MaxEvents caps how many events this source contributes per cycle.
	// Zero means unlimited.
	MaxEvents int `yaml:"max_events" json:"max_events"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the host API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level widget configuration.
type Config struct {
	// Listen is the HTTP listen address for the widget API and view.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA display timezone (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug/info/warn/error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is the cron schedule on which the host asks the engine
	// to consider a refresh. The throttle still gates actual fetches.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// NumberOfDays is the length of the display window in days.
	NumberOfDays int `yaml:"number_of_days" json:"number_of_days"`

	// EventsLimit caps the total event count across all day buckets.
	EventsLimit int `yaml:"events_limit" json:"events_limit"`

	// Feature flags.
	HighlightToday bool `yaml:"highlight_today" json:"highlight_today"`
	DisableLinks   bool `yaml:"disable_links" json:"disable_links"`
	UseSourceURL   bool `yaml:"use_source_url" json:"use_source_url"`
	ProgressBar    bool `yaml:"progress_bar" json:"progress_bar"`
	ShowPastEvents bool `yaml:"show_past_events" json:"show_past_events"`
	// ShowSpan repeats multi-day events on every day they cover instead of
	// only their start day.
	ShowSpan bool `yaml:"show_span" json:"show_span"`

	// NotifyURL, if set, receives one JSON POST per newly appeared event.
	NotifyURL string `yaml:"notify_url" json:"notify_url"`

	// Sources is the list of subscribed calendar sources.
	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration. The default has
// no sources and therefore does not pass Validate; it exists so a first run
// writes a template the user can fill in.
func DefaultConfig() *Config {
	return &Config{
		Listen:         "127.0.0.1:8080",
		Timezone:       "UTC",
		LogLevel:       "info",
		RefreshCron:    "*/10 * * * *",
		NumberOfDays:   7,
		EventsLimit:    20,
		HighlightToday: true,
		Sources:        []SourceConfig{},
	}
}

// Normalize fills in missing/zero values with defaults so partially filled
// configs still behave. It does not validate; see Validate.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/10 * * * *"
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	// Sources without an explicit ID fall back to name, then URL, so that
	// identity keys stay stable as long as the source itself does.
	for i := range c.Sources {
		if c.Sources[i].ID == "" {
			if c.Sources[i].Name != "" {
				c.Sources[i].ID = c.Sources[i].Name
			} else {
				c.Sources[i].ID = c.Sources[i].URL
			}
		}
	}
}

// Validate checks everything a fetch cycle depends on. It returns a
// *ConfigurationError describing the first problem found.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return &ConfigurationError{Field: "sources", Msg: "at least one calendar source is required"}
	}
	seen := map[string]bool{}
	for i, src := range c.Sources {
		if src.URL == "" {
			return &ConfigurationError{Field: fmt.Sprintf("sources[%d].url", i), Msg: "url is required"}
		}
		if seen[src.ID] {
			return &ConfigurationError{Field: fmt.Sprintf("sources[%d].id", i), Msg: "duplicate source id " + src.ID}
		}
		seen[src.ID] = true
		if src.MaxEvents < 0 {
			return &ConfigurationError{Field: fmt.Sprintf("sources[%d].max_events", i), Msg: "must be >= 0"}
		}
	}
	if c.NumberOfDays <= 0 {
		return &ConfigurationError{Field: "number_of_days", Msg: "must be a positive integer"}
	}
	if c.EventsLimit <= 0 {
		return &ConfigurationError{Field: "events_limit", Msg: "must be a positive integer"}
	}
	return nil
}

// Fingerprint summarizes the fields that affect fetch semantics: the source
// list (order-sensitive) and the window length. Cosmetic fields (colors,
// labels, display flags) are deliberately excluded so style-only edits do
// not trigger a re-fetch.
func (c *Config) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "days=%d", c.NumberOfDays)
	for _, src := range c.Sources {
		fmt.Fprintf(&b, ";%s=%s", src.ID, src.URL)
	}
	return b.String()
}

// SourceIDs returns the configured source IDs in order.
func (c *Config) SourceIDs() []string {
	ids := make([]string, 0, len(c.Sources))
	for _, src := range c.Sources {
		ids = append(ids, src.ID)
	}
	return ids
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: write a default config template with
//     0600 perms and return it (it will not pass Validate until sources
//     are added).
//   - If the file exists: read YAML, unmarshal, normalize defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calwidget-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save, for the config-editor surface:
//
//	cfg, _ := config.Load(path)
//	// ... mutate cfg ...
//	if err := cfg.Save(path); err != nil { ... }
func (c *Config) Save(path string) error {
	return Save(path, c)
}
