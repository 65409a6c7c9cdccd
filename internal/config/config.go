package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"
)

// ICSConfig describes a single read-only ICS feed imported into the store.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label; also used as the study name of
	// imported sessions when the feed does not carry one.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// CalendarConfig carries the capability flags and geometry constants of
// the interactive calendar.
type CalendarConfig struct {
	EnableDragDrop bool `yaml:"enable_drag_drop" json:"enable_drag_drop"`
	EnableResize   bool `yaml:"enable_resize" json:"enable_resize"`

	// PixelsPerMinute is the time-axis scale of week/day views.
	PixelsPerMinute float64 `yaml:"pixels_per_minute" json:"pixels_per_minute"`

	MinEventMinutes int `yaml:"min_event_minutes" json:"min_event_minutes"`
	MaxEventMinutes int `yaml:"max_event_minutes" json:"max_event_minutes"`

	// SnapMinutes rounds resize deltas; 0 disables snapping.
	SnapMinutes int `yaml:"snap_minutes" json:"snap_minutes"`

	// DefaultView is one of month, week, day, agenda.
	DefaultView string `yaml:"default_view" json:"default_view"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as display zone (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls which weekday is treated as the first day of the week
	// in calendar views. Supported values:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	// DBPath is the SQLite database file holding research sessions.
	DBPath string `yaml:"db_path" json:"db_path"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used to re-import the configured ICS feeds.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`

	// ICS is the list of imported feeds.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen          = "127.0.0.1:8080"
	defaultTimezone        = "UTC"
	defaultWeekStart       = "monday"
	defaultDBPath          = "/var/lib/sessioncal/sessions.db"
	defaultRefreshCron     = "*/15 * * * *"
	defaultPixelsPerMinute = 1
	defaultMinEventMinutes = 15
	defaultMaxEventMinutes = 480
	defaultSnapMinutes     = 15
	defaultView            = "month"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    defaultTimezone,
		WeekStart:   defaultWeekStart,
		DBPath:      defaultDBPath,
		LogLevel:    "info",
		LogFormat:   "text",
		RefreshCron: defaultRefreshCron,
		Calendar: CalendarConfig{
			EnableDragDrop:  true,
			EnableResize:    true,
			PixelsPerMinute: defaultPixelsPerMinute,
			MinEventMinutes: defaultMinEventMinutes,
			MaxEventMinutes: defaultMaxEventMinutes,
			SnapMinutes:     defaultSnapMinutes,
			DefaultView:     defaultView,
		},
		ICS:       []ICSConfig{},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		// Unknown value; fall back to monday to avoid surprising layouts.
		c.WeekStart = defaultWeekStart
	}
	if c.DBPath == "" {
		c.DBPath = defaultDBPath
	}
	if c.LogFormat != "json" {
		c.LogFormat = "text"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}

	cal := &c.Calendar
	if cal.PixelsPerMinute <= 0 {
		cal.PixelsPerMinute = defaultPixelsPerMinute
	}
	if cal.MinEventMinutes <= 0 {
		cal.MinEventMinutes = defaultMinEventMinutes
	}
	if cal.MaxEventMinutes <= 0 {
		cal.MaxEventMinutes = defaultMaxEventMinutes
	}
	if cal.MaxEventMinutes < cal.MinEventMinutes {
		cal.MaxEventMinutes = cal.MinEventMinutes
	}
	if cal.SnapMinutes < 0 {
		cal.SnapMinutes = 0
	}
	switch cal.DefaultView {
	case "month", "week", "day", "agenda":
	default:
		cal.DefaultView = defaultView
	}

	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
}

// envOverrides lists the settings that may be overridden from the
// environment. Empty values leave the file value untouched.
type envOverrides struct {
	Listen    string `env:"SESSIONCAL_LISTEN"`
	Timezone  string `env:"SESSIONCAL_TIMEZONE"`
	WeekStart string `env:"SESSIONCAL_WEEK_START"`
	DBPath    string `env:"SESSIONCAL_DB_PATH"`
	LogLevel  string `env:"SESSIONCAL_LOG_LEVEL"`
	LogFormat string `env:"SESSIONCAL_LOG_FORMAT"`
	Username  string `env:"SESSIONCAL_BASIC_AUTH_USERNAME"`
	Password  string `env:"SESSIONCAL_BASIC_AUTH_PASSWORD"`
}

// ApplyEnv overlays SESSIONCAL_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("config: parse environment: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Listen, o.Listen)
	set(&c.Timezone, o.Timezone)
	set(&c.WeekStart, o.WeekStart)
	set(&c.DBPath, o.DBPath)
	set(&c.LogLevel, o.LogLevel)
	set(&c.LogFormat, o.LogFormat)
	if o.Username != "" && o.Password != "" {
		c.BasicAuth = &BasicAuthConfig{Username: o.Username, Password: o.Password}
	}
	c.Normalize()
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, cfg.ApplyEnv()
		}
		return nil, err
	}

	// Start from defaults so booleans missing from the file stay enabled.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
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

	tmp, err := os.CreateTemp(dir, ".sessioncal-config-*.tmp")
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

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// Location resolves Timezone. An unknown zone falls back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// FirstWeekday maps WeekStart to a time.Weekday.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}
