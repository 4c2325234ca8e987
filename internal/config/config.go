package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"weekgrid/internal/layout"
	"weekgrid/internal/model"
)

// NOTE: The on-disk format follows the file extension: ".toml" is TOML,
// anything else is YAML. First-run creation and 0600 permissions apply to
// both.

// Calendar source kinds.
const (
	KindICS    = "ics"
	KindCalDAV = "caldav"
	KindGoogle = "google"
	KindLocal  = "local"
)

// DefaultPendingCalendarID is the calendar the scheduling agent writes its
// pending holds into.
const DefaultPendingCalendarID = "agent-pending"

// DefaultConfirmedCalendarID is the local calendar a confirmed hold moves to
// when no other target is named.
const DefaultConfirmedCalendarID = "agent-confirmed"

// ErrConfirmTarget rejects a confirmation target that would hide the
// confirmed event.
var ErrConfirmTarget = errors.New("invalid confirm calendar")

// CalendarConfig describes one calendar source.
type CalendarConfig struct {
	// ID is the stable identifier events are tagged with.
	ID string `yaml:"id" toml:"id" json:"id"`
	// Name is a human-friendly label shown in the UI.
	Name  string `yaml:"name" toml:"name" json:"name"`
	Color string `yaml:"color,omitempty" toml:"color,omitempty" json:"color,omitempty"`
	// Kind is one of ics, caldav, google or local.
	Kind string `yaml:"kind" toml:"kind" json:"kind"`

	// URL is the ICS subscription endpoint or the CalDAV server root.
	URL      string `yaml:"url,omitempty" toml:"url,omitempty" json:"url,omitempty"`
	Username string `yaml:"username,omitempty" toml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" toml:"password,omitempty" json:"-"`
	// Path selects one CalDAV collection; empty means all of them. For
	// Google it is the calendar ID ("primary" when empty).
	Path string `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty"`
	// Account names the Google token file under google.token_dir.
	Account string `yaml:"account,omitempty" toml:"account,omitempty" json:"account,omitempty"`

	// Selected is the initial toggle state. Toggles changed at runtime are
	// persisted in the store and win over this value.
	Selected bool `yaml:"selected" toml:"selected" json:"selected"`
	// Placeholder marks calendars holding tentative slots that disappear
	// once they are confirmed elsewhere.
	Placeholder bool `yaml:"placeholder,omitempty" toml:"placeholder,omitempty" json:"placeholder,omitempty"`
}

// DisplayConfig controls the visible part of each day.
type DisplayConfig struct {
	// Start and End bound the window as "HH:MM"; End may be "24:00".
	Start            string  `yaml:"start" toml:"start" json:"start"`
	End              string  `yaml:"end" toml:"end" json:"end"`
	MinHeightPercent float64 `yaml:"min_height_percent" toml:"min_height_percent" json:"min_height_percent"`
	GutterPercent    float64 `yaml:"gutter_percent" toml:"gutter_percent" json:"gutter_percent"`
}

// GoogleConfig holds the OAuth client used by google calendars.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id,omitempty" toml:"client_id,omitempty" json:"client_id,omitempty"`
	ClientSecret string `yaml:"client_secret,omitempty" toml:"client_secret,omitempty" json:"-"`
	// TokenDir holds one <account>.json token per account.
	TokenDir string `yaml:"token_dir,omitempty" toml:"token_dir,omitempty" json:"token_dir,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" toml:"username" json:"username"`
	Password string `yaml:"password" toml:"password" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" toml:"listen" json:"listen"`

	// Timezone is the IANA timezone used to place events on days.
	Timezone string `yaml:"timezone" toml:"timezone" json:"timezone"`

	// WeekStart is "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" toml:"week_start" json:"week_start"`

	// RefreshCron is a cron schedule (e.g. "*/15 * * * *") for re-reading
	// every calendar source.
	RefreshCron string `yaml:"refresh" toml:"refresh" json:"refresh"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level" toml:"log_level" json:"log_level"`

	Display DisplayConfig `yaml:"display" toml:"display" json:"display"`

	// ShowAllDay toggles the all-day strip in the rendered view.
	ShowAllDay bool `yaml:"show_all_day" toml:"show_all_day" json:"show_all_day"`

	PendingCalendarID string `yaml:"pending_calendar_id" toml:"pending_calendar_id" json:"pending_calendar_id"`

	// ConfirmedCalendarID receives confirmed holds. It is added as a local
	// calendar when missing and must not be a placeholder.
	ConfirmedCalendarID string `yaml:"confirmed_calendar_id" toml:"confirmed_calendar_id" json:"confirmed_calendar_id"`

	// DataDir holds the sqlite store, the ICS cache and preview captures.
	DataDir string `yaml:"data_dir" toml:"data_dir" json:"data_dir"`

	Calendars []CalendarConfig `yaml:"calendars" toml:"calendars" json:"calendars"`

	Google GoogleConfig `yaml:"google,omitempty" toml:"google,omitempty" json:"google"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" toml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "UTC",
		WeekStart:   "sunday",
		RefreshCron: "*/15 * * * *",
		LogLevel:    "info",
		Display: DisplayConfig{
			Start:            "06:00",
			End:              "24:00",
			MinHeightPercent: 2.5,
			GutterPercent:    0.5,
		},
		ShowAllDay:        true,
		PendingCalendarID:   DefaultPendingCalendarID,
		ConfirmedCalendarID: DefaultConfirmedCalendarID,
		DataDir:             "./data",
		Calendars: []CalendarConfig{
			{ID: DefaultPendingCalendarID, Name: "Agent holds", Kind: KindLocal, Selected: true, Placeholder: true},
			{ID: DefaultConfirmedCalendarID, Name: "Agent bookings", Kind: KindLocal, Selected: true},
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday":
		c.WeekStart = "monday"
	default:
		c.WeekStart = "sunday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Display.Start == "" {
		c.Display.Start = def.Display.Start
	}
	if c.Display.End == "" {
		c.Display.End = def.Display.End
	}
	if c.Display.MinHeightPercent <= 0 {
		c.Display.MinHeightPercent = def.Display.MinHeightPercent
	}
	if c.Display.GutterPercent < 0 {
		c.Display.GutterPercent = 0
	}
	if c.PendingCalendarID == "" {
		c.PendingCalendarID = def.PendingCalendarID
	}
	if c.ConfirmedCalendarID == "" {
		c.ConfirmedCalendarID = def.ConfirmedCalendarID
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
	if _, ok := c.Calendar(c.ConfirmedCalendarID); !ok {
		c.Calendars = append(c.Calendars, CalendarConfig{
			ID: c.ConfirmedCalendarID, Name: "Agent bookings", Kind: KindLocal, Selected: true,
		})
	}
	for i := range c.Calendars {
		cal := &c.Calendars[i]
		cal.Kind = strings.ToLower(cal.Kind)
		if cal.Kind == "" {
			cal.Kind = KindICS
		}
		if cal.Name == "" {
			cal.Name = cal.ID
		}
		if cal.ID == c.PendingCalendarID {
			cal.Placeholder = true
		}
	}
	if c.Google.TokenDir == "" {
		c.Google.TokenDir = filepath.Join(c.DataDir, "tokens")
	}
}

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Window(); err != nil {
		errs = append(errs, err)
	}
	if c.ConfirmedCalendarID == c.PendingCalendarID {
		errs = append(errs, fmt.Errorf("confirmed_calendar_id %q must differ from pending_calendar_id", c.ConfirmedCalendarID))
	} else if cal, ok := c.Calendar(c.ConfirmedCalendarID); ok && cal.Placeholder {
		errs = append(errs, fmt.Errorf("confirmed_calendar_id %q is a placeholder calendar", c.ConfirmedCalendarID))
	}
	seen := make(map[string]bool, len(c.Calendars))
	for i, cal := range c.Calendars {
		if cal.ID == "" {
			errs = append(errs, fmt.Errorf("calendars[%d]: id is required", i))
			continue
		}
		if seen[cal.ID] {
			errs = append(errs, fmt.Errorf("calendars[%d]: duplicate id %q", i, cal.ID))
		}
		seen[cal.ID] = true
		switch cal.Kind {
		case KindICS, KindCalDAV:
			if cal.URL == "" {
				errs = append(errs, fmt.Errorf("calendar %q: url is required for kind %s", cal.ID, cal.Kind))
			}
		case KindGoogle:
			if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
				errs = append(errs, fmt.Errorf("calendar %q: google client_id/client_secret not configured", cal.ID))
			}
		case KindLocal:
		default:
			errs = append(errs, fmt.Errorf("calendar %q: unknown kind %q", cal.ID, cal.Kind))
		}
	}
	return errors.Join(errs...)
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// FirstWeekday maps WeekStart to a weekday.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// Window parses the display window.
func (c *Config) Window() (layout.Window, error) {
	return layout.ParseWindow(c.Display.Start, c.Display.End)
}

// Engine builds a layout engine from the display and calendar settings.
func (c *Config) Engine() (*layout.Engine, error) {
	w, err := c.Window()
	if err != nil {
		return nil, err
	}
	placeholders := make(map[string]bool)
	for _, cal := range c.Calendars {
		if cal.Placeholder {
			placeholders[cal.ID] = true
		}
	}
	return layout.NewEngine(w,
		layout.GeometryOptions{
			MinHeightPercent: c.Display.MinHeightPercent,
			GutterPercent:    c.Display.GutterPercent,
		},
		layout.FilterOptions{
			PendingCalendarID: c.PendingCalendarID,
			Placeholders:      placeholders,
		},
	), nil
}

// CalendarList returns the configured calendars as model values.
func (c *Config) CalendarList() []model.Calendar {
	out := make([]model.Calendar, 0, len(c.Calendars))
	for _, cal := range c.Calendars {
		out = append(out, model.Calendar{
			ID:          cal.ID,
			Name:        cal.Name,
			Color:       cal.Color,
			Kind:        cal.Kind,
			Selected:    cal.Selected,
			Placeholder: cal.Placeholder,
		})
	}
	return out
}

// Calendar looks up a calendar by ID.
func (c *Config) Calendar(id string) (CalendarConfig, bool) {
	for _, cal := range c.Calendars {
		if cal.ID == id {
			return cal, true
		}
	}
	return CalendarConfig{}, false
}

// ConfirmCalendar picks the calendar a hold in current moves to when it is
// confirmed. requested wins when set; otherwise a hold already in a regular
// calendar stays there and a placeholder hold goes to ConfirmedCalendarID.
// Unknown and placeholder targets return ErrConfirmTarget.
func (c *Config) ConfirmCalendar(current, requested string) (string, error) {
	target := requested
	if target == "" {
		target = current
		if cal, ok := c.Calendar(current); !ok || c.isPlaceholder(cal) {
			target = c.ConfirmedCalendarID
		}
	}
	cal, ok := c.Calendar(target)
	if !ok {
		return "", fmt.Errorf("%w: unknown calendar %q", ErrConfirmTarget, target)
	}
	if c.isPlaceholder(cal) {
		return "", fmt.Errorf("%w: %q is a placeholder calendar", ErrConfirmTarget, target)
	}
	return target, nil
}

func (c *Config) isPlaceholder(cal CalendarConfig) bool {
	return cal.Placeholder || cal.ID == c.PendingCalendarID
}

// StorePath is the sqlite database file under DataDir.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "weekgrid.db")
}

// CacheDir holds cached ICS bodies.
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "cache")
}

// PreviewPath is where the rendered PNG preview is written.
func (c *Config) PreviewPath() string {
	return filepath.Join(c.DataDir, "preview.png")
}

// ApplyEnv overrides secrets and deployment settings from WEEKGRID_*
// variables. getenv is usually os.Getenv, called after godotenv has loaded
// a .env file.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Listen, "WEEKGRID_LISTEN")
	set(&c.Timezone, "WEEKGRID_TIMEZONE")
	set(&c.LogLevel, "WEEKGRID_LOG_LEVEL")
	set(&c.DataDir, "WEEKGRID_DATA_DIR")
	set(&c.Google.ClientID, "WEEKGRID_GOOGLE_CLIENT_ID")
	set(&c.Google.ClientSecret, "WEEKGRID_GOOGLE_CLIENT_SECRET")

	user, pass := getenv("WEEKGRID_BASIC_AUTH_USER"), getenv("WEEKGRID_BASIC_AUTH_PASSWORD")
	if user != "" && pass != "" {
		c.BasicAuth = &BasicAuthConfig{Username: user, Password: pass}
	}

	// Per-calendar passwords: WEEKGRID_CALENDAR_<ID>_PASSWORD with the ID
	// upper-cased and '-' mapped to '_'.
	for i := range c.Calendars {
		key := "WEEKGRID_CALENDAR_" + envKey(c.Calendars[i].ID) + "_PASSWORD"
		set(&c.Calendars[i].Password, key)
	}
}

func envKey(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, id)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load loads configuration from the given path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - decode YAML or TOML into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if isTOML(path) {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

func marshal(path string, cfg *Config) ([]byte, error) {
	if !isTOML(path) {
		return yaml.Marshal(cfg)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
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

	data, err := marshal(path, cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".weekgrid-config-*.tmp")
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
