package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesDefault(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.WeekStart != "sunday" || cfg.PendingCalendarID != DefaultPendingCalendarID {
				t.Errorf("unexpected defaults: %+v", cfg)
			}
			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("config not written: %v", err)
			}
			if perm := info.Mode().Perm(); perm != 0o600 {
				t.Errorf("perm = %o, want 600", perm)
			}

			again, err := Load(path)
			if err != nil {
				t.Fatalf("reload: %v", err)
			}
			if again.Display != cfg.Display || len(again.Calendars) != len(cfg.Calendars) {
				t.Errorf("reload differs: %+v vs %+v", again, cfg)
			}
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
timezone: America/New_York
week_start: Monday
display:
  start: "07:00"
  end: "21:00"
calendars:
  - id: work
    kind: CalDAV
    url: https://dav.example.com
    selected: true
  - id: holidays
    url: https://example.com/h.ics
  - id: agent-pending
    kind: local
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.FirstWeekday() != time.Monday {
		t.Errorf("FirstWeekday = %v", cfg.FirstWeekday())
	}
	w, err := cfg.Window()
	if err != nil || w.Start != 420 || w.End != 1260 {
		t.Errorf("Window = %+v, %v", w, err)
	}
	if cfg.Display.MinHeightPercent != 2.5 {
		t.Errorf("MinHeightPercent default not applied: %v", cfg.Display.MinHeightPercent)
	}
	if got := cfg.Calendars[0].Kind; got != KindCalDAV {
		t.Errorf("kind = %q, want caldav", got)
	}
	if got := cfg.Calendars[1]; got.Kind != KindICS || got.Name != "holidays" {
		t.Errorf("ics defaults not applied: %+v", got)
	}
	if !cfg.Calendars[2].Placeholder {
		t.Error("pending calendar should be a placeholder")
	}

	e, err := cfg.Engine()
	if err != nil {
		t.Fatalf("Engine: %v", err)
	}
	if e.Filter.PendingCalendarID != "agent-pending" || !e.Filter.Placeholders["agent-pending"] {
		t.Errorf("engine filter = %+v", e.Filter)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weekgrid.toml")
	body := `
listen = ":9090"
week_start = "sunday"

[display]
start = "08:00"
end = "18:00"
gutter_percent = 1.0

[[calendars]]
id = "family"
kind = "ics"
url = "https://example.com/family.ics"
selected = true
color = "#ff8800"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9090" || cfg.Display.GutterPercent != 1 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	cals := cfg.CalendarList()
	if len(cals) != 2 || cals[0].Color != "#ff8800" || !cals[0].Selected {
		t.Errorf("CalendarList = %+v", cals)
	}
	if cals[1].ID != DefaultConfirmedCalendarID || cals[1].Kind != KindLocal || !cals[1].Selected || cals[1].Placeholder {
		t.Errorf("confirmed calendar not added: %+v", cals[1])
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, false},
		{"inverted window", func(c *Config) { c.Display.Start, c.Display.End = "20:00", "08:00" }, false},
		{"missing url", func(c *Config) { c.Calendars = append(c.Calendars, CalendarConfig{ID: "x", Kind: KindICS}) }, false},
		{"duplicate id", func(c *Config) {
			c.Calendars = append(c.Calendars, CalendarConfig{ID: DefaultPendingCalendarID, Kind: KindLocal})
		}, false},
		{"google without client", func(c *Config) { c.Calendars = append(c.Calendars, CalendarConfig{ID: "g", Kind: KindGoogle}) }, false},
		{"unknown kind", func(c *Config) { c.Calendars = append(c.Calendars, CalendarConfig{ID: "n", Kind: "notion"}) }, false},
		{"confirmed is pending", func(c *Config) { c.ConfirmedCalendarID = DefaultPendingCalendarID }, false},
		{"confirmed is placeholder", func(c *Config) {
			c.Calendars = append(c.Calendars, CalendarConfig{ID: "tentative", Kind: KindLocal, Placeholder: true})
			c.ConfirmedCalendarID = "tentative"
		}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			cfg.Normalize()
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Calendars = append(cfg.Calendars, CalendarConfig{ID: "work-dav", Kind: KindCalDAV, URL: "https://dav"})
	env := map[string]string{
		"WEEKGRID_LISTEN":                     ":7000",
		"WEEKGRID_BASIC_AUTH_USER":            "admin",
		"WEEKGRID_BASIC_AUTH_PASSWORD":        "secret",
		"WEEKGRID_CALENDAR_WORK_DAV_PASSWORD": "dav-pass",
		"WEEKGRID_GOOGLE_CLIENT_SECRET":       "gsecret",
	}
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Listen != ":7000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.BasicAuth == nil || cfg.BasicAuth.Username != "admin" || cfg.BasicAuth.Password != "secret" {
		t.Errorf("BasicAuth = %+v", cfg.BasicAuth)
	}
	if cal, _ := cfg.Calendar("work-dav"); cal.Password != "dav-pass" {
		t.Errorf("calendar password = %q", cal.Password)
	}
	if cfg.Google.ClientSecret != "gsecret" {
		t.Errorf("google secret = %q", cfg.Google.ClientSecret)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("unset variable overrode Timezone: %q", cfg.Timezone)
	}
}

func TestConfirmCalendar(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Calendars = append(cfg.Calendars,
		CalendarConfig{ID: "work", Kind: KindICS, URL: "https://example.com/w.ics", Selected: true},
		CalendarConfig{ID: "tentative", Kind: KindLocal, Placeholder: true},
	)
	cfg.Normalize()

	tests := []struct {
		name, current, requested string
		want                     string
		ok                       bool
	}{
		{"pending hold defaults to confirmed calendar", DefaultPendingCalendarID, "", DefaultConfirmedCalendarID, true},
		{"placeholder hold defaults to confirmed calendar", "tentative", "", DefaultConfirmedCalendarID, true},
		{"regular calendar is kept", "work", "", "work", true},
		{"unknown current falls back", "gone", "", DefaultConfirmedCalendarID, true},
		{"explicit target", DefaultPendingCalendarID, "work", "work", true},
		{"explicit pending rejected", "work", DefaultPendingCalendarID, "", false},
		{"explicit placeholder rejected", DefaultPendingCalendarID, "tentative", "", false},
		{"explicit unknown rejected", DefaultPendingCalendarID, "nope", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := cfg.ConfirmCalendar(tc.current, tc.requested)
			if !tc.ok {
				if !errors.Is(err, ErrConfirmTarget) {
					t.Errorf("err = %v, want ErrConfirmTarget", err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Errorf("ConfirmCalendar(%q, %q) = %q, %v; want %q", tc.current, tc.requested, got, err, tc.want)
			}
		})
	}
}
