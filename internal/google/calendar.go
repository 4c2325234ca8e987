package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	appLog "weekgrid/internal/log"
	"weekgrid/internal/model"
)

// DefaultRedirectURL is the loopback address the auth command listens on.
const DefaultRedirectURL = "http://127.0.0.1:8085/oauth2/callback"

// Config describes one Google-backed calendar.
type Config struct {
	// ID is the calendar ID events are tagged with.
	ID string
	// CalendarID is Google's calendar identifier; "primary" when empty.
	CalendarID string
	// Account names the token file under TokenDir.
	Account string

	ClientID     string
	ClientSecret string
	TokenDir     string
}

// Calendar reads events from one Google calendar.
type Calendar struct {
	id         string
	calendarID string
	service    *calendar.Service
	loc        *time.Location
}

// OAuthConfig returns the read-only OAuth client config.
func OAuthConfig(clientID, clientSecret, redirectURL string) (*oauth2.Config, error) {
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("google client_id and client_secret are required")
	}
	if redirectURL == "" {
		redirectURL = DefaultRedirectURL
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{calendar.CalendarReadonlyScope},
		Endpoint:     googleoauth.Endpoint,
	}, nil
}

// TokenPath is the token file of account inside dir.
func TokenPath(dir, account string) string {
	if account == "" {
		account = "default"
	}
	return filepath.Join(dir, "token-"+account+".json")
}

// SaveToken writes a token with 0600 permissions.
func SaveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// LoadToken reads a token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no token at %s, run the google-auth command first: %w", path, err)
		}
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, err)
	}
	return tok, nil
}

// Accounts lists the account names that have a token in dir.
func Accounts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "token-") && strings.HasSuffix(name, ".json") {
			out = append(out, strings.TrimSuffix(strings.TrimPrefix(name, "token-"), ".json"))
		}
	}
	return out, nil
}

// New authenticates with the stored token of cfg.Account.
func New(ctx context.Context, cfg Config, loc *time.Location) (*Calendar, error) {
	oc, err := OAuthConfig(cfg.ClientID, cfg.ClientSecret, "")
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(TokenPath(cfg.TokenDir, cfg.Account))
	if err != nil {
		return nil, err
	}
	return NewWithOptions(ctx, cfg.ID, cfg.CalendarID, loc, option.WithHTTPClient(oc.Client(ctx, tok)))
}

// NewWithOptions builds a Calendar over arbitrary client options.
func NewWithOptions(ctx context.Context, id, calendarID string, loc *time.Location, opts ...option.ClientOption) (*Calendar, error) {
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{id: id, calendarID: calendarID, service: service, loc: loc}, nil
}

// ID returns the calendar ID.
func (c *Calendar) ID() string { return c.id }

// Events lists single (recurrence-expanded) events in [from, to).
func (c *Calendar) Events(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	var out []model.CalendarEvent
	pages := 0
	err := c.service.Events.List(c.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		OrderBy("startTime").
		MaxResults(250).
		Pages(ctx, func(page *calendar.Events) error {
			pages++
			for _, item := range page.Items {
				occ, ok := toOccurrence(c.id, item, c.loc)
				if !ok {
					continue
				}
				out = append(out, occ.Events(c.loc)...)
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("google %s: list events: %w", c.id, err)
	}
	appLog.Debug("google events listed", "id", c.id, "calendar", c.calendarID, "pages", pages, "rows", len(out))
	return out, nil
}

// Calendars lists the calendars visible to the authenticated account.
func (c *Calendar) Calendars(ctx context.Context) ([]model.Calendar, error) {
	list, err := c.service.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	out := make([]model.Calendar, 0, len(list.Items))
	for _, item := range list.Items {
		out = append(out, model.Calendar{
			ID:       item.Id,
			Name:     item.Summary,
			Color:    item.BackgroundColor,
			Kind:     "google",
			Selected: item.Selected,
		})
	}
	return out, nil
}

func toOccurrence(calendarID string, item *calendar.Event, loc *time.Location) (model.Occurrence, bool) {
	if item == nil || item.Start == nil || item.Status == "cancelled" {
		return model.Occurrence{}, false
	}
	occ := model.Occurrence{
		CalendarID:  calendarID,
		UID:         item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Source:      "google",
	}
	for _, a := range item.Attendees {
		if a.Email != "" {
			occ.Attendees = append(occ.Attendees, a.Email)
		}
	}

	if item.Start.DateTime == "" {
		start, err := time.ParseInLocation("2006-01-02", item.Start.Date, loc)
		if err != nil {
			return model.Occurrence{}, false
		}
		occ.AllDay = true
		occ.Start = start
		occ.End = start.AddDate(0, 0, 1)
		if item.End != nil {
			if end, err := time.ParseInLocation("2006-01-02", item.End.Date, loc); err == nil && end.After(start) {
				occ.End = end
			}
		}
		return occ, true
	}

	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return model.Occurrence{}, false
	}
	occ.Start = start
	occ.End = start
	if item.End != nil {
		if end, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
			occ.End = end
		}
	}
	return occ, true
}
