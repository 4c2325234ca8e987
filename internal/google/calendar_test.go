package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func TestEventsPagesAndConverts(t *testing.T) {
	pages := map[string]*calendar.Events{
		"": {
			NextPageToken: "p2",
			Items: []*calendar.Event{
				{Id: "a", Summary: "Planning",
					Start:     &calendar.EventDateTime{DateTime: "2024-06-10T09:00:00Z"},
					End:       &calendar.EventDateTime{DateTime: "2024-06-10T10:00:00Z"},
					Attendees: []*calendar.EventAttendee{{Email: "ann@example.com"}}},
				{Id: "gone", Status: "cancelled",
					Start: &calendar.EventDateTime{DateTime: "2024-06-10T11:00:00Z"},
					End:   &calendar.EventDateTime{DateTime: "2024-06-10T12:00:00Z"}},
			},
		},
		"p2": {
			Items: []*calendar.Event{
				{Id: "b", Summary: "Holiday",
					Start: &calendar.EventDateTime{Date: "2024-06-14"},
					End:   &calendar.EventDateTime{Date: "2024-06-15"}},
			},
		},
	}

	var gotQuery []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = append(gotQuery, q.Get("singleEvents")+"|"+q.Get("timeMin")+"|"+q.Get("pageToken"))
		page, ok := pages[q.Get("pageToken")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	ctx := context.Background()
	cal, err := NewWithOptions(ctx, "work", "", time.UTC,
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewWithOptions: %v", err)
	}
	from := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)
	events, err := cal.Events(ctx, from, from.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("Events: %v", err)
	}

	if len(gotQuery) != 2 || gotQuery[0] != "true|2024-06-09T00:00:00Z|" || gotQuery[1] != "true|2024-06-09T00:00:00Z|p2" {
		t.Errorf("queries = %v", gotQuery)
	}
	if len(events) != 2 {
		t.Fatalf("events = %+v", events)
	}
	if e := events[0]; e.ID != "work/a" || e.Date != "2024-06-10" || e.Time != "09:00" || e.EndTime != "10:00" || len(e.Attendees) != 1 {
		t.Errorf("timed event = %+v", e)
	}
	if e := events[1]; e.Date != "2024-06-14" || e.Timed() || e.Source != "google" {
		t.Errorf("all-day event = %+v", e)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := TokenPath(dir, "personal")
	if filepath.Base(path) != "token-personal.json" {
		t.Errorf("TokenPath = %s", path)
	}
	tok := &oauth2.Token{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer"}
	if err := SaveToken(path, tok); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	got, err := LoadToken(path)
	if err != nil || got.RefreshToken != "rt" {
		t.Errorf("LoadToken = %+v, %v", got, err)
	}
	accounts, err := Accounts(dir)
	if err != nil || len(accounts) != 1 || accounts[0] != "personal" {
		t.Errorf("Accounts = %v, %v", accounts, err)
	}
	if _, err := LoadToken(TokenPath(dir, "missing")); err == nil {
		t.Error("expected error for missing token")
	}
}

func TestOAuthConfig(t *testing.T) {
	if _, err := OAuthConfig("", "", ""); err == nil {
		t.Error("expected error without credentials")
	}
	oc, err := OAuthConfig("id", "secret", "")
	if err != nil || oc.RedirectURL != DefaultRedirectURL || len(oc.Scopes) != 1 {
		t.Errorf("OAuthConfig = %+v, %v", oc, err)
	}
}
