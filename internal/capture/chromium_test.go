package capture

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPageURL(t *testing.T) {
	tests := []struct {
		listen, date, want string
	}{
		{"127.0.0.1:8080", "", "http://127.0.0.1:8080/calendar"},
		{":8080", "2024-06-10", "http://127.0.0.1:8080/calendar?date=2024-06-10"},
		{"0.0.0.0:9000", "", "http://127.0.0.1:9000/calendar"},
		{"[::]:9000", "", "http://127.0.0.1:9000/calendar"},
		{"grid.local:80", "", "http://grid.local:80/calendar"},
	}
	for _, tc := range tests {
		if got := PageURL(tc.listen, tc.date); got != tc.want {
			t.Errorf("PageURL(%q, %q) = %q, want %q", tc.listen, tc.date, got, tc.want)
		}
	}
}

func TestOptionsDefaultsAndHeaders(t *testing.T) {
	if _, err := (Options{OutputPath: "x.png"}).withDefaults(); err == nil {
		t.Error("expected error without URL")
	}
	if _, err := (Options{URL: "http://x"}).withDefaults(); err == nil {
		t.Error("expected error without output path")
	}

	o, err := Options{URL: "http://x", OutputPath: "x.png"}.withDefaults()
	if err != nil {
		t.Fatal(err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight || o.Timeout <= 0 {
		t.Errorf("defaults = %+v", o)
	}
	if o.headers() != nil {
		t.Error("no credentials should mean no headers")
	}

	h := Options{Username: "u", Password: "p"}.headers()
	if auth, _ := h["Authorization"].(string); auth != "Basic dTpw" {
		t.Errorf("Authorization = %v", h["Authorization"])
	}
}

func TestWriteAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preview.png")
	if err := writeAtomic(path, []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := writeAtomic(path, []byte("two")); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "two" {
		t.Errorf("content = %q, %v", b, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".preview-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}
