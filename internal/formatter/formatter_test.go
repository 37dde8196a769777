package formatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/tunefeed/internal/models"
	"github.com/desertthunder/tunefeed/internal/shared"
	th "github.com/desertthunder/tunefeed/internal/testing"
)

func sampleReleases() []models.ReleaseSummary {
	return []models.ReleaseSummary{
		{
			ID:          "album1",
			Title:       "Song One",
			Artist:      "Artist One",
			AlbumName:   "Album One",
			ReleaseDate: "2025-03-14",
			ExternalURL: "https://open.spotify.com/track/t1",
			DurationMS:  185000,
			Popularity:  72,
		},
		{
			ID:          "album2",
			Title:       "Song Two",
			Artist:      "Artist Two",
			AlbumName:   "Album Two",
			ReleaseDate: "2025-03-13",
		},
	}
}

func TestReleaseFormats(t *testing.T) {
	t.Run("ReleasesToCSV", func(t *testing.T) {
		data, err := ReleasesToCSV(sampleReleases())
		if err != nil {
			t.Fatalf("ReleasesToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "ID,Title,Artist,Album,Release Date,Duration,Popularity,URL\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "album1,Song One,Artist One,Album One,2025-03-14,3:05,72,https://open.spotify.com/track/t1") {
			t.Errorf("CSV missing first record, got: %s", output)
		}
		if !strings.Contains(output, "album2,Song Two,Artist Two,Album Two,2025-03-13,0:00,0,") {
			t.Errorf("CSV missing degraded record, got: %s", output)
		}
	})

	t.Run("ReleasesToCSV quotes commas", func(t *testing.T) {
		data, err := ReleasesToCSV([]models.ReleaseSummary{{ID: "a", Title: "One, Two"}})
		if err != nil {
			t.Fatalf("ReleasesToCSV failed: %v", err)
		}
		if !strings.Contains(string(data), `"One, Two"`) {
			t.Errorf("expected quoted title, got: %s", data)
		}
	})

	t.Run("ReleasesToMarkdown", func(t *testing.T) {
		data, err := ReleasesToMarkdown(sampleReleases())
		if err != nil {
			t.Fatalf("ReleasesToMarkdown failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "# New Releases") {
			t.Error("Markdown missing heading")
		}
		if !strings.Contains(output, "**Releases**: 2") {
			t.Error("Markdown missing count")
		}
		if !strings.Contains(output, "1. Artist One - [Song One](https://open.spotify.com/track/t1) (2025-03-14) [3:05]") {
			t.Errorf("Markdown missing linked entry, got: %s", output)
		}
		if !strings.Contains(output, "2. Artist Two - Song Two (2025-03-13)\n") {
			t.Errorf("Markdown missing plain entry, got: %s", output)
		}
	})

	t.Run("ReleasesToText", func(t *testing.T) {
		data, err := ReleasesToText(sampleReleases(), false)
		if err != nil {
			t.Fatalf("ReleasesToText failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "New Releases (2)\n\n") {
			t.Errorf("Text missing heading, got: %s", output)
		}
		if !strings.Contains(output, " 1. Artist One - Song One 2025-03-14 [3:05]") {
			t.Errorf("Text missing entry, got: %s", output)
		}
	})

	t.Run("empty listing", func(t *testing.T) {
		data, err := ReleasesToText(nil, false)
		if err != nil {
			t.Fatalf("ReleasesToText failed: %v", err)
		}
		if string(data) != "New Releases (0)\n\n" {
			t.Errorf("unexpected output %q", data)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := Releases(sampleReleases(), JSON, false)
		if err != nil {
			t.Fatalf("Releases failed: %v", err)
		}

		var decoded []models.ReleaseSummary
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(decoded) != 2 || decoded[0].Title != "Song One" {
			t.Errorf("unexpected decoded releases %+v", decoded)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := Releases(sampleReleases(), Format("xml"), false)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", Text, false},
		{"text", Text, false},
		{"JSON", JSON, false},
		{" csv ", CSV, false},
		{"md", Markdown, false},
		{"markdown", Markdown, false},
		{"yaml", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteReleases(t *testing.T) {
	t.Run("to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "releases.csv")

		if err := WriteReleases(nil, sampleReleases(), CSV, path); err != nil {
			t.Fatalf("WriteReleases failed: %v", err)
		}

		th.AssertFileExists(t, path)
		content := th.MustReadFile(t, path)
		if !strings.Contains(content, "Song One") {
			t.Errorf("file missing release, got: %s", content)
		}
	})

	t.Run("to writer", func(t *testing.T) {
		var buf bytes.Buffer

		if err := WriteReleases(&buf, sampleReleases(), Markdown, ""); err != nil {
			t.Fatalf("WriteReleases failed: %v", err)
		}
		if !strings.Contains(buf.String(), "# New Releases") {
			t.Errorf("unexpected output: %s", buf.String())
		}
	})

	t.Run("writer failure", func(t *testing.T) {
		if err := WriteReleases(&th.FWriter{}, sampleReleases(), JSON, ""); err == nil {
			t.Error("expected write error")
		}
	})

	t.Run("bad path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "releases.txt")
		if err := WriteReleases(nil, sampleReleases(), Text, path); err == nil {
			t.Error("expected error for missing directory")
		}
	})
}

func TestProbeAndChartText(t *testing.T) {
	t.Run("ProbeToText", func(t *testing.T) {
		output := string(ProbeToText([]models.ProbeResult{
			{Name: "Search", Status: "working"},
			{Name: "Tracks - Get Track", Status: "failed", Error: "service unavailable"},
		}))

		if !strings.Contains(output, "Search") || !strings.Contains(output, "Tracks - Get Track") {
			t.Errorf("missing probe names, got: %s", output)
		}
		if !strings.Contains(output, "service unavailable") {
			t.Errorf("missing probe error, got: %s", output)
		}
		if strings.Count(output, "\n") != 2 {
			t.Errorf("expected one line per probe, got: %q", output)
		}
	})

	t.Run("ChartToText", func(t *testing.T) {
		output := string(ChartToText([]models.ChartTrack{
			{Name: "Believe", Artist: "Cher", Listeners: "1000"},
		}))

		if !strings.Contains(output, " 1. Cher - Believe") {
			t.Errorf("missing chart entry, got: %s", output)
		}
		if !strings.Contains(output, "1000 listeners") {
			t.Errorf("missing listeners, got: %s", output)
		}
	})
}

func TestDedupe(t *testing.T) {
	releases := []models.ReleaseSummary{
		{ID: "1", Title: "Café del Mar", Artist: "Energy 52"},
		{ID: "2", Title: "cafe del mar", Artist: "ENERGY 52"},
		{ID: "3", Title: "Other", Artist: "Energy 52"},
	}

	got := Dedupe(releases)
	if len(got) != 2 {
		t.Fatalf("expected 2 releases, got %d", len(got))
	}
	if got[0].ID != "1" || got[1].ID != "3" {
		t.Errorf("expected first occurrence to be kept, got %+v", got)
	}
}
