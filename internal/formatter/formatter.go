// package formatter renders release listings, probe results, and chart data as CSV, Markdown, JSON, or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/tunefeed/internal/models"
	"github.com/desertthunder/tunefeed/internal/shared"
)

// Format names an output encoding accepted by [WriteReleases].
type Format string

const (
	Text     Format = "text"
	JSON     Format = "json"
	CSV      Format = "csv"
	Markdown Format = "markdown"
)

// ParseFormat resolves a user supplied format name. Empty input means [Text].
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return Text, nil
	case Text, JSON, CSV, Markdown:
		return f, nil
	case "md":
		return Markdown, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, s)
	}
}

// ReleasesToCSV converts releases to CSV with columns: ID, Title, Artist, Album, Release Date, Duration, Popularity, URL
func ReleasesToCSV(releases []models.ReleaseSummary) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Release Date", "Duration", "Popularity", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range releases {
		record := []string{
			r.ID,
			r.Title,
			r.Artist,
			r.AlbumName,
			r.ReleaseDate,
			shared.FormatDuration(r.DurationMS),
			strconv.Itoa(r.Popularity),
			r.ExternalURL,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ReleasesToMarkdown renders releases as a numbered Markdown list under a heading.
func ReleasesToMarkdown(releases []models.ReleaseSummary) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# New Releases\n\n")
	fmt.Fprintf(&buf, "**Releases**: %d\n\n", len(releases))

	for i, r := range releases {
		title := r.Title
		if r.ExternalURL != "" {
			title = fmt.Sprintf("[%s](%s)", r.Title, r.ExternalURL)
		}
		fmt.Fprintf(&buf, "%d. %s - %s", i+1, r.Artist, title)
		if r.ReleaseDate != "" {
			fmt.Fprintf(&buf, " (%s)", r.ReleaseDate)
		}
		if r.DurationMS > 0 {
			fmt.Fprintf(&buf, " [%s]", shared.FormatDuration(r.DurationMS))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ReleasesToText renders releases for a terminal. Styling is applied only when color is set.
func ReleasesToText(releases []models.ReleaseSummary, color bool) ([]byte, error) {
	var buf bytes.Buffer
	paint := func(style func(string) string, s string) string {
		if color {
			return style(s)
		}
		return s
	}

	fmt.Fprintf(&buf, "%s\n\n", paint(styles.Title, fmt.Sprintf("New Releases (%d)", len(releases))))

	for i, r := range releases {
		fmt.Fprintf(&buf, "%2d. %s - %s", i+1, r.Artist, r.Title)
		if r.ReleaseDate != "" {
			fmt.Fprintf(&buf, " %s", paint(styles.Muted, r.ReleaseDate))
		}
		if r.DurationMS > 0 {
			fmt.Fprintf(&buf, " [%s]", shared.FormatDuration(r.DurationMS))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// Releases encodes releases in the requested format.
func Releases(releases []models.ReleaseSummary, format Format, color bool) ([]byte, error) {
	switch format {
	case CSV:
		return ReleasesToCSV(releases)
	case Markdown:
		return ReleasesToMarkdown(releases)
	case JSON:
		return shared.MarshalJSON(releases, true)
	case Text, "":
		return ReleasesToText(releases, color)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, format)
	}
}

// WriteReleases encodes releases and writes them to path, or to w when path is empty.
//
// Terminal styling is only applied when writing to w.
func WriteReleases(w io.Writer, releases []models.ReleaseSummary, format Format, path string) error {
	data, err := Releases(releases, format, path == "")
	if err != nil {
		return err
	}

	if path == "" {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ProbeToText renders probe results one per line with a status marker.
func ProbeToText(results []models.ProbeResult) []byte {
	var buf bytes.Buffer
	for _, r := range results {
		marker := styles.OK("✓")
		if r.Status != "working" {
			marker = styles.Err("✗")
		}
		fmt.Fprintf(&buf, "%s %s", marker, r.Name)
		if r.Error != "" {
			fmt.Fprintf(&buf, " %s", styles.Muted(r.Error))
		}
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

// ChartToText renders a top tracks chart as a numbered list.
func ChartToText(entries []models.ChartTrack) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n\n", styles.Title(fmt.Sprintf("Top Tracks (%d)", len(entries))))
	for i, e := range entries {
		fmt.Fprintf(&buf, "%2d. %s - %s", i+1, e.Artist, e.Name)
		if e.Listeners != "" {
			fmt.Fprintf(&buf, " %s", styles.Muted(e.Listeners+" listeners"))
		}
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

// Dedupe drops releases whose normalized title and artist were already seen, keeping the first.
func Dedupe(releases []models.ReleaseSummary) []models.ReleaseSummary {
	seen := make(map[string]bool, len(releases))
	out := make([]models.ReleaseSummary, 0, len(releases))
	for _, r := range releases {
		key := shared.NormalizeTrackKey(r.Title, r.Artist)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
