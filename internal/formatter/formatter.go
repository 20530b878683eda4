// package formatter renders pipeline run results as CSV, Markdown, JSON or plain text reports
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/adder/internal/shared"
	"github.com/desertthunder/adder/internal/tasks"
	"github.com/gosimple/slug"
)

// Format is a report output format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatText     Format = "txt"
)

// ParseFormat accepts a format name or a common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "txt", "text", "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidFlag, s)
	}
}

// Extension returns the file extension for f, without the dot.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// ReportFilename derives a file name from the playlist id and run start time, e.g.
// "37i9dqzf1dxcbwigoybm5m-2026-01-02-0304.csv".
func ReportFilename(playlistID string, at time.Time, f Format) string {
	base := slug.Make(playlistID + " " + at.Format("2006-01-02 1504"))
	if base == "" {
		base = "report"
	}
	return base + "." + f.Extension()
}

// RunToCSV converts a run to CSV with columns: Name, Outcome, URI, Score, Path, Error
func RunToCSV(res *tasks.RunResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Name", "Outcome", "URI", "Score", "Path", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, o := range res.Outcomes {
		record := []string{
			o.Name,
			o.Kind.String(),
			o.URI,
			strconv.FormatFloat(o.Score, 'f', 3, 64),
			o.Path,
			o.ErrorMessage(),
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

// RunToMarkdown converts a run to a Markdown document with a summary and a numbered outcome list
func RunToMarkdown(res *tasks.RunResult) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Sync report: %s\n\n", res.PlaylistID)
	fmt.Fprintf(&buf, "**Started**: %s\n", res.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&buf, "**Duration**: %s\n", res.Duration().Round(time.Millisecond))
	if res.Cancelled {
		buf.WriteString("**Cancelled**: yes\n")
	}
	buf.WriteString("\n")

	buf.WriteString("| Added | Downloaded | Download failed | Search failed | Add failed | Archived |\n")
	buf.WriteString("|---|---|---|---|---|---|\n")
	c := res.Counts
	fmt.Fprintf(&buf, "| %d | %d | %d | %d | %d | %d |\n\n",
		c.Added, c.Downloaded, c.DownloadFailed, c.SearchFailed, c.AddFailed, res.Archived)

	buf.WriteString("## Tracks\n\n")
	for i, o := range res.Outcomes {
		fmt.Fprintf(&buf, "%d. %s: **%s**%s\n", i+1, o.Name, o.Kind, markdownDetail(o))
	}

	return buf.Bytes(), nil
}

func markdownDetail(o tasks.Outcome) string {
	switch {
	case o.URI != "":
		return fmt.Sprintf(" `%s` (score %.3f)", o.URI, o.Score)
	case o.Path != "":
		return fmt.Sprintf(" `%s`", o.Path)
	case o.Err != nil:
		return " - " + o.Err.Error()
	}
	return ""
}

// RunToText converts a run to plain text, one line per outcome
func RunToText(res *tasks.RunResult) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", res.PlaylistID)
	c := res.Counts
	fmt.Fprintf(&buf, "Tracks: %d (added %d, downloaded %d, failed %d)\n\n",
		c.Total, c.Added, c.Downloaded, res.Failures())

	for i, o := range res.Outcomes {
		line := fmt.Sprintf("%d. [%s] %s", i+1, o.Kind, o.Name)
		if o.URI != "" {
			line += " -> " + o.URI
		} else if o.Path != "" {
			line += " -> " + o.Path
		}
		if o.Failed() && o.Err != nil {
			line += ": " + o.Err.Error()
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// Render converts a run to the given format.
func Render(res *tasks.RunResult, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return RunToCSV(res)
	case FormatMarkdown:
		return RunToMarkdown(res)
	case FormatJSON:
		return shared.MarshalJSON(res, true)
	case FormatText:
		return RunToText(res)
	default:
		return nil, fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidFlag, f)
	}
}

// WriteReport renders res and writes it to path.
//
// An empty path or an existing directory gets a [ReportFilename] inside it. The written path is returned.
func WriteReport(res *tasks.RunResult, path string, f Format) (string, error) {
	data, err := Render(res, f)
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	if path == "" {
		path = ReportFilename(res.PlaylistID, res.StartedAt, f)
	} else if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, ReportFilename(res.PlaylistID, res.StartedAt, f))
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
