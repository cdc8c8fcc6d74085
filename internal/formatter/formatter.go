// package formatter renders job lists and shuffle pass reports for the CLI (CSV, Markdown, JSON, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/dailyshuffle/internal/models"
	"github.com/desertthunder/dailyshuffle/internal/shared"
	"github.com/desertthunder/dailyshuffle/internal/tasks"
)

// Format names an output encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name, case-insensitive, with "md" as an alias for markdown.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatCSV, FormatMarkdown, FormatJSON:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, s)
	}
}

// FormatJobs renders jobs in format.
func FormatJobs(jobs []models.JobWithNames, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return JobsToCSV(jobs)
	case FormatMarkdown:
		return JobsToMarkdown(jobs), nil
	case FormatJSON:
		data, err := json.MarshalIndent(jobs, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return append(data, '\n'), nil
	default:
		return JobsToText(jobs), nil
	}
}

// JobsToCSV converts jobs to CSV with columns: Owner, Source ID, Source, Destination ID, Destination, Updated
func JobsToCSV(jobs []models.JobWithNames) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Owner", "Source ID", "Source", "Destination ID", "Destination", "Updated"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, job := range jobs {
		record := []string{
			job.OwnerID,
			job.SourcePlaylistID,
			job.SourceName,
			job.DestinationPlaylistID,
			job.DestinationName,
			formatTime(job.UpdatedAt),
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

// JobsToMarkdown converts jobs to a Markdown table.
func JobsToMarkdown(jobs []models.JobWithNames) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Shuffle Jobs\n\n")
	buf.WriteString(fmt.Sprintf("**Jobs**: %d\n\n", len(jobs)))
	if len(jobs) == 0 {
		return buf.Bytes()
	}

	buf.WriteString("| Owner | Source | Destination | Updated |\n")
	buf.WriteString("|---|---|---|---|\n")
	for _, job := range jobs {
		buf.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			cell(job.OwnerID),
			cell(label(job.SourceName, job.SourcePlaylistID)),
			cell(label(job.DestinationName, job.DestinationPlaylistID)),
			formatTime(job.UpdatedAt),
		))
	}

	return buf.Bytes()
}

// JobsToText converts jobs to one line per job.
func JobsToText(jobs []models.JobWithNames) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Jobs: %d\n", len(jobs)))
	for i, job := range jobs {
		buf.WriteString(fmt.Sprintf("%d. [%s] %s -> %s\n",
			i+1,
			job.OwnerID,
			label(job.SourceName, job.SourcePlaylistID),
			label(job.DestinationName, job.DestinationPlaylistID),
		))
	}

	return buf.Bytes()
}

// RunReport renders a shuffle pass summary followed by one line per job.
func RunReport(result *tasks.RunResult, p *Palette) string {
	var b strings.Builder

	b.WriteString(p.Title("Shuffle pass"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s  %s  in %s\n",
		p.OK(fmt.Sprintf("%d succeeded", result.Successes)),
		p.Error(fmt.Sprintf("%d failed", result.Errors)),
		result.Duration.Round(time.Millisecond),
	))
	if result.Shared {
		b.WriteString(p.Help("joined a pass that was already running"))
		b.WriteString("\n")
	}

	for _, res := range result.Results {
		if res.Err != nil {
			b.WriteString(fmt.Sprintf("%s %s  %v\n", p.Error("✗"), res.Job.DestinationPlaylistID, res.Err))
			continue
		}
		b.WriteString(fmt.Sprintf("%s %s  %d tracks  %s\n",
			p.OK("✓"), res.Job.DestinationPlaylistID, res.Tracks, p.Help(res.SnapshotID)))
	}

	return b.String()
}

func label(name, id string) string {
	if name == "" {
		return id
	}
	return fmt.Sprintf("%s (%s)", name, id)
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
