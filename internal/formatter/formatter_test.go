package formatter

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/dailyshuffle/internal/models"
	"github.com/desertthunder/dailyshuffle/internal/shared"
	"github.com/desertthunder/dailyshuffle/internal/tasks"
)

func testJobs() []models.JobWithNames {
	updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []models.JobWithNames{
		{
			Job:             models.Job{OwnerID: "alice", SourcePlaylistID: "src1", DestinationPlaylistID: "dst1", UpdatedAt: updated},
			SourceName:      "Road Trip",
			DestinationName: "Road Trip (Daily Shuffle)",
		},
		{
			Job: models.Job{OwnerID: "bob", SourcePlaylistID: "src2", DestinationPlaylistID: "dst2"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatText},
		{"text", FormatText},
		{"CSV", FormatCSV},
		{"md", FormatMarkdown},
		{"markdown", FormatMarkdown},
		{" json ", FormatJSON},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}

	if _, err := ParseFormat("yaml"); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestExporters(t *testing.T) {
	t.Run("JobsToCSV", func(t *testing.T) {
		data, err := JobsToCSV(testJobs())
		if err != nil {
			t.Fatalf("JobsToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
		}
		if lines[0] != "Owner,Source ID,Source,Destination ID,Destination,Updated" {
			t.Errorf("CSV headers = %s", lines[0])
		}
		if lines[1] != "alice,src1,Road Trip,dst1,Road Trip (Daily Shuffle),2024-05-01T12:00:00Z" {
			t.Errorf("CSV row = %s", lines[1])
		}
		if lines[2] != "bob,src2,,dst2,," {
			t.Errorf("CSV row without names = %s", lines[2])
		}
	})

	t.Run("JobsToMarkdown", func(t *testing.T) {
		output := string(JobsToMarkdown(testJobs()))

		for _, want := range []string{
			"# Shuffle Jobs",
			"**Jobs**: 2",
			"| alice | Road Trip (src1) | Road Trip (Daily Shuffle) (dst1) | 2024-05-01T12:00:00Z |",
			"| bob | src2 | dst2 |  |",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q:\n%s", want, output)
			}
		}
	})

	t.Run("JobsToMarkdown escapes pipes", func(t *testing.T) {
		jobs := []models.JobWithNames{{Job: models.Job{OwnerID: "a", SourcePlaylistID: "s", DestinationPlaylistID: "d"}, SourceName: "A|B"}}
		if output := string(JobsToMarkdown(jobs)); !strings.Contains(output, `A\|B (s)`) {
			t.Errorf("pipe not escaped:\n%s", output)
		}
	})

	t.Run("JobsToMarkdown empty", func(t *testing.T) {
		output := string(JobsToMarkdown(nil))
		if strings.Contains(output, "| Owner |") {
			t.Error("empty list should not render a table")
		}
	})

	t.Run("JobsToText", func(t *testing.T) {
		output := string(JobsToText(testJobs()))

		expected := "Jobs: 2\n1. [alice] Road Trip (src1) -> Road Trip (Daily Shuffle) (dst1)\n2. [bob] src2 -> dst2\n"
		if output != expected {
			t.Errorf("JobsToText = %q, want %q", output, expected)
		}
	})

	t.Run("FormatJobs JSON", func(t *testing.T) {
		data, err := FormatJobs(testJobs(), FormatJSON)
		if err != nil {
			t.Fatalf("FormatJobs failed: %v", err)
		}

		var decoded []map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded[0]["destinationPlaylistId"] != "dst1" || decoded[0]["sourceName"] != "Road Trip" {
			t.Errorf("unexpected JSON %v", decoded[0])
		}
	})
}

func TestRunReport(t *testing.T) {
	result := &tasks.RunResult{
		Successes: 1,
		Errors:    1,
		Duration:  1234567 * time.Microsecond,
		Shared:    true,
		Results: []tasks.JobResult{
			{Job: models.Job{DestinationPlaylistID: "dst1"}, Tracks: 130, SnapshotID: "snap-1"},
			{Job: models.Job{DestinationPlaylistID: "dst2"}, Err: errors.New("failed to fetch source tracks")},
		},
	}

	output := RunReport(result, DefaultPalette)

	for _, want := range []string{
		"Shuffle pass",
		"1 succeeded",
		"1 failed",
		"1.235s",
		"joined a pass",
		"dst1  130 tracks",
		"snap-1",
		"dst2  failed to fetch source tracks",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("report missing %q:\n%s", want, output)
		}
	}
}
