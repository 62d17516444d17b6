package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/report"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Label:     "tech desk",
			Status:    model.RunStatusComplete,
			Stats:     &model.RunStats{Contacts: 12, SuccessRate: 0.9},
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Status:    model.RunStatusScoring,
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-30 * time.Minute),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "LABEL")
	assert.Contains(t, output, "tech desk")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "90.0%")
	assert.Contains(t, output, "scoring")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
}

func TestFormatSnapshot(t *testing.T) {
	var buf bytes.Buffer
	formatSnapshot(&buf, &report.Snapshot{
		Runs:           3,
		Complete:       2,
		Failed:         1,
		FailRate:       0.3333,
		AvgSuccessRate: 0.85,
		TotalContacts:  40,
	})

	output := buf.String()
	assert.Contains(t, output, "Total runs:")
	assert.Contains(t, output, "33.3%")
	assert.Contains(t, output, "85.0%")
	assert.Contains(t, output, "40")
}

func TestFormatSnapshot_NoRuns(t *testing.T) {
	var buf bytes.Buffer
	formatSnapshot(&buf, &report.Snapshot{})
	assert.NotContains(t, buf.String(), "Avg success rate")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}
