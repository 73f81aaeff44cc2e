package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSucceeded(t *testing.T) {
	t.Parallel()

	s := New()
	assert.True(t, s.Succeeded())

	s.RecordStep("login", true, time.Second)
	assert.True(t, s.Succeeded())

	s.RecordStep("listing", false, time.Second)
	assert.False(t, s.Succeeded())
}

func TestSetBills(t *testing.T) {
	t.Parallel()

	s := New()
	s.SetBills(0)
	assert.False(t, s.BillsFound)

	s.SetBills(2)
	assert.True(t, s.BillsFound)
	assert.Equal(t, 2, s.BillCards)
}

func TestSummary(t *testing.T) {
	t.Parallel()

	s := New()
	s.StartTime = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	s.EndTime = s.StartTime.Add(75 * time.Second)
	s.RecordStep("login", true, 0)
	s.SetBills(2)
	s.SetControlsFound(3)
	s.IncrementDownloadsStarted()
	s.IncrementDownloadsStarted()
	s.IncrementPopupsClosed()
	s.AddSkip(3, "format item not found")

	assert.Equal(t,
		"run completed: 2 bill cards, 2/3 downloads, 1 popups closed, 1 skipped, 0 errors in 1m 15s",
		s.Summary())

	s.RecordStep("download", false, 0)
	assert.Contains(t, s.Summary(), "run halted")
}

func TestPrint(t *testing.T) {
	t.Parallel()

	s := New()
	s.SetDownloadDir("/home/seluser/to_print")
	s.RecordStep("login", true, 0)
	s.RecordStep("listing", true, 0)
	s.RecordStep("download", false, 0)
	s.SetPageSizeDegraded()
	s.SetControlsFound(2)
	s.IncrementDownloadsStarted()
	s.AddSkip(2, "close control not found")
	s.AddError("download", "no download controls within 10s")

	var buf bytes.Buffer
	s.Print(&buf)
	out := buf.String()

	assert.Contains(t, out, "FINAL REPORT")
	assert.Contains(t, out, "/home/seluser/to_print")
	assert.Contains(t, out, "Step download")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "default (degraded)")
	assert.Contains(t, out, "1 of 2 controls, 1 skipped")
	assert.Contains(t, out, "control 2: close control not found")
	assert.Contains(t, out, "Errors (1):")
	assert.Contains(t, out, "[download] no download controls within 10s")
	assert.False(t, s.EndTime.IsZero())
}

func TestPrintTruncatesErrors(t *testing.T) {
	t.Parallel()

	s := New()
	for i := 0; i < 7; i++ {
		s.AddError("download", "boom")
	}

	var buf bytes.Buffer
	s.Print(&buf)
	assert.Contains(t, buf.String(), "... and 2 more errors")
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "5s", formatDuration(5*time.Second))
	assert.Equal(t, "2m 3s", formatDuration(123*time.Second))
	assert.Equal(t, "1h 0m 1s", formatDuration(time.Hour+time.Second))
}
