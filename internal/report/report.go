// Package report collects run statistics and prints the final summary.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ErrorEntry is a failure recorded during the run.
type ErrorEntry struct {
	Timestamp time.Time
	Step      string
	Message   string
}

// StepResult is the outcome of one step.
type StepResult struct {
	Name     string
	OK       bool
	Duration time.Duration
}

// Skip is a download control that was passed over without a download.
type Skip struct {
	Control int // 1-based enumeration index
	Reason  string
}

// Stats holds everything the steps report during a run. Steps run one at a
// time, so no locking is needed.
type Stats struct {
	StartTime time.Time
	EndTime   time.Time

	BillsFound       bool
	BillCards        int
	PageSizeDegraded bool

	ControlsFound    int
	DownloadsStarted int
	PopupsClosed     int
	Skipped          []Skip

	DownloadDir string
	Steps       []StepResult
	Errors      []ErrorEntry
}

// New creates a Stats instance with StartTime set to now.
func New() *Stats {
	return &Stats{
		StartTime: time.Now(),
		Errors:    make([]ErrorEntry, 0),
	}
}

// AddError records a failure.
func (s *Stats) AddError(step, message string) {
	s.Errors = append(s.Errors, ErrorEntry{
		Timestamp: time.Now(),
		Step:      step,
		Message:   message,
	})
}

// RecordStep records a step outcome.
func (s *Stats) RecordStep(name string, ok bool, d time.Duration) {
	s.Steps = append(s.Steps, StepResult{Name: name, OK: ok, Duration: d})
}

// SetBills records what the dashboard showed.
func (s *Stats) SetBills(cards int) {
	s.BillCards = cards
	s.BillsFound = cards > 0
}

// SetPageSizeDegraded marks the bill list as shown with its default page size.
func (s *Stats) SetPageSizeDegraded() {
	s.PageSizeDegraded = true
}

// SetControlsFound records how many download controls were enumerated.
func (s *Stats) SetControlsFound(n int) {
	s.ControlsFound = n
}

// IncrementDownloadsStarted counts a format selection that went through.
func (s *Stats) IncrementDownloadsStarted() {
	s.DownloadsStarted++
}

// IncrementPopupsClosed counts a dismissed attachments popup.
func (s *Stats) IncrementPopupsClosed() {
	s.PopupsClosed++
}

// AddSkip records a control that produced no download.
func (s *Stats) AddSkip(control int, reason string) {
	s.Skipped = append(s.Skipped, Skip{Control: control, Reason: reason})
}

// SetDownloadDir sets the directory shown in the report.
func (s *Stats) SetDownloadDir(dir string) {
	s.DownloadDir = dir
}

// Succeeded reports whether every step that ran returned true.
func (s *Stats) Succeeded() bool {
	for _, st := range s.Steps {
		if !st.OK {
			return false
		}
	}
	return true
}

// Finish marks the end time.
func (s *Stats) Finish() {
	if s.EndTime.IsZero() {
		s.EndTime = time.Now()
	}
}

// Duration returns the total execution duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}

var (
	styleFrame = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	styleTitle = lipgloss.NewStyle().Bold(true)
	styleGood  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleBad   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	stylePlain = lipgloss.NewStyle()
)

// contentWidth is the inner width of the report box.
const contentWidth = 52

// Print writes the final report to w.
func (s *Stats) Print(w io.Writer) {
	s.Finish()
	b := &box{w: w, width: contentWidth}

	fmt.Fprintln(w)
	b.rule("=")
	b.title("📊 FINAL REPORT")
	b.rule("-")

	b.row("⏱️ ", "Duration", formatDuration(s.Duration()), stylePlain)
	if s.DownloadDir != "" {
		b.row("📁", "Download dir", s.DownloadDir, stylePlain)
	}

	for _, st := range s.Steps {
		if st.OK {
			b.row("✅", "Step "+st.Name, "ok", styleGood)
		} else {
			b.row("❌", "Step "+st.Name, "failed", styleBad)
		}
	}

	if s.BillsFound {
		b.row("🧾", "Bill cards", fmt.Sprintf("%d", s.BillCards), stylePlain)
	} else {
		b.row("🧾", "Bill cards", "none", stylePlain)
	}

	if s.PageSizeDegraded {
		b.row("⚠️ ", "Page size", "default (degraded)", styleWarn)
	}

	downloads := fmt.Sprintf("%d of %d controls", s.DownloadsStarted, s.ControlsFound)
	downloadStyle := styleGood
	if len(s.Skipped) > 0 {
		downloads += fmt.Sprintf(", %d skipped", len(s.Skipped))
		downloadStyle = styleWarn
	}
	b.row("⬇️ ", "Downloads", downloads, downloadStyle)

	if s.PopupsClosed > 0 {
		b.row("🗂️ ", "Popups closed", fmt.Sprintf("%d", s.PopupsClosed), stylePlain)
	}

	for _, sk := range s.Skipped {
		b.detail(fmt.Sprintf("- control %d: %s", sk.Control, sk.Reason), styleWarn)
	}

	b.rule("-")
	if len(s.Errors) > 0 {
		b.row("❌", fmt.Sprintf("Errors (%d):", len(s.Errors)), "", styleBad)

		const maxErrors = 5
		for i, e := range s.Errors {
			if i >= maxErrors {
				b.detail(fmt.Sprintf("... and %d more errors", len(s.Errors)-maxErrors), styleBad)
				break
			}
			b.detail(fmt.Sprintf("- [%s] %s", e.Step, e.Message), styleBad)
		}
	} else {
		b.row("✅", "No errors occurred", "", styleGood)
	}
	b.rule("=")
	fmt.Fprintln(w)
}

// Summary returns a one-line summary of the run.
func (s *Stats) Summary() string {
	status := "completed"
	if !s.Succeeded() {
		status = "halted"
	}
	return fmt.Sprintf(
		"run %s: %d bill cards, %d/%d downloads, %d popups closed, %d skipped, %d errors in %s",
		status,
		s.BillCards,
		s.DownloadsStarted,
		s.ControlsFound,
		s.PopupsClosed,
		len(s.Skipped),
		len(s.Errors),
		formatDuration(s.Duration()),
	)
}

type box struct {
	w     io.Writer
	width int
}

func (b *box) rule(ch string) {
	fmt.Fprintln(b.w, styleFrame.Render(strings.Repeat(ch, b.width)))
}

func (b *box) title(text string) {
	padding := max((b.width-lipgloss.Width(text))/2, 0)
	fmt.Fprintln(b.w, strings.Repeat(" ", padding)+styleTitle.Render(text))
}

// row prints "  [emoji]  [label]   [value]" with the label padded to a
// fixed visual width.
func (b *box) row(emoji, label, value string, valueStyle lipgloss.Style) {
	const labelWidth = 24

	full := label
	if emoji != "" {
		full = emoji + "  " + label
	}
	pad := max(labelWidth-lipgloss.Width(full), 0)

	line := "  " + full + strings.Repeat(" ", pad)
	if value != "" {
		line += "   " + valueStyle.Render(value)
	}
	fmt.Fprintln(b.w, line)
}

func (b *box) detail(text string, st lipgloss.Style) {
	fmt.Fprintln(b.w, "      "+st.Render(text))
}
