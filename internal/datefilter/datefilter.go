// Package datefilter computes the lower date bound of the unread bill list
// and builds the list URL around it.
package datefilter

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Layout is the date format the bill list expects in its query string.
const Layout = "2006-01-02"

// LookbackDays is how far back from today the lookback month is picked.
const LookbackDays = 30

// LookbackStart returns the first day of the month that contains the day
// LookbackDays before now. The result keeps now's location and has no time
// of day.
//
// For 2024-03-15 the lookback day is 2024-02-14, so the start is 2024-02-01.
func LookbackStart(now time.Time) time.Time {
	d := now.AddDate(0, 0, -LookbackDays)
	d = d.AddDate(0, 0, -(d.Day() - 1))
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// Format renders t the way the bill list filter expects it.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// BillListURL returns base+path filtered on documents dated from start on
// and carrying the given read status.
func BillListURL(base, path string, start time.Time, status string) string {
	q := url.Values{}
	q.Set("dataDa", Format(start))
	q.Set("statoLettura", status)
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/") + "?" + q.Encode()
}
