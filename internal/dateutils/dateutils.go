// Package dateutils provides date parsing and calendar arithmetic shared by
// the normalizer, the scorer and the aging report.
package dateutils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Date layouts accepted on input. ISO is the canonical storage format.
const (
	DateLayoutISO      = "2006-01-02"
	DateLayoutSwiss    = "02.01.2006"
	DateLayoutUS       = "01/02/2006"
	DateLayoutFull     = "2006-01-02 15:04:05"
	DateLayoutRFC3339  = time.RFC3339
	DateLayoutShortCH  = "2.1.2006"
	DateLayoutEuropean = "02/01/2006"
)

// inputLayouts is tried in order. Day-first layouts come before US ones
// because the documents are Swiss.
var inputLayouts = []string{
	DateLayoutISO,
	DateLayoutSwiss,
	DateLayoutShortCH,
	DateLayoutFull,
	DateLayoutRFC3339,
	DateLayoutISO + "T15:04:05",
	DateLayoutEuropean,
	"02-01-2006",
	"2006/01/02",
	"2 January 2006",
	"02 Jan 2006",
	"January 2, 2006",
}

var spaceRe = regexp.MustCompile(`\s+`)

// CleanDateString trims and collapses whitespace.
func CleanDateString(dateStr string) string {
	return spaceRe.ReplaceAllString(strings.TrimSpace(dateStr), " ")
}

// ParseDate parses dateStr with the first matching input layout and returns
// it truncated to midnight UTC. An empty string yields the zero time.
func ParseDate(dateStr string) (time.Time, error) {
	clean := CleanDateString(dateStr)
	if clean == "" {
		return time.Time{}, nil
	}
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, clean); err == nil {
			return StartOfDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

// ToISODate formats date as YYYY-MM-DD, or "" for the zero time.
func ToISODate(date time.Time) string {
	if date.IsZero() {
		return ""
	}
	return date.Format(DateLayoutISO)
}

// StartOfDay returns the calendar date of t at midnight UTC.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the absolute number of calendar days between a and b.
// Times of day are ignored.
func DaysBetween(a, b time.Time) int {
	d := DaysSince(a, b)
	if d < 0 {
		return -d
	}
	return d
}

// DaysSince returns the signed number of calendar days from ref to now.
// It is positive when now is after ref.
func DaysSince(ref, now time.Time) int {
	return int(StartOfDay(now).Sub(StartOfDay(ref)).Hours() / 24)
}
