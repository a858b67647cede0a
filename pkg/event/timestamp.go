package event

import (
	"fmt"
	"strings"
	"time"
)

// Clock returns the current instant. A nil Clock reads the system time.
type Clock func() time.Time

// SystemClock reads time.Now.
var SystemClock Clock = time.Now

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// Now returns the current instant in UTC.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp reads a platform timestamp such as 2021-04-01T21:30:00Z.
// Empty or unparseable input yields the current instant.
func (c Clock) ParseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return c.Now()
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return c.Now()
}

// FormatTimestamp renders t as "1st April 2021 - 9:30 PM UTC".
// The zero instant is replaced by the current one.
func (c Clock) FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		t = c.Now()
	}
	t = t.UTC()

	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	meridiem := "AM"
	if t.Hour() >= 12 {
		meridiem = "PM"
	}
	return fmt.Sprintf("%d%s %s %d - %d:%02d %s UTC",
		t.Day(), ordinalSuffix(t.Day()), t.Month(), t.Year(), hour, t.Minute(), meridiem)
}

func ordinalSuffix(day int) string {
	if day >= 11 && day <= 20 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

// ParseTimestamp parses value using the system clock for fallbacks.
func ParseTimestamp(value string) time.Time {
	return SystemClock.ParseTimestamp(value)
}

// FormatTimestamp formats t using the system clock for fallbacks.
func FormatTimestamp(t time.Time) string {
	return SystemClock.FormatTimestamp(t)
}
