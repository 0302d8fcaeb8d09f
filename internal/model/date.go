package model

import (
	"fmt"
	"time"
)

// DisplayDateLayout is the dd/MM/yyyy format dates are entered and stored in.
const DisplayDateLayout = "02/01/2006"

// dateKeyLayout sorts lexicographically in chronological order.
const dateKeyLayout = "2006-01-02"

// ParseDisplayDate parses a dd/MM/yyyy date as midnight UTC.
func ParseDisplayDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DisplayDateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want dd/mm/yyyy): %w", s, err)
	}
	return t, nil
}

// FormatDisplayDate formats t as dd/MM/yyyy in UTC.
func FormatDisplayDate(t time.Time) string {
	return t.UTC().Format(DisplayDateLayout)
}

// DateKey converts a display date into its sortable yyyy-mm-dd form.
func DateKey(display string) (string, error) {
	t, err := ParseDisplayDate(display)
	if err != nil {
		return "", err
	}
	return t.Format(dateKeyLayout), nil
}

// DateMillis converts a display date into epoch milliseconds at midnight UTC.
func DateMillis(display string) (int64, error) {
	t, err := ParseDisplayDate(display)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}
