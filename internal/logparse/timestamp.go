package logparse

import (
	"errors"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"
)

// ErrTimestampFormat means a block's first line has no "Mon D HH:MM" prefix.
var ErrTimestampFormat = errors.New("timestamp format")

// ISOLayout renders resolved timestamps without zone, to the second.
const ISOLayout = "2006-01-02T15:04:05"

var timeRe = regexp.MustCompile(`^(\w+)\s(\d{1,2})\s(\d{1,2}):(\d{2})`)

// ResolveTimestamp reads the year-less "Jan 5 13:42" prefix of line and
// places it in year, in loc. The log format carries no year, so year has to
// come from the caller; logs crossing a new year resolve to the wrong one.
func ResolveTimestamp(line string, year int, loc *time.Location) (time.Time, error) {
	m := timeRe.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, fmt.Errorf("%w: no date prefix in %q", ErrTimestampFormat, truncate(line, 60))
	}
	if loc == nil {
		loc = time.Local
	}
	value := fmt.Sprintf("%04d %s %s %s:%s", year, m[1], m[2], m[3], m[4])
	t, err := time.ParseInLocation("2006 Jan 2 15:04", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrTimestampFormat, err)
	}
	return t, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
