package logparse

import (
	"fmt"
	"sort"
	"time"
)

// TimeGroup is the bucket width used by Summarize.
type TimeGroup string

const (
	GroupHour  TimeGroup = "hour"
	GroupDay   TimeGroup = "day"
	GroupWeek  TimeGroup = "week"
	GroupMonth TimeGroup = "month"
)

// ParseTimeGroup validates a user-supplied group name.
func ParseTimeGroup(s string) (TimeGroup, error) {
	switch g := TimeGroup(s); g {
	case GroupHour, GroupDay, GroupWeek, GroupMonth:
		return g, nil
	default:
		return "", fmt.Errorf("unknown time group %q; valid values: hour, day, week, month", s)
	}
}

// Bucket aggregates the exchanges that started within one period.
type Bucket struct {
	Start    time.Time      `json:"start"`
	Total    int            `json:"total"`
	Correct  int            `json:"correct"`
	Fallback int            `json:"fallback"`
	ByModule map[string]int `json:"by_module"`
}

// Start returns the beginning of the period containing t. Weeks start on Monday.
func (g TimeGroup) Start(t time.Time) time.Time {
	y, mo, d := t.Date()
	loc := t.Location()
	switch g {
	case GroupHour:
		return time.Date(y, mo, d, t.Hour(), 0, 0, 0, loc)
	case GroupWeek:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, mo, d-offset, 0, 0, 0, 0, loc)
	case GroupMonth:
		return time.Date(y, mo, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, mo, d, 0, 0, 0, 0, loc)
	}
}

// Summarize buckets every exchange in r by g, oldest bucket first. Modules
// are counted by the resolved response module.
func Summarize(r *Report, cfg Config, g TimeGroup) []Bucket {
	byStart := make(map[int64]*Bucket)
	for _, ul := range r.Users {
		for _, ex := range ul.Exchanges {
			start := g.Start(ex.Timestamp)
			b, ok := byStart[start.Unix()]
			if !ok {
				b = &Bucket{Start: start, ByModule: make(map[string]int)}
				byStart[start.Unix()] = b
			}
			b.Total++
			if ex.Correct {
				b.Correct++
			} else {
				b.Fallback++
			}
			b.ByModule[cfg.ResponseModule(ex.Modules)]++
		}
	}

	buckets := make([]Bucket, 0, len(byStart))
	for _, b := range byStart {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Start.Before(buckets[j].Start)
	})
	return buckets
}
