package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Call agents report dates and times the way a receptionist says them:
// "Friday", "10 AM", "2:30 PM". These helpers normalize such input to
// ISO date / 24h clock before it reaches validation, returning the input
// unchanged when it cannot be parsed.

var weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

var (
	isoDateRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clockRe    = regexp.MustCompile(`(?i)^(\d{1,2}):(\d{2})\s*(am|pm)?$`)
	hourOnlyRe = regexp.MustCompile(`(?i)^(\d{1,2})\s*(am|pm)$`)
)

// ParseDateFlexible returns a "YYYY-MM-DD" date, accepting ISO dates or
// weekday names ("friday" means the next Friday from today; "next friday"
// never means today).
func ParseDateFlexible(s string, today time.Time) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if isoDateRe.MatchString(s) {
		if _, err := time.Parse("2006-01-02", s); err == nil {
			return s, true
		}
		return "", false
	}
	lower := strings.ToLower(s)
	for i, name := range weekdays {
		if strings.Contains(lower, name) {
			daysAhead := (i - int(today.Weekday()) + 7) % 7
			if strings.Contains(lower, "next") && daysAhead == 0 {
				daysAhead = 7
			}
			return today.AddDate(0, 0, daysAhead).Format("2006-01-02"), true
		}
	}
	return "", false
}

// ParseTimeFlexible returns an "HH:MM" 24h time, accepting "09:00", "9:00",
// "10 AM" and "2:30 PM".
func ParseTimeFlexible(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if m := clockRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		h = applyMeridiem(h, m[3])
		if h >= 0 && h <= 23 && mi >= 0 && mi <= 59 {
			return fmt.Sprintf("%02d:%02d", h, mi), true
		}
		return "", false
	}
	if m := hourOnlyRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		h = applyMeridiem(h, m[2])
		if h >= 0 && h <= 23 {
			return fmt.Sprintf("%02d:00", h), true
		}
	}
	return "", false
}

func applyMeridiem(h int, meridiem string) int {
	switch strings.ToLower(meridiem) {
	case "pm":
		if h < 12 {
			h += 12
		}
	case "am":
		if h == 12 {
			h = 0
		}
	}
	return h
}

// NormalizeDate returns the parsed date or the trimmed input when unparseable.
func NormalizeDate(s string) string {
	if v, ok := ParseDateFlexible(s, time.Now()); ok {
		return v
	}
	return strings.TrimSpace(s)
}

// NormalizeTime returns the parsed time or the trimmed input when unparseable.
func NormalizeTime(s string) string {
	if v, ok := ParseTimeFlexible(s); ok {
		return v
	}
	return strings.TrimSpace(s)
}
