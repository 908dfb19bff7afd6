// Package natdate parses the small slice of natural-language time
// expressions that show up in reminder requests, and renders due times
// back into chat-friendly labels.
package natdate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	relativeRe = regexp.MustCompile(`\bin\s+(\d+)\s*(minutes?|mins?|m|hours?|hrs?|h|days?|d|weeks?|w)\b`)
	clockRe    = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	clock24Re  = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	isoRe      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})(?:[ T](\d{1,2}):(\d{2}))?\b`)
	monthDayRe = regexp.MustCompile(`\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})\b`)
	dayMonthRe = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\b`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

// timeWordsRe matches whole tokens that signal a time expression. Word
// boundaries matter: "reminders" must not count as "min".
var timeWordsRe = regexp.MustCompile(`\b(am|pm|noon|midnight|morning|afternoon|evening|tonight|o'clock|mins?|minutes?|hours?|hrs?|tomorrow|today)\b`)

// MentionsTime reports whether the text plausibly carries a time expression.
// Used to decide when a reminder request needs a time confirmation turn.
func MentionsTime(text string) bool {
	lowered := strings.ToLower(text)
	if timeWordsRe.MatchString(lowered) {
		return true
	}
	if clockRe.MatchString(lowered) || clock24Re.MatchString(lowered) || isoRe.MatchString(lowered) {
		return true
	}
	if relativeRe.MatchString(lowered) {
		return true
	}
	if monthDayRe.MatchString(lowered) || dayMonthRe.MatchString(lowered) {
		return true
	}
	for day := range weekdays {
		if strings.Contains(lowered, day) {
			return true
		}
	}
	return false
}

// Parse resolves a natural-language expression against now in loc.
// It returns false when no time expression is recognized. Results always
// prefer the future: a bare clock time already past today rolls to
// tomorrow.
func Parse(text string, now time.Time, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return time.Time{}, false
	}
	now = now.In(loc)

	// Relative offsets resolve on their own, no date anchor needed.
	if m := relativeRe.FindStringSubmatch(lowered); m != nil {
		n, _ := strconv.Atoi(m[1])
		var d time.Duration
		switch m[2][0] {
		case 'm':
			d = time.Duration(n) * time.Minute
		case 'h':
			d = time.Duration(n) * time.Hour
		case 'd':
			d = time.Duration(n) * 24 * time.Hour
		case 'w':
			d = time.Duration(n) * 7 * 24 * time.Hour
		}
		return now.Add(d), true
	}

	if m := isoRe.FindStringSubmatch(lowered); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		hour, minute := 9, 0
		if m[4] != "" {
			hour, _ = strconv.Atoi(m[4])
			minute, _ = strconv.Atoi(m[5])
		}
		return time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc), true
	}

	date, hasDate := parseDate(lowered, now, loc)
	hour, minute, hasClock := parseClock(lowered)

	if !hasDate && !hasClock {
		return time.Time{}, false
	}
	if !hasDate {
		date = now
	}
	if !hasClock {
		hour, minute = 9, 0
	}

	result := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, loc)
	if !hasDate && !result.After(now) {
		result = result.AddDate(0, 0, 1)
	}
	return result, true
}

// parseDate extracts the date portion. The returned time carries only the
// calendar day; callers overlay the clock.
func parseDate(lowered string, now time.Time, loc *time.Location) (time.Time, bool) {
	switch {
	case strings.Contains(lowered, "day after tomorrow"):
		return now.AddDate(0, 0, 2), true
	case strings.Contains(lowered, "tomorrow"):
		return now.AddDate(0, 0, 1), true
	case strings.Contains(lowered, "today"), strings.Contains(lowered, "tonight"):
		return now, true
	}

	for name, wd := range weekdays {
		if !strings.Contains(lowered, name) {
			continue
		}
		days := int(wd-now.Weekday()+7) % 7
		if days == 0 {
			days = 7
		}
		if strings.Contains(lowered, "next "+name) && days <= 3 {
			// "next monday" said late in the week lands the following week.
			days += 7
		}
		return now.AddDate(0, 0, days), true
	}

	if m := monthDayRe.FindStringSubmatch(lowered); m != nil {
		day, _ := strconv.Atoi(m[2])
		return resolveMonthDay(months[m[1]], day, now, loc), true
	}
	if m := dayMonthRe.FindStringSubmatch(lowered); m != nil {
		day, _ := strconv.Atoi(m[1])
		return resolveMonthDay(months[m[2]], day, now, loc), true
	}

	return time.Time{}, false
}

// resolveMonthDay picks this year or next, whichever keeps the date ahead.
func resolveMonthDay(month time.Month, day int, now time.Time, loc *time.Location) time.Time {
	candidate := time.Date(now.Year(), month, day, 23, 59, 0, 0, loc)
	if candidate.Before(now) {
		return time.Date(now.Year()+1, month, day, 0, 0, 0, 0, loc)
	}
	return time.Date(now.Year(), month, day, 0, 0, 0, 0, loc)
}

// parseClock extracts the clock portion.
func parseClock(lowered string) (hour, minute int, ok bool) {
	switch {
	case strings.Contains(lowered, "noon"):
		return 12, 0, true
	case strings.Contains(lowered, "midnight"):
		return 0, 0, true
	}

	if m := clockRe.FindStringSubmatch(lowered); m != nil {
		hour, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour > 12 || minute > 59 {
			return 0, 0, false
		}
		if m[3] == "pm" && hour != 12 {
			hour += 12
		}
		if m[3] == "am" && hour == 12 {
			hour = 0
		}
		return hour, minute, true
	}

	if m := clock24Re.FindStringSubmatch(lowered); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return 0, 0, false
		}
		return hour, minute, true
	}

	switch {
	case strings.Contains(lowered, "morning"):
		return 9, 0, true
	case strings.Contains(lowered, "afternoon"):
		return 15, 0, true
	case strings.Contains(lowered, "evening"), strings.Contains(lowered, "tonight"):
		return 19, 0, true
	}

	return 0, 0, false
}

// FormatDue renders a due time as a short chat label, e.g. "3rd Mar, 5:00 PM".
func FormatDue(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("%s %s, %s", ordinal(t.Day()), t.Format("Jan"), t.Format("3:04 PM"))
}

func ordinal(day int) string {
	suffix := "th"
	switch {
	case day%100 >= 11 && day%100 <= 13:
		// 11th, 12th, 13th
	case day%10 == 1:
		suffix = "st"
	case day%10 == 2:
		suffix = "nd"
	case day%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", day, suffix)
}
