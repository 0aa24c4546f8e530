package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Announcement timestamps are civil KST times.
var kst = time.FixedZone("KST", 9*60*60)

// koreanDate matches "2026년 3월 15일", "2026. 3. 15.", "2026.03.15" and
// "2026-03-15", with an optional weekday suffix "(일)" and optional "18:00".
var koreanDate = regexp.MustCompile(
	`(\d{4})\s*[년.\-]\s*(\d{1,2})\s*[월.\-]\s*(\d{1,2})\s*일?\.?\s*(?:\([월화수목금토일]\))?\s*(?:(\d{1,2}):(\d{2}))?`)

// shortDate matches the right-hand side of a window where the year (and
// sometimes the month) is inherited from the left: "03.15", "3월 15일 18:00".
var shortDate = regexp.MustCompile(
	`^(\d{1,2})\s*[월.\-]\s*(\d{1,2})\s*일?\.?\s*(?:\([월화수목금토일]\))?\s*(?:(\d{1,2}):(\d{2}))?`)

var windowSplit = regexp.MustCompile(`\s*(?:~|∼|–|부터|까지)\s*`)

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// buildDate assembles a KST timestamp. A date with no stated time means the
// whole day is valid, so it resolves to end of day.
func buildDate(year, month, day int, hh, mm string) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("implausible date %d-%d-%d", year, month, day)
	}
	if hh != "" {
		return time.Date(year, time.Month(month), day, atoi(hh), atoi(mm), 0, 0, kst), nil
	}
	return time.Date(year, time.Month(month), day, 23, 59, 59, 0, kst), nil
}

// ParseKoreanDate parses the first full date in text.
func ParseKoreanDate(text string) (time.Time, error) {
	m := koreanDate.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, fmt.Errorf("no date in %q", text)
	}
	return buildDate(atoi(m[1]), atoi(m[2]), atoi(m[3]), m[4], m[5])
}

// ParseWindow extracts an application window. Handles full ranges
// ("2026.02.01 ~ 2026.03.15 18:00"), year-inherited right sides
// ("2026.02.01 ~ 03.15"), and deadline-only spellings
// ("2026년 3월 15일(일) 18:00까지"). Either bound may be nil.
func ParseWindow(text string) (start, end *time.Time, patternID string) {
	for _, line := range strings.Split(text, "\n") {
		first := koreanDate.FindStringSubmatchIndex(line)
		if first == nil {
			continue
		}
		m := koreanDate.FindStringSubmatch(line)
		left, err := buildDate(atoi(m[1]), atoi(m[2]), atoi(m[3]), m[4], m[5])
		if err != nil {
			continue
		}
		rest := line[first[1]:]

		if loc := windowSplit.FindStringIndex(rest); loc != nil {
			tail := strings.TrimSpace(rest[loc[1]:])
			// Full date on the right side of the range.
			if idx := koreanDate.FindStringIndex(tail); idx != nil && idx[0] == 0 {
				r := koreanDate.FindStringSubmatch(tail)
				right, err := buildDate(atoi(r[1]), atoi(r[2]), atoi(r[3]), r[4], r[5])
				if err == nil && !right.Before(left) {
					return &left, &right, "window-full-range"
				}
			} else if r := shortDate.FindStringSubmatch(tail); r != nil {
				// Year inherited from the left bound.
				right, err := buildDate(atoi(m[1]), atoi(r[1]), atoi(r[2]), r[3], r[4])
				if err == nil && !right.Before(left) {
					return &left, &right, "window-short-range"
				}
			}
		}

		// Single date: 까지 marks a deadline, 부터 an opening.
		if strings.Contains(line, "까지") {
			return nil, &left, "deadline-only"
		}
		if strings.Contains(line, "부터") {
			return &left, nil, "start-only"
		}
		if containsAny(line, []string{"마감", "접수마감", "신청기한"}) {
			return nil, &left, "deadline-marker"
		}
	}
	return nil, nil, ""
}
