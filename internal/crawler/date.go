package crawler

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDatePattern     = regexp.MustCompile(`(\d{4})[-_.](\d{2})[-_.](\d{2})`)
	usDatePattern      = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	compactDatePattern = regexp.MustCompile(`(?:^|[^\d])(20\d{2})(\d{2})(\d{2})(?:[^\d]|$)`)
	monthDatePattern   = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2}),?\s+(\d{4})\b`)
	quarterPattern     = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])q([1-4])[\s_-]*(?:fy)?[\s_-]*((?:19|20)\d{2})(?:[^0-9]|$)`)
	yearQuarterPattern = regexp.MustCompile(`(?i)(?:^|[^0-9])((?:19|20)\d{2})[\s_-]*q([1-4])(?:[^0-9]|$)`)
	fiscalYearPattern  = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])fy[\s_-]*((?:19|20)\d{2}|\d{2})(?:[^0-9]|$)`)
)

var monthNames = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// InferDate guesses a publication date from the given texts, tried in order
// (typically the anchor label, then the URL). Full dates win over quarters,
// quarters over fiscal years. The zero time means nothing was found.
func InferDate(texts ...string) time.Time {
	for _, text := range texts {
		if d := inferFullDate(text); !d.IsZero() {
			return d
		}
	}
	for _, text := range texts {
		if d := inferPeriod(text); !d.IsZero() {
			return d
		}
	}
	return time.Time{}
}

func inferFullDate(text string) time.Time {
	if m := isoDatePattern.FindStringSubmatch(text); m != nil {
		if d, ok := makeDate(m[1], m[2], m[3]); ok {
			return d
		}
	}
	if m := monthDatePattern.FindStringSubmatch(text); m != nil {
		month := monthNames[strings.ToLower(m[1])]
		if d, ok := makeDate(m[3], strconv.Itoa(int(month)), m[2]); ok {
			return d
		}
	}
	if m := usDatePattern.FindStringSubmatch(text); m != nil {
		if d, ok := makeDate(m[3], m[1], m[2]); ok {
			return d
		}
	}
	if m := compactDatePattern.FindStringSubmatch(text); m != nil {
		if d, ok := makeDate(m[1], m[2], m[3]); ok {
			return d
		}
	}
	return time.Time{}
}

func inferPeriod(text string) time.Time {
	if m := quarterPattern.FindStringSubmatch(text); m != nil {
		return quarterStart(m[2], m[1])
	}
	if m := yearQuarterPattern.FindStringSubmatch(text); m != nil {
		return quarterStart(m[1], m[2])
	}
	if m := fiscalYearPattern.FindStringSubmatch(text); m != nil {
		year := m[1]
		if len(year) == 2 {
			year = "20" + year
		}
		if d, ok := makeDate(year, "1", "1"); ok {
			return d
		}
	}
	return time.Time{}
}

func quarterStart(year, quarter string) time.Time {
	q, _ := strconv.Atoi(quarter)
	d, ok := makeDate(year, strconv.Itoa((q-1)*3+1), "1")
	if !ok {
		return time.Time{}
	}
	return d
}

// makeDate validates the parts and rejects implausible years and
// normalized overflow such as February 31.
func makeDate(year, month, day string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, false
	}
	if y < 1990 || y > time.Now().Year()+1 || m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(m) {
		return time.Time{}, false
	}
	return t, true
}
