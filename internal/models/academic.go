package models

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var academicYearPattern = regexp.MustCompile(`^(\d{4})/(\d{4})$`)

// ValidAcademicYear accepts "2024/2025" style years where the second year
// follows the first.
func ValidAcademicYear(v string) bool {
	m := academicYearPattern.FindStringSubmatch(v)
	if m == nil {
		return false
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	return end == start+1
}

// ValidTerm is true for terms 1 to 3.
func ValidTerm(term int) bool {
	return term >= 1 && term <= 3
}

// AcademicPeriodAt returns the academic year and term covering t. The year
// starts in September; terms run Sep-Dec, Jan-Apr and May-Aug.
func AcademicPeriodAt(t time.Time) (string, int) {
	year := t.Year()
	month := t.Month()
	switch {
	case month >= time.September:
		return fmt.Sprintf("%d/%d", year, year+1), 1
	case month <= time.April:
		return fmt.Sprintf("%d/%d", year-1, year), 2
	default:
		return fmt.Sprintf("%d/%d", year-1, year), 3
	}
}

// TermDates returns the first and last day of a term of an academic year,
// matching the calendar used by AcademicPeriodAt.
func TermDates(academicYear string, term int) (time.Time, time.Time, error) {
	if !ValidAcademicYear(academicYear) || !ValidTerm(term) {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid academic period %s term %d", academicYear, term)
	}
	start, _ := strconv.Atoi(academicYear[:4])
	switch term {
	case 1:
		return time.Date(start, time.September, 1, 0, 0, 0, 0, time.UTC), time.Date(start, time.December, 31, 0, 0, 0, 0, time.UTC), nil
	case 2:
		return time.Date(start+1, time.January, 1, 0, 0, 0, 0, time.UTC), time.Date(start+1, time.April, 30, 0, 0, 0, 0, time.UTC), nil
	default:
		return time.Date(start+1, time.May, 1, 0, 0, 0, 0, time.UTC), time.Date(start+1, time.August, 31, 0, 0, 0, 0, time.UTC), nil
	}
}
