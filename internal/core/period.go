package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// MonthKey returns YYYY-MM.
func MonthKey(t time.Time) string { return t.Format("2006-01") }

// QuarterOf maps a month (1-12) to T1..T4.
func QuarterOf(month int) string {
	return fmt.Sprintf("T%d", (month-1)/3+1)
}

// PeriodKeys returns the month key, year and quarter stored alongside a record.
func PeriodKeys(t time.Time) (month, year, quarter string) {
	return MonthKey(t), strconv.Itoa(t.Year()), QuarterOf(int(t.Month()))
}

// MonthFromKey extracts the month number of a YYYY-MM key.
func MonthFromKey(key string) (int, bool) {
	t, err := time.Parse("2006-01", strings.TrimSpace(key))
	if err != nil {
		return 0, false
	}
	return int(t.Month()), true
}
