package model

import (
	"fmt"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// DayIndex returns the number of days between 1970-01-01 and the calendar date of t
// (in t's own location). Inverse of Date.
func DayIndex(t time.Time) int32 {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int32(midnight.Unix() / secondsPerDay)
}

// Date returns the UTC midnight of day index dt.
func Date(dt int32) time.Time {
	return time.Unix(int64(dt)*secondsPerDay, 0).UTC()
}

// DayIndexFromYMD converts a packed YYYYMMDD integer (e.g. 20241206) to a day index.
func DayIndexFromYMD(v int) (int32, error) {
	year, month, day := v/10000, (v%10000)/100, v%100
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return 0, fmt.Errorf("invalid yyyymmdd date %d", v)
	}
	return DayIndex(t), nil
}

// FormatDay renders a day index as 2006-01-02 for logs.
func FormatDay(dt int32) string {
	return Date(dt).Format("2006-01-02")
}
