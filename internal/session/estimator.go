// Package session estimates how much of a split trading day has elapsed.
package session

import (
	"fmt"
	"time"
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

func (c Clock) offset() time.Duration {
	return time.Duration(c.Hour)*time.Hour + time.Duration(c.Minute)*time.Minute
}

// UnmarshalText lets Clock be read from YAML/env as "HH:MM".
func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Estimator maps a timestamp to the elapsed fraction of a trading day made of
// a morning and an afternoon session separated by a lunch break.
// Both session boundaries are inclusive.
type Estimator struct {
	MorningOpen    Clock
	MorningClose   Clock
	AfternoonOpen  Clock
	AfternoonClose Clock
	Location       *time.Location
}

// China is the exchange time zone of the default sessions (UTC+8, no DST).
var China = time.FixedZone("CST", 8*60*60)

// Default is the 09:30-11:30 / 13:00-15:00 session in UTC+8.
func Default() Estimator {
	return Estimator{
		MorningOpen:    Clock{9, 30},
		MorningClose:   Clock{11, 30},
		AfternoonOpen:  Clock{13, 0},
		AfternoonClose: Clock{15, 0},
		Location:       China,
	}
}

// Validate checks the boundaries are strictly increasing.
func (e Estimator) Validate() error {
	b := []Clock{e.MorningOpen, e.MorningClose, e.AfternoonOpen, e.AfternoonClose}
	for i := 1; i < len(b); i++ {
		if b[i].offset() <= b[i-1].offset() {
			return fmt.Errorf("session boundaries not increasing: %s then %s", b[i-1], b[i])
		}
	}
	return nil
}

// Ratio returns the elapsed fraction of the trading day at now, in [0, 1].
// Before the morning open it is 0, which callers must read as "no estimate yet".
func (e Estimator) Ratio(now time.Time) float64 {
	if e.Location != nil {
		now = now.In(e.Location)
	}
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	elapsed := now.Sub(midnight)

	mo, mc := e.MorningOpen.offset(), e.MorningClose.offset()
	ao, ac := e.AfternoonOpen.offset(), e.AfternoonClose.offset()
	morning := mc - mo
	total := float64(morning + (ac - ao))

	switch {
	case elapsed < mo:
		return 0
	case elapsed <= mc:
		return float64(elapsed-mo) / total
	case elapsed < ao:
		return float64(morning) / total
	case elapsed <= ac:
		return float64(morning+elapsed-ao) / total
	default:
		return 1
	}
}
