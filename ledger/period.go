package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// WEEK PERIOD - Monday-start working week
// =============================================================================

// WeekPeriod is the Monday..Friday span a period close archives.
// Both bounds are UTC midnights.
type WeekPeriod struct {
	Start time.Time // Monday
	End   time.Time // Friday
}

// WeekOf returns the working week containing the given date using the
// Monday-start convention: start = most recent Monday <= date,
// end = start + 4 days. The close job uses this regardless of which
// day it actually runs, so a close fired on Saturday still labels the
// week that just ended.
func WeekOf(date time.Time) WeekPeriod {
	d := DateOf(date)
	// time.Weekday has Sunday = 0; shift so Monday = 0.
	offset := (int(d.Weekday()) + 6) % 7
	start := d.AddDate(0, 0, -offset)
	return WeekPeriod{Start: start, End: start.AddDate(0, 0, 4)}
}

// Label renders the human-readable period label, e.g.
// "2024-03-04 a 2024-03-08".
func (p WeekPeriod) Label() string {
	return fmt.Sprintf("%s a %s", p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"))
}

// Contains reports whether the date falls within [Start, End].
func (p WeekPeriod) Contains(t time.Time) bool {
	d := DateOf(t)
	return !d.Before(p.Start) && !d.After(p.End)
}

func (p WeekPeriod) String() string { return p.Label() }
