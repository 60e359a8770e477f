package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Recurrence is the cadence at which a notification conceptually repeats.
// The interval is always one unit; actual re-firing is performed by an
// external scheduler, this engine only records the policy and computes
// next-occurrence bookkeeping.
type Recurrence string

const (
	RecurrenceOnce    Recurrence = "once"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

func ParseRecurrence(s string) (Recurrence, error) {
	switch r := Recurrence(strings.ToLower(strings.TrimSpace(s))); r {
	case RecurrenceOnce, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return r, nil
	default:
		return "", fmt.Errorf("unknown recurrence %q", s)
	}
}

func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceOnce, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	default:
		return false
	}
}

// standard 5-field cron, same fields the scheduler side speaks
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// cronSpec derives the cron expression that repeats base at its own
// minute/hour (and weekday/day-of-month for weekly/monthly).
func (r Recurrence) cronSpec(base time.Time) (string, bool) {
	switch r {
	case RecurrenceDaily:
		return fmt.Sprintf("%d %d * * *", base.Minute(), base.Hour()), true
	case RecurrenceWeekly:
		return fmt.Sprintf("%d %d * * %d", base.Minute(), base.Hour(), int(base.Weekday())), true
	case RecurrenceMonthly:
		return fmt.Sprintf("%d %d %d * *", base.Minute(), base.Hour(), base.Day()), true
	default:
		return "", false
	}
}

// Next computes the first eligible occurrence strictly after `after`,
// given the original scheduled time `base`.
//
// Rules:
//   - If after is before base, the first occurrence is base itself.
//   - Once never re-fires: there is no occurrence after base.
//   - Daily/Weekly preserve base's time of day (minute granularity).
//   - Monthly follows cron day-of-month semantics: a base on the 31st
//     only fires in months that have a 31st.
//
// The boolean is false when no further occurrence exists.
func (r Recurrence) Next(base, after time.Time) (time.Time, bool) {
	if base.IsZero() {
		return time.Time{}, false
	}
	base = base.Truncate(time.Minute)
	if after.Before(base) {
		return base, true
	}
	spec, ok := r.cronSpec(base)
	if !ok {
		// Once: base already elapsed.
		return time.Time{}, false
	}
	sched, err := cronParser.Parse(spec)
	if err != nil {
		// specs are generated from a valid time; this cannot happen
		return time.Time{}, false
	}
	return sched.Next(after), true
}
