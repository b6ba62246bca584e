// Package cronexpr wraps robfig/cron/v3's standard 5-field parser behind
// the single cron_next(expr, t) operation spec.md §4.3 describes, so the
// Job Store (validating new ScheduledJob definitions) and the Cron
// Scheduler (advancing next_run_at on each fire) share one implementation.
package cronexpr

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Validate reports whether expr parses as a standard 5-field cron
// expression.
func Validate(expr string) error {
	_, err := parser.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Next returns the smallest instant strictly after t matching expr.
func Next(expr string, after time.Time) (time.Time, error) {
	schedule, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule.Next(after), nil
}
