package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule signals a malformed cron expression: wrong field
// count, bad syntax, or out-of-range values.
var ErrInvalidSchedule = errors.New("invalid schedule")

// cronParser accepts exactly the five standard fields: minute (0-59),
// hour (0-23), day-of-month (1-31), month (1-12), day-of-week (0-6).
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// CronSchedule is a parsed five-field cron expression. It is immutable
// once parsed and performs no I/O.
type CronSchedule struct {
	spec     string
	schedule cron.Schedule
}

// ParseSchedule parses a five-field cron expression supporting `*`,
// ranges, lists, and step values in each field.
func ParseSchedule(spec string) (*CronSchedule, error) {
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, spec, err)
	}

	return &CronSchedule{spec: spec, schedule: schedule}, nil
}

// Spec returns the original expression.
func (s *CronSchedule) Spec() string {
	return s.spec
}

// Next returns the earliest instant strictly after t that satisfies every
// field of the schedule.
//
// When both day-of-month and day-of-week are restricted, the schedule
// fires when either field matches (the standard cron OR convention):
// "0 0 13 * 5" runs on the 13th of each month and on every Friday.
func (s *CronSchedule) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}
