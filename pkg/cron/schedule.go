package cron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleKind represents the type of schedule
type ScheduleKind string

const (
	ScheduleKindEvery  ScheduleKind = "every"
	ScheduleKindDaily  ScheduleKind = "daily"
	ScheduleKindWeekly ScheduleKind = "weekly"
)

// Schedule is a structured recurrence. It satisfies cron.Schedule from
// robfig/cron, so any robfig schedule can be registered alongside it.
type Schedule struct {
	Kind ScheduleKind

	// For "every"
	Every time.Duration

	// For "daily" and "weekly", wall-clock time of day in Location
	Hour   int
	Minute int

	// For "weekly"
	Weekday time.Weekday

	// Location defaults to the location of the time passed to Next.
	Location *time.Location
}

var _ cron.Schedule = Schedule{}

// Every runs at a fixed interval.
func Every(d time.Duration) Schedule {
	return Schedule{Kind: ScheduleKindEvery, Every: d}
}

// Daily runs once a day at hour:minute.
func Daily(hour, minute int) Schedule {
	return Schedule{Kind: ScheduleKindDaily, Hour: hour, Minute: minute}
}

// Weekly runs once a week on day at hour:minute.
func Weekly(day time.Weekday, hour, minute int) Schedule {
	return Schedule{Kind: ScheduleKindWeekly, Weekday: day, Hour: hour, Minute: minute}
}

// In returns a copy of s evaluated in loc.
func (s Schedule) In(loc *time.Location) Schedule {
	s.Location = loc
	return s
}

// Validate checks the fields required by the schedule kind.
func (s Schedule) Validate() error {
	switch s.Kind {
	case ScheduleKindEvery:
		if s.Every < time.Second {
			return fmt.Errorf("'every' schedule requires an interval of at least 1s, got %s", s.Every)
		}
		return nil
	case ScheduleKindDaily, ScheduleKindWeekly:
		if s.Hour < 0 || s.Hour > 23 {
			return fmt.Errorf("hour must be in [0,23], got %d", s.Hour)
		}
		if s.Minute < 0 || s.Minute > 59 {
			return fmt.Errorf("minute must be in [0,59], got %d", s.Minute)
		}
		if s.Kind == ScheduleKindWeekly && (s.Weekday < time.Sunday || s.Weekday > time.Saturday) {
			return fmt.Errorf("invalid weekday %d", s.Weekday)
		}
		return nil
	default:
		return fmt.Errorf("unknown schedule kind: %q", s.Kind)
	}
}

// Next returns the first activation strictly after t. Invalid schedules
// return the zero time, which robfig/cron also uses for "never".
func (s Schedule) Next(t time.Time) time.Time {
	if s.Validate() != nil {
		return time.Time{}
	}
	if s.Kind == ScheduleKindEvery {
		return cron.Every(s.Every).Next(t)
	}

	loc := s.Location
	if loc == nil {
		loc = t.Location()
	}
	local := t.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.Hour, s.Minute, 0, 0, loc)

	if s.Kind == ScheduleKindWeekly {
		days := (int(s.Weekday) - int(next.Weekday()) + 7) % 7
		next = next.AddDate(0, 0, days)
		if !next.After(local) {
			next = next.AddDate(0, 0, 7)
		}
		return next
	}

	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// String renders the schedule for logs and the CLI.
func (s Schedule) String() string {
	switch s.Kind {
	case ScheduleKindEvery:
		return "every " + s.Every.String()
	case ScheduleKindDaily:
		return fmt.Sprintf("daily at %02d:%02d", s.Hour, s.Minute)
	case ScheduleKindWeekly:
		return fmt.Sprintf("weekly on %s at %02d:%02d", s.Weekday, s.Hour, s.Minute)
	default:
		return string(s.Kind)
	}
}
