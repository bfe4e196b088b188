package cron

import (
	"context"
	"time"
)

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

// Job status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// JobState tracks runtime state of a job
type JobState struct {
	NextRunAt         time.Time     `json:"nextRunAt"`
	LastRunAt         time.Time     `json:"lastRunAt,omitempty"`
	LastStatus        string        `json:"lastStatus,omitempty"`
	LastError         string        `json:"lastError,omitempty"`
	LastDuration      time.Duration `json:"lastDuration,omitempty"`
	ConsecutiveErrors int           `json:"consecutiveErrors,omitempty"`
	Runs              int           `json:"runs"`
	Running           bool          `json:"running,omitempty"`
}

// JobInfo is a snapshot of one registered job.
type JobInfo struct {
	Name  string   `json:"name"`
	State JobState `json:"state"`
}

// Event is emitted after every job run.
type Event struct {
	Job       string        `json:"job"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	NextRunAt time.Time     `json:"nextRunAt"`
}

// Options configures a Scheduler
type Options struct {
	// Tick is how often due jobs are checked. Defaults to one minute.
	Tick time.Duration
	// Now overrides the clock used to decide which jobs are due.
	Now func() time.Time
	// OnEvent, when set, is called after every job run.
	OnEvent func(evt Event)
}
