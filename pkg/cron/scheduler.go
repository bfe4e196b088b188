package cron

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/harun/questkeep/internal/observability"
	"github.com/harun/questkeep/internal/tracing"
)

// DefaultTick is how often the scheduler checks for due jobs.
const DefaultTick = time.Minute

const tracerName = "questkeep.cron"

var (
	// ErrJobPanicked wraps a panic recovered from a job.
	ErrJobPanicked = errors.New("job panicked")
	// ErrUnknownJob is returned by RunNow for unregistered names.
	ErrUnknownJob = errors.New("unknown job")
	// ErrStopTimeout is returned when the loop does not exit in time.
	ErrStopTimeout = errors.New("scheduler did not stop in time")
)

type entry struct {
	name     string
	schedule cron.Schedule
	fn       JobFunc
	state    JobState
}

// Scheduler runs registered jobs from a single background worker. Due jobs
// run one after another; a failing or panicking job is recorded and the
// loop carries on.
type Scheduler struct {
	options Options

	mu      sync.Mutex
	entries []*entry
	byName  map[string]*entry

	// runMu serialises job execution between the loop and RunNow.
	runMu sync.Mutex

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a scheduler. Jobs are added with Add before or after Start.
func New(opts Options) *Scheduler {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		options: opts,
		byName:  make(map[string]*entry),
	}
}

// Add registers fn under name.
func (s *Scheduler) Add(name string, schedule cron.Schedule, fn JobFunc) error {
	if name == "" {
		return fmt.Errorf("job name is required")
	}
	if schedule == nil || fn == nil {
		return fmt.Errorf("job %s: schedule and function are required", name)
	}
	if v, ok := schedule.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("job %s: %w", name, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}
	e := &entry{name: name, schedule: schedule, fn: fn}
	e.state.NextRunAt = schedule.Next(s.options.Now())
	s.entries = append(s.entries, e)
	s.byName[name] = e

	log.Debug().
		Str("job", name).
		Time("next_run", e.state.NextRunAt).
		Msg("Job registered")
	return nil
}

// Start launches the worker. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		log.Debug().Msg("Scheduler already running")
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	go s.run(loopCtx, s.done)

	log.Info().
		Dur("tick", s.options.Tick).
		Int("jobs", len(s.entries)).
		Msg("Scheduler started")
	return nil
}

// Stop signals the worker and waits up to timeout for the job in progress
// to return. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	cancel()

	select {
	case <-done:
		log.Info().Msg("Scheduler stopped")
		return nil
	case <-time.After(timeout):
		log.Warn().Dur("timeout", timeout).Msg("Scheduler stop timed out")
		return ErrStopTimeout
	}
}

// Running reports whether the worker is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.options.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunDue(ctx)
		}
	}
}

// RunDue runs every job whose next run time has passed and returns how many
// ran. The worker calls it on each tick.
func (s *Scheduler) RunDue(ctx context.Context) int {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	now := s.options.Now()
	s.mu.Lock()
	due := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		if !e.state.NextRunAt.IsZero() && !e.state.NextRunAt.After(now) {
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	ran := 0
	for _, e := range due {
		if ctx.Err() != nil {
			break
		}
		_ = s.execute(ctx, e)
		ran++
	}
	return ran
}

// RunNow runs the named job immediately and returns its error. The regular
// schedule is recomputed afterwards.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.byName[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.execute(ctx, e)
}

func (s *Scheduler) execute(ctx context.Context, e *entry) error {
	ctx = tracing.NewJobContext(ctx, e.name)
	ctx, span := tracing.StartSpan(ctx, tracerName, "cron."+e.name)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	start := s.options.Now()
	s.mu.Lock()
	e.state.Running = true
	s.mu.Unlock()

	logger.Debug().Msg("Executing job")
	began := time.Now()
	err := invoke(ctx, e.fn)
	elapsed := time.Since(began)

	s.mu.Lock()
	e.state.Running = false
	e.state.Runs++
	e.state.LastRunAt = start
	e.state.LastDuration = elapsed
	if err != nil {
		e.state.LastStatus = StatusError
		e.state.LastError = err.Error()
		e.state.ConsecutiveErrors++
	} else {
		e.state.LastStatus = StatusOK
		e.state.LastError = ""
		e.state.ConsecutiveErrors = 0
	}
	e.state.NextRunAt = e.schedule.Next(s.options.Now())
	evt := Event{
		Job:       e.name,
		Status:    e.state.LastStatus,
		Error:     e.state.LastError,
		Duration:  elapsed,
		NextRunAt: e.state.NextRunAt,
	}
	consecutive := e.state.ConsecutiveErrors
	s.mu.Unlock()

	if err != nil {
		tracing.FailSpan(span, err)
		logger.Error().
			Err(err).
			Int("consecutive_errors", consecutive).
			Msg("Job execution failed")
	} else {
		logger.Info().
			Dur("duration", elapsed).
			Time("next_run", evt.NextRunAt).
			Msg("Job execution completed")
	}

	observability.RecordJobRun(e.name, elapsed, err == nil)
	if s.options.OnEvent != nil {
		s.options.OnEvent(evt)
	}
	return err
}

func invoke(ctx context.Context, fn JobFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return fn(ctx)
}

// Jobs returns a snapshot of all jobs, sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, JobInfo{Name: e.name, State: e.state})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NextRuns maps each job to its next scheduled run.
func (s *Scheduler) NextRuns() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]time.Time, len(s.entries))
	for _, e := range s.entries {
		out[e.name] = e.state.NextRunAt
	}
	return out
}
