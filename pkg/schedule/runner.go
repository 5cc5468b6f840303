// Package schedule runs hardware commands on cron expressions, e.g. switching
// to the silent fan profile every night.
package schedule

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/mscrnt/thermalctl/pkg/db"
	"github.com/mscrnt/thermalctl/pkg/hardware"
	"github.com/mscrnt/thermalctl/pkg/logger"
)

// Executor runs a named hardware command
type Executor interface {
	Execute(name, arg string) hardware.CommandResult
}

// Runner manages scheduled command executions
type Runner struct {
	cron     *cron.Cron
	store    *Store
	database *db.DB
	exec     Executor
	jobs     map[int64]cron.EntryID
	mu       sync.RWMutex
	logger   *logger.Logger
}

// NewRunner creates a new schedule runner
func NewRunner(database *db.DB, exec Executor, log *logger.Logger) *Runner {
	log = logger.OrDefault(log).With("schedule")

	return &Runner{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(cron.PrintfLogger(log.Std()))),
		),
		store:    NewStore(database),
		database: database,
		exec:     exec,
		jobs:     make(map[int64]cron.EntryID),
		logger:   log,
	}
}

// Store returns the schedule store backing the runner
func (r *Runner) Store() *Store {
	return r.store
}

// Start registers every enabled schedule and starts the scheduler
func (r *Runner) Start() error {
	enabled := true
	schedules, err := r.store.List(ScheduleFilter{Enabled: &enabled})
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}

	for _, schedule := range schedules {
		if err := r.registerSchedule(schedule); err != nil {
			r.logger.Warnf("failed to register schedule %s: %v", schedule.Name, err)
		}
	}

	r.cron.Start()

	r.mu.RLock()
	r.logger.Infof("scheduler started with %d active schedules", len(r.jobs))
	r.mu.RUnlock()
	return nil
}

// Stop stops the scheduler and waits for running commands to finish
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Infof("scheduler stopped")
}

// RegisterSchedule adds a stored schedule to the runner
func (r *Runner) RegisterSchedule(scheduleID int64) error {
	schedule, err := r.store.Get(scheduleID)
	if err != nil {
		return err
	}
	return r.registerSchedule(schedule)
}

// UnregisterSchedule removes a schedule from the runner
func (r *Runner) UnregisterSchedule(scheduleID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entryID, exists := r.jobs[scheduleID]; exists {
		r.cron.Remove(entryID)
		delete(r.jobs, scheduleID)
		r.logger.Debugf("unregistered schedule %d", scheduleID)
	}
}

// RefreshSchedule re-reads a schedule and re-registers it if still enabled
func (r *Runner) RefreshSchedule(scheduleID int64) error {
	r.UnregisterSchedule(scheduleID)

	schedule, err := r.store.Get(scheduleID)
	if err != nil {
		return err
	}
	return r.registerSchedule(schedule)
}

func (r *Runner) registerSchedule(schedule *Schedule) error {
	if !schedule.Enabled {
		return nil
	}

	s := *schedule
	entryID, err := r.cron.AddFunc(s.CronExpr, func() {
		if _, err := r.Execute(&s); err != nil {
			r.logger.Errorf("schedule %s: %v", s.Name, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	r.mu.Lock()
	if old, exists := r.jobs[s.ID]; exists {
		r.cron.Remove(old)
	}
	r.jobs[s.ID] = entryID
	r.mu.Unlock()

	r.logger.Infof("registered schedule %q (%s) at %q", s.Name, s.CommandLine(), s.CronExpr)
	return nil
}

// Execute runs a schedule's command now and records it in the history
func (r *Runner) Execute(schedule *Schedule) (hardware.CommandResult, error) {
	run, err := r.database.CreateRun(schedule.Command, schedule.Arg, db.SourceSchedule)
	if err != nil {
		return hardware.CommandResult{}, fmt.Errorf("failed to create run record: %w", err)
	}

	result := r.exec.Execute(schedule.Command, schedule.Arg)
	run.Success = result.OK
	run.Message = result.Message
	run.Details = db.JSONData{"schedule": schedule.Name}
	if err := r.database.FinishRun(run); err != nil {
		r.logger.Warnf("failed to update run record: %v", err)
	}

	if err := r.store.UpdateLastRun(schedule.ID, run.ID); err != nil {
		r.logger.Warnf("failed to update schedule last run: %v", err)
	}

	if result.OK {
		r.logger.Infof("schedule %s: %s", schedule.Name, result)
	} else {
		r.logger.Warnf("schedule %s: %s", schedule.Name, result)
	}
	return result, nil
}

// CheckDue runs every enabled schedule whose next run time has passed, e.g. after resume from sleep
func (r *Runner) CheckDue() error {
	schedules, err := r.store.GetDue(timeNow())
	if err != nil {
		return err
	}

	for _, schedule := range schedules {
		r.logger.Infof("running overdue schedule %s", schedule.Name)
		if _, err := r.Execute(schedule); err != nil {
			r.logger.Errorf("overdue schedule %s: %v", schedule.Name, err)
		}
	}
	return nil
}

// ActiveJobs returns the number of registered cron entries
func (r *Runner) ActiveJobs() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// ListJobs returns information about all scheduled jobs
func (r *Runner) ListJobs() []cron.Entry {
	return r.cron.Entries()
}
