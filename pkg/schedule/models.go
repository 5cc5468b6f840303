package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule runs one hardware command on a cron expression
type Schedule struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CronExpr    string     `json:"cron_expr"`
	Command     string     `json:"command"`
	Arg         string     `json:"arg"`
	Enabled     bool       `json:"enabled"`
	LastRunID   *int64     `json:"last_run_id"`
	LastRunTime *time.Time `json:"last_run_time"`
	NextRunTime *time.Time `json:"next_run_time"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ScheduleFilter represents filters for querying schedules
type ScheduleFilter struct {
	Command string
	Enabled *bool
	Limit   int
	Offset  int
}

// parser accepts standard five field expressions and descriptors such as @daily
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron validates expr and returns its schedule
func ParseCron(expr string) (cron.Schedule, error) {
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return s, nil
}

// NextAfter returns the first activation of expr after t
func NextAfter(expr string, t time.Time) (time.Time, error) {
	s, err := ParseCron(expr)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(t), nil
}

// timeNow is replaced in tests
var timeNow = time.Now

// IsOverdue returns true if the schedule is overdue for execution
func (s *Schedule) IsOverdue() bool {
	if !s.Enabled || s.NextRunTime == nil {
		return false
	}
	return timeNow().After(*s.NextRunTime)
}

// CommandLine renders the command the schedule runs
func (s *Schedule) CommandLine() string {
	if s.Arg == "" {
		return s.Command
	}
	return s.Command + " " + s.Arg
}
