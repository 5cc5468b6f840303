package schedule

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mscrnt/thermalctl/pkg/db"
	"github.com/mscrnt/thermalctl/pkg/hardware"
)

// Store handles schedule persistence
type Store struct {
	db *db.DB
}

// NewStore creates a new schedule store
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

const scheduleColumns = `id, name, description, cron_expr, command, arg, enabled,
	last_run_id, last_run_time, next_run_time, created_at, updated_at`

func scanSchedule(row interface{ Scan(...interface{}) error }) (*Schedule, error) {
	schedule := &Schedule{}
	err := row.Scan(
		&schedule.ID, &schedule.Name, &schedule.Description,
		&schedule.CronExpr, &schedule.Command, &schedule.Arg,
		&schedule.Enabled, &schedule.LastRunID, &schedule.LastRunTime,
		&schedule.NextRunTime, &schedule.CreatedAt, &schedule.UpdatedAt,
	)
	return schedule, err
}

func validate(schedule *Schedule) (time.Time, error) {
	if schedule.Name == "" {
		return time.Time{}, fmt.Errorf("schedule name cannot be empty")
	}
	if err := hardware.ValidateCommand(schedule.Command, schedule.Arg); err != nil {
		return time.Time{}, err
	}
	return NextAfter(schedule.CronExpr, time.Now())
}

// Create validates and stores a new schedule
func (s *Store) Create(schedule *Schedule) error {
	nextRun, err := validate(schedule)
	if err != nil {
		return err
	}

	now := time.Now()
	schedule.NextRunTime = &nextRun
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	result, err := s.db.Conn().Exec(
		`INSERT INTO schedules (name, description, cron_expr, command, arg, enabled, next_run_time, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		schedule.Name, schedule.Description, schedule.CronExpr, schedule.Command,
		schedule.Arg, schedule.Enabled, schedule.NextRunTime,
		schedule.CreatedAt, schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	schedule.ID = id
	return nil
}

// Get retrieves a schedule by ID
func (s *Store) Get(id int64) (*Schedule, error) {
	schedule, err := scanSchedule(s.db.Conn().QueryRow(
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schedule %d: %w", id, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return schedule, nil
}

// GetByName retrieves a schedule by name
func (s *Store) GetByName(name string) (*Schedule, error) {
	schedule, err := scanSchedule(s.db.Conn().QueryRow(
		`SELECT `+scheduleColumns+` FROM schedules WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schedule %q: %w", name, db.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return schedule, nil
}

// List retrieves schedules based on filters, ordered by name
func (s *Store) List(filter ScheduleFilter) ([]*Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE 1=1`
	args := []interface{}{}

	if filter.Command != "" {
		query += " AND command = ?"
		args = append(args, filter.Command)
	}

	if filter.Enabled != nil {
		query += " AND enabled = ?"
		args = append(args, *filter.Enabled)
	}

	query += " ORDER BY name"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	return s.query(query, args...)
}

func (s *Store) query(query string, args ...interface{}) ([]*Schedule, error) {
	rows, err := s.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var schedules []*Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, schedule)
	}

	return schedules, rows.Err()
}

// Update validates and stores changes to a schedule
func (s *Store) Update(schedule *Schedule) error {
	nextRun, err := validate(schedule)
	if err != nil {
		return err
	}

	schedule.NextRunTime = &nextRun
	schedule.UpdatedAt = time.Now()

	_, err = s.db.Conn().Exec(
		`UPDATE schedules SET name = ?, description = ?, cron_expr = ?, command = ?,
		 arg = ?, enabled = ?, next_run_time = ?, updated_at = ?
		 WHERE id = ?`,
		schedule.Name, schedule.Description, schedule.CronExpr, schedule.Command,
		schedule.Arg, schedule.Enabled, schedule.NextRunTime, schedule.UpdatedAt,
		schedule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	return nil
}

// UpdateLastRun records a run and moves the next run time forward
func (s *Store) UpdateLastRun(scheduleID int64, runID int64) error {
	schedule, err := s.Get(scheduleID)
	if err != nil {
		return err
	}

	now := time.Now()
	nextRun, err := NextAfter(schedule.CronExpr, now)
	if err != nil {
		return err
	}

	_, err = s.db.Conn().Exec(
		`UPDATE schedules SET last_run_id = ?, last_run_time = ?, next_run_time = ?
		 WHERE id = ?`,
		runID, now, nextRun, scheduleID,
	)
	if err != nil {
		return fmt.Errorf("failed to update last run: %w", err)
	}
	return nil
}

// Enable enables a schedule and recomputes its next run
func (s *Store) Enable(id int64) error {
	schedule, err := s.Get(id)
	if err != nil {
		return err
	}

	nextRun, err := NextAfter(schedule.CronExpr, time.Now())
	if err != nil {
		return err
	}

	_, err = s.db.Conn().Exec(
		`UPDATE schedules SET enabled = 1, next_run_time = ? WHERE id = ?`,
		nextRun, id,
	)
	if err != nil {
		return fmt.Errorf("failed to enable schedule: %w", err)
	}
	return nil
}

// Disable disables a schedule
func (s *Store) Disable(id int64) error {
	_, err := s.db.Conn().Exec(`UPDATE schedules SET enabled = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to disable schedule: %w", err)
	}
	return nil
}

// Delete deletes a schedule
func (s *Store) Delete(id int64) error {
	res, err := s.db.Conn().Exec(`DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("schedule %d: %w", id, db.ErrNotFound)
	}
	return nil
}

// GetDue returns enabled schedules whose next run time has passed
func (s *Store) GetDue(now time.Time) ([]*Schedule, error) {
	schedules, err := s.query(
		`SELECT ` + scheduleColumns + ` FROM schedules
		 WHERE enabled = 1 ORDER BY next_run_time`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get due schedules: %w", err)
	}

	var due []*Schedule
	for _, schedule := range schedules {
		if schedule.NextRunTime == nil || !schedule.NextRunTime.After(now) {
			due = append(due, schedule)
		}
	}
	return due, nil
}
