package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Run is one executed hardware command or verification
type Run struct {
	ID        int64      `json:"id"`
	Command   string     `json:"command"`
	Arg       string     `json:"arg,omitempty"`
	Source    string     `json:"source"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Success   bool       `json:"success"`
	Message   string     `json:"message,omitempty"`
	Details   JSONData   `json:"details,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Result is one numeric measurement attached to a run
type Result struct {
	ID        int64     `json:"id"`
	RunID     int64     `json:"run_id"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	CreatedAt time.Time `json:"created_at"`
}

// Sources that issue commands
const (
	SourceCLI      = "cli"
	SourceSchedule = "schedule"
	SourceAgent    = "agent"
	SourceDaemon   = "daemon"
)

// JSONData is a custom type for storing JSON in SQLite
type JSONData map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONData) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface
func (j *JSONData) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan type %T into JSONData", value)
	}

	return json.Unmarshal(data, j)
}

// Duration returns how long the run took
func (r *Run) Duration() time.Duration {
	if r.EndTime == nil {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// RunFilter represents filters for querying runs
type RunFilter struct {
	Command   string
	Source    string
	StartTime *time.Time
	EndTime   *time.Time
	Success   *bool
	Limit     int
	Offset    int
}
