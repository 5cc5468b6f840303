package schedule

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mscrnt/thermalctl/pkg/db"
	"github.com/mscrnt/thermalctl/pkg/hardware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	mu    sync.Mutex
	calls []string
	ok    bool
}

func (f *fakeExecutor) Execute(name, arg string) hardware.CommandResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name+" "+arg)
	msg := "done"
	if !f.ok {
		msg = "EC write failed"
	}
	return hardware.CommandResult{Command: name, OK: f.ok, Message: msg}
}

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func nightly() *Schedule {
	return &Schedule{
		Name:     "quiet-night",
		CronExpr: "0 23 * * *",
		Command:  hardware.CmdFanProfile,
		Arg:      "silent",
		Enabled:  true,
	}
}

func TestCreateAndGet(t *testing.T) {
	store := NewStore(openTestDB(t))

	s := nightly()
	require.NoError(t, store.Create(s))
	assert.NotZero(t, s.ID)
	require.NotNil(t, s.NextRunTime)
	assert.Equal(t, 23, s.NextRunTime.Hour())

	got, err := store.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "fan-profile silent", got.CommandLine())
	assert.True(t, got.Enabled)
	assert.Nil(t, got.LastRunID)

	byName, err := store.GetByName("quiet-night")
	require.NoError(t, err)
	assert.Equal(t, s.ID, byName.ID)

	_, err = store.Get(42)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestCreateValidation(t *testing.T) {
	store := NewStore(openTestDB(t))

	tests := []struct {
		name string
		mod  func(s *Schedule)
	}{
		{"bad cron", func(s *Schedule) { s.CronExpr = "every night" }},
		{"six fields", func(s *Schedule) { s.CronExpr = "0 0 23 * * *" }},
		{"unknown command", func(s *Schedule) { s.Command = "shutdown" }},
		{"bad argument", func(s *Schedule) { s.Arg = "whisper" }},
		{"no name", func(s *Schedule) { s.Name = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := nightly()
			tt.mod(s)
			assert.Error(t, store.Create(s))
		})
	}

	s := nightly()
	s.CronExpr = "@hourly"
	assert.NoError(t, store.Create(s))

	dup := nightly()
	assert.Error(t, store.Create(dup), "names are unique")
}

func TestListEnableDisableDelete(t *testing.T) {
	store := NewStore(openTestDB(t))

	a := nightly()
	require.NoError(t, store.Create(a))
	b := &Schedule{Name: "boost-morning", CronExpr: "30 7 * * 1-5", Command: hardware.CmdFanBoost, Arg: "on"}
	require.NoError(t, store.Create(b))

	all, err := store.List(ScheduleFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "boost-morning", all[0].Name)

	enabled := true
	on, err := store.List(ScheduleFilter{Enabled: &enabled})
	require.NoError(t, err)
	require.Len(t, on, 1)
	assert.Equal(t, "quiet-night", on[0].Name)

	require.NoError(t, store.Enable(b.ID))
	require.NoError(t, store.Disable(a.ID))
	on, err = store.List(ScheduleFilter{Enabled: &enabled})
	require.NoError(t, err)
	require.Len(t, on, 1)
	assert.Equal(t, "boost-morning", on[0].Name)

	boosts, err := store.List(ScheduleFilter{Command: hardware.CmdFanBoost})
	require.NoError(t, err)
	assert.Len(t, boosts, 1)

	require.NoError(t, store.Delete(a.ID))
	assert.ErrorIs(t, store.Delete(a.ID), db.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	store := NewStore(openTestDB(t))
	s := nightly()
	require.NoError(t, store.Create(s))

	s.Arg = "balanced"
	s.CronExpr = "0 22 * * *"
	require.NoError(t, store.Update(s))

	got, err := store.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "balanced", got.Arg)
	assert.Equal(t, 22, got.NextRunTime.Hour())

	s.CronExpr = "nope"
	assert.Error(t, store.Update(s))
}

func TestRunnerExecuteRecordsHistory(t *testing.T) {
	database := openTestDB(t)
	exec := &fakeExecutor{ok: true}
	r := NewRunner(database, exec, nil)

	s := nightly()
	require.NoError(t, r.Store().Create(s))

	res, err := r.Execute(s)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, []string{"fan-profile silent"}, exec.calls)

	runs, err := database.ListRuns(db.RunFilter{Source: db.SourceSchedule})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Success)
	assert.Equal(t, "quiet-night", runs[0].Details["schedule"])

	got, err := r.Store().Get(s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastRunID)
	assert.Equal(t, runs[0].ID, *got.LastRunID)
	assert.NotNil(t, got.LastRunTime)
}

func TestRunnerStartRegistersEnabled(t *testing.T) {
	database := openTestDB(t)
	r := NewRunner(database, &fakeExecutor{ok: true}, nil)

	require.NoError(t, r.Store().Create(nightly()))
	off := &Schedule{Name: "off", CronExpr: "@daily", Command: hardware.CmdPerfMode, Arg: "cool"}
	require.NoError(t, r.Store().Create(off))

	require.NoError(t, r.Start())
	defer r.Stop()

	assert.Equal(t, 1, r.ActiveJobs())
	assert.Len(t, r.ListJobs(), 1)

	require.NoError(t, r.Store().Enable(off.ID))
	require.NoError(t, r.RefreshSchedule(off.ID))
	assert.Equal(t, 2, r.ActiveJobs())

	r.UnregisterSchedule(off.ID)
	assert.Equal(t, 1, r.ActiveJobs())
}

func TestCheckDue(t *testing.T) {
	database := openTestDB(t)
	exec := &fakeExecutor{ok: false}
	r := NewRunner(database, exec, nil)

	require.NoError(t, r.Store().Create(nightly()))

	require.NoError(t, r.CheckDue())
	assert.Empty(t, exec.calls, "nothing due yet")

	timeNow = func() time.Time { return time.Now().Add(48 * time.Hour) }
	defer func() { timeNow = time.Now }()

	require.NoError(t, r.CheckDue())
	assert.Len(t, exec.calls, 1)

	failed := false
	runs, err := database.ListRuns(db.RunFilter{Success: &failed})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestIsOverdue(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	s := &Schedule{Enabled: true, NextRunTime: &past}
	assert.True(t, s.IsOverdue())

	s.Enabled = false
	assert.False(t, s.IsOverdue())
	assert.False(t, (&Schedule{Enabled: true}).IsOverdue())
}
