package attendance_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"attendance-monitor/internal/attendance"
	"attendance-monitor/internal/cache"
	"attendance-monitor/internal/clock"
	"attendance-monitor/internal/core"
	"attendance-monitor/internal/database/dbtest"
	"attendance-monitor/internal/models"
)

var monday = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db    *gorm.DB
	clock *clock.Fake
	kv    *cache.Memory
	svc   *attendance.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := dbtest.New(t)
	fake := clock.NewFake(monday)
	kv := cache.NewMemory(fake.Now)
	svc := attendance.NewService(attendance.Config{
		DB:       db,
		Clock:    fake,
		Cache:    kv,
		StatsTTL: 30 * time.Second,
	})

	require.NoError(t, db.Create(&models.Employee{
		CompanyName: "Acme", EmployeeID: "E1", FullName: "Alice", Department: "Sales", IsActive: true,
	}).Error)
	require.NoError(t, db.Create(&models.Employee{
		CompanyName: "Acme", EmployeeID: "E2", FullName: "Bob", Department: "Ops", IsActive: true,
	}).Error)
	return fixture{db: db, clock: fake, kv: kv, svc: svc}
}

func (f fixture) punchIn(t *testing.T, employeeID string) *models.PunchLog {
	t.Helper()
	punch, err := f.svc.PunchIn(context.Background(), attendance.PunchInRequest{
		CompanyName: "Acme", EmployeeID: employeeID, SystemName: "PC-" + employeeID,
	})
	require.NoError(t, err)
	return punch
}

func TestPunchInOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := f.punchIn(t, "E1")
	assert.Nil(t, in.PunchOutTime)

	_, err := f.svc.PunchIn(ctx, attendance.PunchInRequest{CompanyName: "Acme", EmployeeID: "E1"})
	assert.ErrorIs(t, err, attendance.ErrAlreadyPunchedIn)
	assert.True(t, core.IsValidation(err))

	f.clock.Advance(2*time.Hour + 30*time.Minute)
	out, err := f.svc.PunchOut(ctx, "Acme", "E1", 900)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, 9000, out.TotalWorkDurationSeconds)
	assert.Equal(t, 900, out.BreakDurationSeconds)

	_, err = f.svc.PunchOut(ctx, "Acme", "E1", 0)
	assert.True(t, core.IsNotFound(err))
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.punchIn(t, "E1")
	f.clock.Advance(time.Minute)
	f.punchIn(t, "E2")
	f.clock.Set(monday.AddDate(0, 0, 1))
	_, err := f.svc.PunchOut(ctx, "Acme", "E1", 0)
	require.NoError(t, err)
	f.punchIn(t, "E1")

	tests := []struct {
		name   string
		filter attendance.Filter
		want   int
	}{
		{"all", attendance.Filter{CompanyName: "Acme"}, 3},
		{"single day", attendance.Filter{CompanyName: "Acme", StartDate: "2026-03-02", EndDate: "2026-03-02"}, 2},
		{"from tuesday", attendance.Filter{CompanyName: "Acme", StartDate: "2026-03-03"}, 1},
		{"employee", attendance.Filter{CompanyName: "Acme", EmployeeID: "E1"}, 2},
		{"department", attendance.Filter{CompanyName: "Acme", Department: "Ops"}, 1},
		{"other company", attendance.Filter{CompanyName: "Other"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := f.svc.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, rows, tt.want)
		})
	}

	rows, err := f.svc.List(ctx, attendance.Filter{CompanyName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", rows[0].DisplayName)
	assert.Equal(t, "Sales", rows[0].Department)
	assert.True(t, rows[0].PunchInTime.After(rows[1].PunchInTime))

	_, err = f.svc.List(ctx, attendance.Filter{CompanyName: "Acme", StartDate: "02/03/2026"})
	assert.EqualError(t, err, "start_date must be YYYY-MM-DD")
}

func TestTodayAndActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.punchIn(t, "E1")
	f.clock.Set(monday.AddDate(0, 0, 1))
	f.punchIn(t, "E2")

	today, err := f.svc.Today(ctx, "Acme")
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.Equal(t, "E2", today[0].Username)

	activity, err := f.svc.Activity(ctx, "Acme", 1)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, "E2", activity[0].Username)

	employees, err := f.svc.PunchEmployees(ctx, "Acme")
	require.NoError(t, err)
	require.Len(t, employees, 2)
	assert.Equal(t, attendance.PunchEmployee{EmployeeID: "E1", DisplayName: "Alice", Department: "Sales"}, employees[0])
}

func TestDailyWorkHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.punchIn(t, "E1")
	f.clock.Advance(3*time.Hour + 20*time.Minute)
	_, err := f.svc.PunchOut(ctx, "Acme", "E1", 1800)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	f.punchIn(t, "E1")
	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.PunchOut(ctx, "Acme", "E1", 90)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	f.punchIn(t, "E1")

	summary, err := f.svc.DailyWorkHours(ctx, "Acme", "E1", "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.SessionCount)
	assert.Equal(t, 5.33, summary.TotalWorkHours)
	assert.Equal(t, int64(32), summary.TotalBreakMinutes)
	assert.Equal(t, "09:00", summary.FirstPunchIn)
	assert.Equal(t, "15:20", summary.LastPunchOut)

	first := summary.Sessions[0]
	assert.Equal(t, "02/03/2026 09:00", first.PunchInFormatted)
	assert.Equal(t, "02/03/2026 12:20", first.PunchOutFormatted)
	assert.Equal(t, 3.33, first.WorkHours)
	assert.Equal(t, int64(30), first.BreakMinutes)
	assert.Equal(t, "Still working", summary.Sessions[2].PunchOutFormatted)

	empty, err := f.svc.DailyWorkHours(ctx, "Acme", "E1", "2026-03-05")
	require.NoError(t, err)
	assert.Zero(t, empty.SessionCount)
	assert.Equal(t, "N/A", empty.FirstPunchIn)
	assert.Equal(t, "N/A", empty.LastPunchOut)

	_, err = f.svc.DailyWorkHours(ctx, "Acme", "E1", "")
	assert.EqualError(t, err, "date required")
}

func TestDashboardStatsCaching(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.punchIn(t, "E1")
	f.punchIn(t, "E2")
	f.clock.Advance(time.Hour)
	_, err := f.svc.PunchOut(ctx, "Acme", "E2", 0)
	require.NoError(t, err)

	stats, err := f.svc.DashboardStats(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, attendance.DashboardStats{
		TotalEmployees: 2, PresentToday: 2, CurrentlyWorking: 1, CompletedSessions: 1,
	}, *stats)

	// Served from cache: a row inserted behind the service's back is not seen.
	require.NoError(t, f.db.Create(&models.Employee{CompanyName: "Acme", EmployeeID: "E3", FullName: "Cy"}).Error)
	cached, err := f.svc.DashboardStats(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cached.TotalEmployees)

	f.clock.Advance(31 * time.Second)
	fresh, err := f.svc.DashboardStats(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, int64(3), fresh.TotalEmployees)

	// A punch invalidates the cached entry.
	_, err = f.svc.PunchOut(ctx, "Acme", "E1", 0)
	require.NoError(t, err)
	afterPunch, err := f.svc.DashboardStats(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, int64(0), afterPunch.CurrentlyWorking)
	assert.Equal(t, int64(2), afterPunch.CompletedSessions)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.punchIn(t, "E1")
	f.clock.Advance(90 * time.Minute)
	_, err := f.svc.PunchOut(ctx, "Acme", "E1", 120)
	require.NoError(t, err)
	f.punchIn(t, "E2")

	data, err := f.svc.Export(ctx, attendance.Filter{CompanyName: "Acme"})
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows("Attendance")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Employee ID", rows[0][0])
	assert.Equal(t, "E2", rows[1][0])
	assert.Equal(t, "Still working", rows[1][6])
	assert.Equal(t, "Alice", rows[2][1])
	assert.Equal(t, "02/03/2026 10:30", rows[2][6])
	assert.Equal(t, "1.5", rows[2][7])
	assert.Equal(t, "2", rows[2][8])
}
