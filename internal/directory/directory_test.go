package directory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance-monitor/internal/clock"
	"attendance-monitor/internal/core"
	"attendance-monitor/internal/database/dbtest"
	"attendance-monitor/internal/directory"
)

func newService(t *testing.T) *directory.Service {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC))
	return directory.NewService(dbtest.New(t), fake, nil)
}

func TestGenerateEmployeeID(t *testing.T) {
	tests := []struct {
		company string
		seq     int
		want    string
	}{
		{"WIZONE IT NETWORK INDIA", 1, "WIN-2026-001"},
		{"acme", 12, "A-2026-012"},
		{"", 3, "EMP-2026-003"},
		{"Über Corp", 1000, "ÜC-2026-1000"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, directory.GenerateEmployeeID(tt.company, 2026, tt.seq))
		})
	}
}

func TestDepartmentCode(t *testing.T) {
	assert.Equal(t, "ENG", directory.DepartmentCode("Engineering"))
	assert.Equal(t, "HR", directory.DepartmentCode("hr"))
	assert.Equal(t, "", directory.DepartmentCode("  "))
}

func TestEmployeeLifecycle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	zed, err := svc.AddEmployee(ctx, directory.EmployeeInput{CompanyName: "Acme Widgets", FullName: "Zed"})
	require.NoError(t, err)
	assert.Equal(t, "AW-2026-001", zed.EmployeeID)
	assert.Equal(t, 60, zed.LunchDuration)
	assert.Equal(t, 10, zed.SignificantIdleThresholdMinutes)
	assert.True(t, zed.IsActive)

	amy, err := svc.AddEmployee(ctx, directory.EmployeeInput{
		CompanyName: "Acme Widgets", EmployeeID: "E7", FullName: "Amy", LunchDuration: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "E7", amy.EmployeeID)
	assert.Equal(t, 30, amy.LunchDuration)

	all, err := svc.ListEmployees(ctx, directory.EmployeeQuery{CompanyName: "Acme Widgets"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Amy", all[0].FullName)
	assert.Equal(t, "Zed", all[1].FullName)

	byEmpID, err := svc.ListEmployees(ctx, directory.EmployeeQuery{CompanyName: "Acme Widgets", EmployeeID: "E7"})
	require.NoError(t, err)
	require.Len(t, byEmpID, 1)
	assert.Equal(t, amy.ID, byEmpID[0].ID)

	inactive := false
	require.NoError(t, svc.UpdateEmployee(ctx, directory.EmployeeInput{
		ID: zed.ID, CompanyName: "Acme Widgets", EmployeeID: zed.EmployeeID, FullName: "Zed Z", IsActive: &inactive,
	}))
	byID, err := svc.ListEmployees(ctx, directory.EmployeeQuery{CompanyName: "Acme Widgets", ID: zed.ID})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "Zed Z", byID[0].FullName)
	assert.False(t, byID[0].IsActive)

	require.NoError(t, svc.DeleteEmployee(ctx, zed.ID, "Acme Widgets"))
	err = svc.DeleteEmployee(ctx, zed.ID, "Acme Widgets")
	assert.True(t, core.IsNotFound(err))
}

func TestEmployeeValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.AddEmployee(ctx, directory.EmployeeInput{CompanyName: "Acme"})
	assert.EqualError(t, err, "full_name required")

	_, err = svc.ListEmployees(ctx, directory.EmployeeQuery{})
	assert.True(t, core.IsValidation(err))

	err = svc.DeleteEmployee(ctx, 0, "Acme")
	assert.True(t, core.IsValidation(err))

	err = svc.UpdateEmployee(ctx, directory.EmployeeInput{ID: 99, CompanyName: "Acme", FullName: "X"})
	assert.True(t, core.IsNotFound(err))
}

func TestDepartmentLifecycle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	sales, err := svc.AddDepartment(ctx, directory.DepartmentInput{CompanyName: "Acme", DepartmentName: "Sales"})
	require.NoError(t, err)
	assert.Equal(t, "SAL", sales.DepartmentCode)

	_, err = svc.AddDepartment(ctx, directory.DepartmentInput{
		CompanyName: "Acme", DepartmentName: "Accounts", DepartmentCode: "FIN",
	})
	require.NoError(t, err)

	list, err := svc.ListDepartments(ctx, "Acme")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Accounts", list[0].DepartmentName)
	assert.Equal(t, "FIN", list[0].DepartmentCode)

	require.NoError(t, svc.UpdateDepartment(ctx, directory.DepartmentInput{
		ID: sales.ID, CompanyName: "Acme", DepartmentName: "Sales EMEA", DepartmentCode: "SEM",
	}))
	list, err = svc.ListDepartments(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, "Sales EMEA", list[1].DepartmentName)

	require.NoError(t, svc.DeleteDepartment(ctx, sales.ID, "Acme"))
	assert.True(t, core.IsNotFound(svc.DeleteDepartment(ctx, sales.ID, "Other")))

	_, err = svc.AddDepartment(ctx, directory.DepartmentInput{CompanyName: "Acme"})
	assert.EqualError(t, err, "department_name required")
}
