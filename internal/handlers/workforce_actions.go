package handlers

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"attendance-monitor/internal/attendance"
	"attendance-monitor/internal/directory"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *MonitorHandler) workforceActions() map[string]action {
	return map[string]action{
		"verify_key":   write(h.verifyKey),
		"validate_key": write(h.verifyKey),
		"login":        write(h.login),
		"admin_login":  write(h.adminLogin),
		"get_users":    read(h.users, emptyList),

		"get_employees":     read(h.employees, emptyList),
		"add_employee":      write(h.addEmployee),
		"update_employee":   write(h.updateEmployee),
		"delete_employee":   write(h.deleteEmployee),
		"get_departments":   read(h.departments, emptyList),
		"add_department":    write(h.addDepartment),
		"update_department": write(h.updateDepartment),
		"delete_department": write(h.deleteDepartment),

		"punch_in":             write(h.punchIn),
		"punch_out":            write(h.punchOut),
		"get_today_attendance": read(h.todayAttendance, emptyList),
		"get_attendance":       read(h.attendanceList, emptyList),
		"get_punch_employees":  read(h.punchEmployees, emptyList),
		"get_activity_logs":    read(h.punchActivity, emptyList),
		"get_daily_work_hours": read(h.dailyWorkHours, &reply{Data: attendance.EmptySummary()}),
		"get_dashboard_stats":  read(h.dashboardStats, &reply{Data: attendance.DashboardStats{}}),
		"export_attendance":    read(h.exportAttendance, nil),
	}
}

func (h *MonitorHandler) verifyKey(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	key, err := h.svc.Auth.VerifyKey(ctx, p.String("activation_key"))
	if err != nil {
		return nil, err
	}
	return &reply{Data: key, Message: "Activation key verified"}, nil
}

func (h *MonitorHandler) login(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	user, err := h.svc.Auth.Login(ctx, p.String("username"), p.String("password"), p.String("role") == "admin")
	if err != nil {
		return nil, err
	}
	return &reply{Data: user, Message: "Login successful"}, nil
}

func (h *MonitorHandler) adminLogin(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	user, err := h.svc.Auth.Login(ctx, p.String("username"), p.String("password"), true)
	if err != nil {
		return nil, err
	}
	return &reply{Data: user, Message: "Login successful"}, nil
}

func (h *MonitorHandler) users(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	users, err := h.svc.Auth.ListUsers(ctx, p.String("company_name"))
	if err != nil {
		return nil, err
	}
	return withData(list(users))
}

func (h *MonitorHandler) employees(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	emps, err := h.svc.Directory.ListEmployees(ctx, directory.EmployeeQuery{
		CompanyName: p.String("company_name"),
		ID:          p.Uint("id"),
		EmployeeID:  p.String("employee_id"),
	})
	if err != nil {
		return nil, err
	}
	return withData(list(emps))
}

func employeeInput(p Params) directory.EmployeeInput {
	return directory.EmployeeInput{
		ID:                              p.Uint("id"),
		CompanyName:                     p.String("company_name"),
		EmployeeID:                      p.String("employee_id"),
		FullName:                        p.String("full_name"),
		Email:                           p.String("email"),
		Phone:                           p.String("phone"),
		Department:                      p.String("department"),
		Designation:                     p.String("designation"),
		IsActive:                        p.BoolPtr("is_active"),
		LunchDuration:                   p.Int("lunch_duration", 0),
		SignificantIdleThresholdMinutes: p.Int("significant_idle_threshold_minutes", 0),
	}
}

func (h *MonitorHandler) addEmployee(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	emp, err := h.svc.Directory.AddEmployee(ctx, employeeInput(p))
	if err != nil {
		return nil, err
	}
	return &reply{Data: emp, Message: "Employee added"}, nil
}

func (h *MonitorHandler) updateEmployee(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	if err := h.svc.Directory.UpdateEmployee(ctx, employeeInput(p)); err != nil {
		return nil, err
	}
	return withMessage("Employee updated")
}

func (h *MonitorHandler) deleteEmployee(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	if err := h.svc.Directory.DeleteEmployee(ctx, p.Uint("id"), p.String("company_name")); err != nil {
		return nil, err
	}
	return withMessage("Employee deleted")
}

func (h *MonitorHandler) departments(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	depts, err := h.svc.Directory.ListDepartments(ctx, p.String("company_name"))
	if err != nil {
		return nil, err
	}
	return withData(list(depts))
}

func departmentInput(p Params) directory.DepartmentInput {
	return directory.DepartmentInput{
		ID:             p.Uint("id"),
		CompanyName:    p.String("company_name"),
		DepartmentName: p.String("department_name"),
		DepartmentCode: p.String("department_code"),
		Description:    p.String("description"),
		IsActive:       p.BoolPtr("is_active"),
	}
}

func (h *MonitorHandler) addDepartment(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	dept, err := h.svc.Directory.AddDepartment(ctx, departmentInput(p))
	if err != nil {
		return nil, err
	}
	return &reply{Data: dept, Message: "Department added"}, nil
}

func (h *MonitorHandler) updateDepartment(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	if err := h.svc.Directory.UpdateDepartment(ctx, departmentInput(p)); err != nil {
		return nil, err
	}
	return withMessage("Department updated")
}

func (h *MonitorHandler) deleteDepartment(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	if err := h.svc.Directory.DeleteDepartment(ctx, p.Uint("id"), p.String("company_name")); err != nil {
		return nil, err
	}
	return withMessage("Department deleted")
}

func (h *MonitorHandler) punchIn(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	session, err := h.svc.Attendance.PunchIn(ctx, attendance.PunchInRequest{
		CompanyName: p.String("company_name"),
		EmployeeID:  p.First("employee_id", "username"),
		DisplayName: p.First("display_name", "display_user_name"),
		SystemName:  p.String("system_name"),
		MachineID:   p.String("machine_id"),
		IPAddress:   p.First("ip_address", "client_ip"),
	})
	if err != nil {
		return nil, err
	}
	return &reply{Data: session, Message: "Punched in"}, nil
}

func (h *MonitorHandler) punchOut(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	session, err := h.svc.Attendance.PunchOut(ctx,
		p.String("company_name"), p.First("employee_id", "username"), p.Int("break_duration_seconds", 0))
	if err != nil {
		return nil, err
	}
	return &reply{Data: session, Message: "Punched out"}, nil
}

func (h *MonitorHandler) todayAttendance(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	records, err := h.svc.Attendance.Today(ctx, p.String("company_name"))
	if err != nil {
		return nil, err
	}
	return withData(list(records))
}

func attendanceFilter(p Params) attendance.Filter {
	return attendance.Filter{
		CompanyName: p.String("company_name"),
		StartDate:   p.String("start_date"),
		EndDate:     p.String("end_date"),
		EmployeeID:  p.String("employee_id"),
		Department:  p.String("department"),
	}
}

func (h *MonitorHandler) attendanceList(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	records, err := h.svc.Attendance.List(ctx, attendanceFilter(p))
	if err != nil {
		return nil, err
	}
	return withData(list(records))
}

func (h *MonitorHandler) punchEmployees(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	emps, err := h.svc.Attendance.PunchEmployees(ctx, p.String("company_name"))
	if err != nil {
		return nil, err
	}
	return withData(list(emps))
}

func (h *MonitorHandler) punchActivity(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	records, err := h.svc.Attendance.Activity(ctx, p.String("company_name"), p.Int("limit", 0))
	if err != nil {
		return nil, err
	}
	return withData(list(records))
}

func (h *MonitorHandler) dailyWorkHours(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	summary, err := h.svc.Attendance.DailyWorkHours(ctx, p.String("company_name"), p.String("employee_id"), p.String("date"))
	if err != nil {
		return nil, err
	}
	return withData(summary)
}

func (h *MonitorHandler) dashboardStats(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	stats, err := h.svc.Attendance.DashboardStats(ctx, p.String("company_name"))
	if err != nil {
		return nil, err
	}
	return withData(stats)
}

func (h *MonitorHandler) exportAttendance(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	f := attendanceFilter(p)
	body, err := h.svc.Attendance.Export(ctx, f)
	if err != nil {
		return nil, err
	}
	name := "attendance.xlsx"
	if f.StartDate != "" || f.EndDate != "" {
		name = fmt.Sprintf("attendance_%s_%s.xlsx", f.StartDate, f.EndDate)
	}
	return &reply{File: &download{Name: name, ContentType: xlsxContentType, Body: body}}, nil
}
