package activity

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"attendance-monitor/internal/core"
	"attendance-monitor/internal/models"
)

// LogFilter narrows the log viewers. Dates are inclusive YYYY-MM-DD days.
type LogFilter struct {
	CompanyName string
	StartDate   string
	EndDate     string
	Search      string
	EmployeeID  string
}

func (s *Service) WebLogs(ctx context.Context, f LogFilter) ([]models.WebLog, error) {
	q, err := s.filtered(ctx, f, "visit_time", "website_url", "page_title", "browser_name")
	if err != nil {
		return nil, err
	}
	rows := []models.WebLog{}
	if err := q.Order("visit_time DESC").Limit(MaxLogRows).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get web logs: %w", err)
	}
	return rows, nil
}

func (s *Service) ApplicationLogs(ctx context.Context, f LogFilter) ([]models.ApplicationLog, error) {
	q, err := s.filtered(ctx, f, "start_time", "app_name", "window_title")
	if err != nil {
		return nil, err
	}
	rows := []models.ApplicationLog{}
	if err := q.Order("start_time DESC").Limit(MaxLogRows).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get application logs: %w", err)
	}
	return rows, nil
}

func (s *Service) InactivityLogs(ctx context.Context, f LogFilter) ([]models.InactivityLog, error) {
	q, err := s.filtered(ctx, f, "start_time", "system_name", "username")
	if err != nil {
		return nil, err
	}
	rows := []models.InactivityLog{}
	if err := q.Order("start_time DESC").Limit(MaxLogRows).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get inactivity logs: %w", err)
	}
	return rows, nil
}

// Screenshots returns metadata only; image bytes come from ScreenshotImage.
func (s *Service) Screenshots(ctx context.Context, f LogFilter) ([]models.ScreenshotLog, error) {
	f.Search = ""
	q, err := s.filtered(ctx, f, "log_timestamp")
	if err != nil {
		return nil, err
	}
	rows := []models.ScreenshotLog{}
	if err := q.Order("log_timestamp DESC").Limit(MaxScreenshotRows).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get screenshots: %w", err)
	}
	return rows, nil
}

type LogEmployee struct {
	EmployeeID  string `json:"employee_id"`
	DisplayName string `json:"display_name"`
}

var logTables = map[string]string{
	"web":        "web_logs",
	"app":        "application_logs",
	"inactivity": "inactivity_logs",
	"screenshot": "screenshot_logs",
}

// LogEmployees lists the users that appear in one log table. logType is
// web (default), app, inactivity or screenshot.
func (s *Service) LogEmployees(ctx context.Context, company, logType string) ([]LogEmployee, error) {
	if err := core.Required(core.Field{Name: "company_name", Value: company}); err != nil {
		return nil, err
	}
	if logType == "" {
		logType = "web"
	}
	table, ok := logTables[logType]
	if !ok {
		return nil, core.Invalid("unknown log_type: %s", logType)
	}

	rows := []LogEmployee{}
	err := s.db.WithContext(ctx).Table(table).
		Select(`DISTINCT username AS employee_id, COALESCE(NULLIF(display_user_name, ''), username) AS display_name`).
		Where("company_name = ?", company).
		Order("display_name ASC").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get log employees: %w", err)
	}
	return rows, nil
}

func (s *Service) filtered(ctx context.Context, f LogFilter, timeColumn string, searchColumns ...string) (*gorm.DB, error) {
	if err := core.Required(core.Field{Name: "company_name", Value: f.CompanyName}); err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Where("company_name = ?", f.CompanyName)
	if f.StartDate != "" {
		from, err := parseDay("start_date", f.StartDate)
		if err != nil {
			return nil, err
		}
		q = q.Where(timeColumn+" >= ?", from)
	}
	if f.EndDate != "" {
		to, err := parseDay("end_date", f.EndDate)
		if err != nil {
			return nil, err
		}
		q = q.Where(timeColumn+" < ?", to.AddDate(0, 0, 1))
	}
	if f.Search != "" && len(searchColumns) > 0 {
		pattern := "%" + f.Search + "%"
		cond := s.db.Where(searchColumns[0]+" LIKE ?", pattern)
		for _, col := range searchColumns[1:] {
			cond = cond.Or(col+" LIKE ?", pattern)
		}
		q = q.Where(cond)
	}
	if f.EmployeeID != "" {
		q = q.Where("username = ?", f.EmployeeID)
	}
	return q, nil
}

func parseDay(field, value string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return time.Time{}, core.Invalid("%s must be YYYY-MM-DD", field)
	}
	return t, nil
}
