package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"attendance-monitor/internal/cache"
	"attendance-monitor/internal/core"
	"attendance-monitor/internal/models"
)

const (
	notAvailable = "N/A"
	stillWorking = "Still working"

	dateTimeDisplay = "02/01/2006 15:04"
	timeDisplay     = "15:04"
)

type Session struct {
	Record
	PunchInFormatted  string  `json:"punch_in_formatted"`
	PunchOutFormatted string  `json:"punch_out_formatted"`
	WorkHours         float64 `json:"work_hours"`
	BreakMinutes      int64   `json:"break_minutes"`
}

type DailySummary struct {
	Sessions          []Session `json:"sessions"`
	TotalWorkHours    float64   `json:"total_work_hours"`
	TotalBreakMinutes int64     `json:"total_break_minutes"`
	FirstPunchIn      string    `json:"first_punch_in"`
	LastPunchOut      string    `json:"last_punch_out"`
	SessionCount      int       `json:"session_count"`
}

// DailyWorkHours aggregates one employee's sessions on one UTC day. Open
// sessions count towards session_count but contribute no work time.
func (s *Service) DailyWorkHours(ctx context.Context, company, employeeID, date string) (*DailySummary, error) {
	if err := core.Required(
		core.Field{Name: "company_name", Value: company},
		core.Field{Name: "employee_id", Value: employeeID},
		core.Field{Name: "date", Value: date},
	); err != nil {
		return nil, err
	}
	day, err := parseDate("date", date)
	if err != nil {
		return nil, err
	}
	from, to := dayBounds(day)

	rows := []Record{}
	err = s.records(ctx, company).
		Where("p.username = ? AND p.punch_in_time >= ? AND p.punch_in_time < ?", employeeID, from, to).
		Order("p.punch_in_time ASC").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get daily work hours: %w", err)
	}

	return summarize(rows), nil
}

// EmptySummary is the summary of a day without sessions.
func EmptySummary() *DailySummary { return summarize(nil) }

func summarize(rows []Record) *DailySummary {
	summary := &DailySummary{
		Sessions:     make([]Session, 0, len(rows)),
		FirstPunchIn: notAvailable,
		LastPunchOut: notAvailable,
		SessionCount: len(rows),
	}

	var workSeconds, breakSeconds int64
	var lastOut time.Time
	for i, r := range rows {
		session := Session{
			Record:            r,
			PunchInFormatted:  r.PunchInTime.UTC().Format(dateTimeDisplay),
			PunchOutFormatted: stillWorking,
			BreakMinutes:      secondsToMinutes(int64(r.BreakDurationSeconds)),
		}
		if i == 0 {
			summary.FirstPunchIn = r.PunchInTime.UTC().Format(timeDisplay)
		}
		if r.PunchOutTime != nil {
			seconds := int64(r.PunchOutTime.Sub(r.PunchInTime) / time.Second)
			workSeconds += seconds
			session.PunchOutFormatted = r.PunchOutTime.UTC().Format(dateTimeDisplay)
			session.WorkHours = secondsToHours(seconds)
			if r.PunchOutTime.After(lastOut) {
				lastOut = *r.PunchOutTime
			}
		}
		breakSeconds += int64(r.BreakDurationSeconds)
		summary.Sessions = append(summary.Sessions, session)
	}

	summary.TotalWorkHours = secondsToHours(workSeconds)
	summary.TotalBreakMinutes = secondsToMinutes(breakSeconds)
	if !lastOut.IsZero() {
		summary.LastPunchOut = lastOut.UTC().Format(timeDisplay)
	}
	return summary
}

func secondsToHours(seconds int64) float64 {
	return decimal.NewFromInt(seconds).Div(decimal.NewFromInt(3600)).Round(2).InexactFloat64()
}

func secondsToMinutes(seconds int64) int64 {
	return decimal.NewFromInt(seconds).Div(decimal.NewFromInt(60)).Round(0).IntPart()
}

type DashboardStats struct {
	TotalEmployees    int64 `json:"total_employees"`
	PresentToday      int64 `json:"present_today"`
	CurrentlyWorking  int64 `json:"currently_working"`
	CompletedSessions int64 `json:"completed_sessions"`
}

// DashboardStats counts today's attendance. Results are cached per company
// for the configured TTL; punches invalidate the entry.
func (s *Service) DashboardStats(ctx context.Context, company string) (*DashboardStats, error) {
	if err := requireCompany(company); err != nil {
		return nil, err
	}

	key := statsKey(company)
	var stats DashboardStats
	err := cache.GetJSON(ctx, s.cache, key, &stats)
	if err == nil {
		return &stats, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("Dashboard stats cache read failed", zap.String("company_name", company), zap.Error(err))
	}

	from, to := dayBounds(s.clock.Now())
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.Employee{}).Where("company_name = ?", company).
		Count(&stats.TotalEmployees).Error; err != nil {
		return nil, fmt.Errorf("failed to count employees: %w", err)
	}

	today := db.Model(&models.PunchLog{}).
		Where("company_name = ? AND punch_in_time >= ? AND punch_in_time < ?", company, from, to)
	if err := today.Session(&gorm.Session{}).Distinct("username").
		Count(&stats.PresentToday).Error; err != nil {
		return nil, fmt.Errorf("failed to count present employees: %w", err)
	}
	if err := today.Session(&gorm.Session{}).Where("punch_out_time IS NULL").
		Count(&stats.CurrentlyWorking).Error; err != nil {
		return nil, fmt.Errorf("failed to count working employees: %w", err)
	}
	if err := today.Session(&gorm.Session{}).Where("punch_out_time IS NOT NULL").
		Count(&stats.CompletedSessions).Error; err != nil {
		return nil, fmt.Errorf("failed to count completed sessions: %w", err)
	}

	if s.statsTTL > 0 {
		if err := cache.SetJSON(ctx, s.cache, key, stats, s.statsTTL); err != nil {
			s.log.Warn("Dashboard stats cache write failed", zap.String("company_name", company), zap.Error(err))
		}
	}
	return &stats, nil
}

func (s *Service) invalidateStats(ctx context.Context, company string) {
	if err := s.cache.Delete(ctx, statsKey(company)); err != nil {
		s.log.Warn("Dashboard stats cache invalidation failed", zap.String("company_name", company), zap.Error(err))
	}
}

func statsKey(company string) string {
	return "attendance:dashboard_stats:" + company
}
