// Package attendance records punch sessions from agents and serves the
// attendance views of the dashboard.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"attendance-monitor/internal/cache"
	"attendance-monitor/internal/clock"
	"attendance-monitor/internal/core"
	"attendance-monitor/internal/models"
)

const (
	MaxRows             = 500
	DefaultActivityRows = 20

	dateLayout = "2006-01-02"
)

var ErrAlreadyPunchedIn = core.Invalid("employee already punched in")

type Config struct {
	DB       *gorm.DB
	Clock    clock.Clock
	Cache    cache.KV
	StatsTTL time.Duration
	Logger   *zap.Logger
}

type Service struct {
	db       *gorm.DB
	clock    clock.Clock
	cache    cache.KV
	statsTTL time.Duration
	log      *zap.Logger
}

func NewService(cfg Config) *Service {
	s := &Service{db: cfg.DB, clock: cfg.Clock, cache: cfg.Cache, statsTTL: cfg.StatsTTL, log: cfg.Logger}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.cache == nil {
		s.cache = cache.Nop{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

type PunchInRequest struct {
	CompanyName string
	EmployeeID  string
	DisplayName string
	SystemName  string
	MachineID   string
	IPAddress   string
}

// PunchIn opens a session. An employee can hold only one open session.
func (s *Service) PunchIn(ctx context.Context, req PunchInRequest) (*models.PunchLog, error) {
	if err := core.Required(
		core.Field{Name: "company_name", Value: req.CompanyName},
		core.Field{Name: "employee_id", Value: req.EmployeeID},
	); err != nil {
		return nil, err
	}

	open, err := s.openSession(ctx, req.CompanyName, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, ErrAlreadyPunchedIn
	}

	now := s.clock.Now()
	punch := &models.PunchLog{
		CompanyName: req.CompanyName,
		Username:    req.EmployeeID,
		DisplayName: req.DisplayName,
		SystemName:  req.SystemName,
		MachineID:   req.MachineID,
		IPAddress:   req.IPAddress,
		PunchInTime: now,
		CreatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(punch).Error; err != nil {
		return nil, fmt.Errorf("failed to punch in: %w", err)
	}

	s.invalidateStats(ctx, req.CompanyName)
	s.log.Info("Punch in",
		zap.String("company_name", req.CompanyName),
		zap.String("employee_id", req.EmployeeID),
	)
	return punch, nil
}

// PunchOut closes the latest open session and stores its duration.
func (s *Service) PunchOut(ctx context.Context, company, employeeID string, breakSeconds int) (*models.PunchLog, error) {
	if err := core.Required(
		core.Field{Name: "company_name", Value: company},
		core.Field{Name: "employee_id", Value: employeeID},
	); err != nil {
		return nil, err
	}

	punch, err := s.openSession(ctx, company, employeeID)
	if err != nil {
		return nil, err
	}
	if punch == nil {
		return nil, core.NotFound("open punch session")
	}

	now := s.clock.Now()
	if breakSeconds < 0 {
		breakSeconds = 0
	}
	punch.PunchOutTime = &now
	punch.BreakDurationSeconds = breakSeconds
	punch.TotalWorkDurationSeconds = int(now.Sub(punch.PunchInTime) / time.Second)

	err = s.db.WithContext(ctx).Model(punch).Updates(map[string]any{
		"punch_out_time":              now,
		"break_duration_seconds":      breakSeconds,
		"total_work_duration_seconds": punch.TotalWorkDurationSeconds,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to punch out: %w", err)
	}

	s.invalidateStats(ctx, company)
	s.log.Info("Punch out",
		zap.String("company_name", company),
		zap.String("employee_id", employeeID),
		zap.Int("work_seconds", punch.TotalWorkDurationSeconds),
	)
	return punch, nil
}

func (s *Service) openSession(ctx context.Context, company, employeeID string) (*models.PunchLog, error) {
	var punch models.PunchLog
	err := s.db.WithContext(ctx).
		Where("company_name = ? AND username = ? AND punch_out_time IS NULL", company, employeeID).
		Order("id DESC").First(&punch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open session: %w", err)
	}
	return &punch, nil
}

// Record is a punch row enriched with the employee's directory entry.
type Record struct {
	ID                       uint       `json:"id"`
	PunchInTime              time.Time  `json:"punch_in_time"`
	PunchOutTime             *time.Time `json:"punch_out_time"`
	BreakDurationSeconds     int        `json:"break_duration_seconds"`
	TotalWorkDurationSeconds int        `json:"total_work_duration_seconds"`
	SystemName               string     `json:"system_name"`
	Username                 string     `json:"username"`
	CompanyName              string     `json:"company_name"`
	IPAddress                string     `json:"ip_address"`
	MachineID                string     `json:"machine_id"`
	CreatedAt                time.Time  `json:"created_at"`
	DisplayName              string     `json:"display_name"`
	Department               string     `json:"department"`
}

// Filter is shared by get_attendance and export_attendance. Dates are
// YYYY-MM-DD and inclusive.
type Filter struct {
	CompanyName string
	StartDate   string
	EndDate     string
	EmployeeID  string
	Department  string
}

func (s *Service) records(ctx context.Context, company string) *gorm.DB {
	return s.db.WithContext(ctx).Table("punch_log_consolidated AS p").
		Select(`p.id, p.punch_in_time, p.punch_out_time, p.break_duration_seconds,
			p.total_work_duration_seconds, p.system_name, p.username, p.company_name,
			p.ip_address, p.machine_id, p.created_at,
			COALESCE(NULLIF(p.display_name, ''), ce.full_name, p.username) AS display_name,
			COALESCE(ce.department, '') AS department`).
		Joins("LEFT JOIN company_employees ce ON ce.employee_id = p.username AND ce.company_name = p.company_name").
		Where("p.company_name = ?", company)
}

// Today lists sessions that started on the current UTC day.
func (s *Service) Today(ctx context.Context, company string) ([]Record, error) {
	if err := requireCompany(company); err != nil {
		return nil, err
	}

	from, to := dayBounds(s.clock.Now())
	rows := []Record{}
	err := s.records(ctx, company).
		Where("p.punch_in_time >= ? AND p.punch_in_time < ?", from, to).
		Order("p.punch_in_time DESC").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get today's attendance: %w", err)
	}
	return rows, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Record, error) {
	if err := requireCompany(f.CompanyName); err != nil {
		return nil, err
	}

	q := s.records(ctx, f.CompanyName)
	if f.StartDate != "" {
		from, err := parseDate("start_date", f.StartDate)
		if err != nil {
			return nil, err
		}
		q = q.Where("p.punch_in_time >= ?", from)
	}
	if f.EndDate != "" {
		to, err := parseDate("end_date", f.EndDate)
		if err != nil {
			return nil, err
		}
		q = q.Where("p.punch_in_time < ?", to.AddDate(0, 0, 1))
	}
	if f.EmployeeID != "" {
		q = q.Where("p.username = ?", f.EmployeeID)
	}
	if f.Department != "" {
		q = q.Where("ce.department = ?", f.Department)
	}

	rows := []Record{}
	if err := q.Order("p.punch_in_time DESC").Limit(MaxRows).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get attendance: %w", err)
	}
	return rows, nil
}

// Activity returns the most recent punches, limit defaulting to 20.
func (s *Service) Activity(ctx context.Context, company string, limit int) ([]Record, error) {
	if err := requireCompany(company); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultActivityRows
	}
	if limit > MaxRows {
		limit = MaxRows
	}

	rows := []Record{}
	err := s.records(ctx, company).Order("p.punch_in_time DESC").Limit(limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get activity logs: %w", err)
	}
	return rows, nil
}

type PunchEmployee struct {
	EmployeeID  string `json:"employee_id"`
	DisplayName string `json:"display_name"`
	Department  string `json:"department"`
}

// PunchEmployees lists everyone who has at least one punch, for filters.
func (s *Service) PunchEmployees(ctx context.Context, company string) ([]PunchEmployee, error) {
	if err := requireCompany(company); err != nil {
		return nil, err
	}

	rows := []PunchEmployee{}
	err := s.db.WithContext(ctx).Table("punch_log_consolidated AS p").
		Select(`DISTINCT p.username AS employee_id,
			COALESCE(NULLIF(p.display_name, ''), ce.full_name, p.username) AS display_name,
			COALESCE(ce.department, '') AS department`).
		Joins("LEFT JOIN company_employees ce ON ce.employee_id = p.username AND ce.company_name = p.company_name").
		Where("p.company_name = ?", company).
		Order("display_name ASC").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get punch employees: %w", err)
	}
	return rows, nil
}

func requireCompany(company string) error {
	return core.Required(core.Field{Name: "company_name", Value: company})
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, core.Invalid("%s must be YYYY-MM-DD", field)
	}
	return t, nil
}

func dayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	from := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}
