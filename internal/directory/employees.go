// Package directory manages a company's employees and departments.
package directory

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"attendance-monitor/internal/clock"
	"attendance-monitor/internal/core"
	"attendance-monitor/internal/models"
)

const (
	DefaultLunchDuration = 60
	DefaultIdleThreshold = 10
)

type Service struct {
	db    *gorm.DB
	clock clock.Clock
	log   *zap.Logger
}

func NewService(db *gorm.DB, c clock.Clock, log *zap.Logger) *Service {
	if c == nil {
		c = clock.Real()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, clock: c, log: log}
}

// EmployeeQuery narrows get_employees: by row id, by employee_id, or the
// whole company when both are zero.
type EmployeeQuery struct {
	CompanyName string
	ID          uint
	EmployeeID  string
}

type EmployeeInput struct {
	ID                              uint
	CompanyName                     string
	EmployeeID                      string
	FullName                        string
	Email                           string
	Phone                           string
	Department                      string
	Designation                     string
	IsActive                        *bool
	LunchDuration                   int
	SignificantIdleThresholdMinutes int
}

func (s *Service) ListEmployees(ctx context.Context, q EmployeeQuery) ([]models.Employee, error) {
	if err := core.Required(core.Field{Name: "company_name", Value: q.CompanyName}); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Where("company_name = ?", q.CompanyName)
	switch {
	case q.ID != 0:
		tx = tx.Where("id = ?", q.ID).Limit(1)
	case q.EmployeeID != "":
		tx = tx.Where("employee_id = ?", q.EmployeeID).Limit(1)
	default:
		tx = tx.Order("full_name ASC")
	}

	employees := []models.Employee{}
	if err := tx.Find(&employees).Error; err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	return employees, nil
}

// AddEmployee inserts an active employee. A missing employee_id is generated
// as <initials>-<year>-<sequence>, e.g. WIN-2026-001.
func (s *Service) AddEmployee(ctx context.Context, in EmployeeInput) (*models.Employee, error) {
	if err := core.Required(
		core.Field{Name: "company_name", Value: in.CompanyName},
		core.Field{Name: "full_name", Value: in.FullName},
	); err != nil {
		return nil, err
	}

	employeeID := in.EmployeeID
	if employeeID == "" {
		var count int64
		err := s.db.WithContext(ctx).Model(&models.Employee{}).
			Where("company_name = ?", in.CompanyName).Count(&count).Error
		if err != nil {
			return nil, fmt.Errorf("failed to count employees: %w", err)
		}
		employeeID = GenerateEmployeeID(in.CompanyName, s.clock.Now().Year(), int(count)+1)
	}

	emp := &models.Employee{
		CompanyName:                     in.CompanyName,
		EmployeeID:                      employeeID,
		FullName:                        in.FullName,
		Email:                           in.Email,
		Phone:                           in.Phone,
		Department:                      in.Department,
		Designation:                     in.Designation,
		IsActive:                        true,
		LunchDuration:                   orDefaultInt(in.LunchDuration, DefaultLunchDuration),
		SignificantIdleThresholdMinutes: orDefaultInt(in.SignificantIdleThresholdMinutes, DefaultIdleThreshold),
	}
	if err := s.db.WithContext(ctx).Create(emp).Error; err != nil {
		return nil, fmt.Errorf("failed to add employee: %w", err)
	}

	s.log.Info("Employee added",
		zap.String("company_name", emp.CompanyName),
		zap.String("employee_id", emp.EmployeeID),
	)
	return emp, nil
}

// UpdateEmployee overwrites every editable field; omitted values fall back
// to their defaults rather than keeping the stored ones.
func (s *Service) UpdateEmployee(ctx context.Context, in EmployeeInput) error {
	if err := requireRow(in.ID, in.CompanyName, "employee"); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.Employee{}).
		Where("id = ? AND company_name = ?", in.ID, in.CompanyName).
		Updates(map[string]any{
			"employee_id":                        in.EmployeeID,
			"full_name":                          in.FullName,
			"email":                              in.Email,
			"phone":                              in.Phone,
			"department":                         in.Department,
			"designation":                        in.Designation,
			"is_active":                          in.IsActive == nil || *in.IsActive,
			"lunch_duration":                     orDefaultInt(in.LunchDuration, DefaultLunchDuration),
			"significant_idle_threshold_minutes": orDefaultInt(in.SignificantIdleThresholdMinutes, DefaultIdleThreshold),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update employee: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return core.NotFound("employee")
	}
	return nil
}

func (s *Service) DeleteEmployee(ctx context.Context, id uint, company string) error {
	if err := requireRow(id, company, "employee"); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Where("id = ? AND company_name = ?", id, company).Delete(&models.Employee{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete employee: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return core.NotFound("employee")
	}

	s.log.Info("Employee deleted", zap.Uint("id", id), zap.String("company_name", company))
	return nil
}

// GenerateEmployeeID builds an id from the initials of the first three words
// of the company name, the year and a zero-padded sequence number.
func GenerateEmployeeID(company string, year, seq int) string {
	var initials strings.Builder
	for i, word := range strings.Fields(company) {
		if i == 3 {
			break
		}
		r, _ := utf8.DecodeRuneInString(word)
		initials.WriteRune(unicode.ToUpper(r))
	}
	prefix := initials.String()
	if prefix == "" {
		prefix = "EMP"
	}
	return fmt.Sprintf("%s-%d-%03d", prefix, year, seq)
}

func requireRow(id uint, company, what string) error {
	if id == 0 || strings.TrimSpace(company) == "" {
		return core.Invalid("%s id and company_name required", what)
	}
	return nil
}

func orDefaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
