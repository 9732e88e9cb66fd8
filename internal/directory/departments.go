package directory

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"attendance-monitor/internal/core"
	"attendance-monitor/internal/models"
)

type DepartmentInput struct {
	ID             uint
	CompanyName    string
	DepartmentName string
	DepartmentCode string
	Description    string
	IsActive       *bool
}

func (s *Service) ListDepartments(ctx context.Context, company string) ([]models.Department, error) {
	if err := core.Required(core.Field{Name: "company_name", Value: company}); err != nil {
		return nil, err
	}

	departments := []models.Department{}
	err := s.db.WithContext(ctx).Where("company_name = ?", company).
		Order("department_name ASC").Find(&departments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	return departments, nil
}

func (s *Service) AddDepartment(ctx context.Context, in DepartmentInput) (*models.Department, error) {
	if err := core.Required(
		core.Field{Name: "company_name", Value: in.CompanyName},
		core.Field{Name: "department_name", Value: in.DepartmentName},
	); err != nil {
		return nil, err
	}

	code := in.DepartmentCode
	if code == "" {
		code = DepartmentCode(in.DepartmentName)
	}

	dept := &models.Department{
		CompanyName:    in.CompanyName,
		DepartmentName: in.DepartmentName,
		DepartmentCode: code,
		Description:    in.Description,
		IsActive:       true,
	}
	if err := s.db.WithContext(ctx).Create(dept).Error; err != nil {
		return nil, fmt.Errorf("failed to add department: %w", err)
	}

	s.log.Info("Department added",
		zap.String("company_name", dept.CompanyName),
		zap.String("department_code", dept.DepartmentCode),
	)
	return dept, nil
}

func (s *Service) UpdateDepartment(ctx context.Context, in DepartmentInput) error {
	if err := requireRow(in.ID, in.CompanyName, "department"); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.Department{}).
		Where("id = ? AND company_name = ?", in.ID, in.CompanyName).
		Updates(map[string]any{
			"department_name": in.DepartmentName,
			"department_code": in.DepartmentCode,
			"description":     in.Description,
			"is_active":       in.IsActive == nil || *in.IsActive,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update department: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return core.NotFound("department")
	}
	return nil
}

func (s *Service) DeleteDepartment(ctx context.Context, id uint, company string) error {
	if err := requireRow(id, company, "department"); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Where("id = ? AND company_name = ?", id, company).Delete(&models.Department{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete department: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return core.NotFound("department")
	}
	return nil
}

// DepartmentCode derives a default code from the first three characters of
// the name, upper-cased.
func DepartmentCode(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > 3 {
		name = string([]rune(name)[:3])
	}
	return strings.ToUpper(name)
}
