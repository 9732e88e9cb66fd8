// Package meetings keeps meeting metadata for the dashboard calendar.
package meetings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"attendance-monitor/internal/core"
	"attendance-monitor/internal/models"
)

const (
	MaxRows       = 500
	DefaultStatus = "scheduled"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log}
}

type Input struct {
	ID           uint
	CompanyName  string
	Title        string
	Description  string
	Organizer    string
	Participants string
	MeetingLink  string
	StartTime    time.Time
	EndTime      *time.Time
	Status       string
}

func (in Input) validateTimes() error {
	if in.EndTime != nil && in.EndTime.Before(in.StartTime) {
		return core.Invalid("end_time must not be before start_time")
	}
	return nil
}

// List returns the company's meetings, newest start first. from and to are
// optional bounds on start_time; to is exclusive.
func (s *Service) List(ctx context.Context, company string, from, to time.Time) ([]models.Meeting, error) {
	if err := core.Required(core.Field{Name: "company_name", Value: company}); err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Where("company_name = ?", company)
	if !from.IsZero() {
		q = q.Where("start_time >= ?", from.UTC())
	}
	if !to.IsZero() {
		q = q.Where("start_time < ?", to.UTC())
	}

	meetings := []models.Meeting{}
	if err := q.Order("start_time DESC").Limit(MaxRows).Find(&meetings).Error; err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	return meetings, nil
}

func (s *Service) Add(ctx context.Context, in Input) (*models.Meeting, error) {
	if err := core.Required(
		core.Field{Name: "company_name", Value: in.CompanyName},
		core.Field{Name: "title", Value: in.Title},
	); err != nil {
		return nil, err
	}
	if in.StartTime.IsZero() {
		return nil, core.Invalid("start_time required")
	}
	if err := in.validateTimes(); err != nil {
		return nil, err
	}

	m := &models.Meeting{
		CompanyName:  in.CompanyName,
		Title:        in.Title,
		Description:  in.Description,
		Organizer:    in.Organizer,
		Participants: in.Participants,
		MeetingLink:  in.MeetingLink,
		StartTime:    in.StartTime.UTC(),
		EndTime:      utcPtr(in.EndTime),
		Status:       orDefault(in.Status, DefaultStatus),
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, fmt.Errorf("failed to add meeting: %w", err)
	}

	s.log.Info("Meeting added", zap.Uint("id", m.ID), zap.String("company_name", m.CompanyName))
	return m, nil
}

// Update changes only the fields that were supplied.
func (s *Service) Update(ctx context.Context, in Input) error {
	if in.ID == 0 || strings.TrimSpace(in.CompanyName) == "" {
		return core.Invalid("meeting id and company_name required")
	}
	if !in.StartTime.IsZero() {
		if err := in.validateTimes(); err != nil {
			return err
		}
	}

	updates := map[string]any{}
	setIf := func(col, v string) {
		if v != "" {
			updates[col] = v
		}
	}
	setIf("title", in.Title)
	setIf("description", in.Description)
	setIf("organizer", in.Organizer)
	setIf("participants", in.Participants)
	setIf("meeting_link", in.MeetingLink)
	setIf("status", in.Status)
	if !in.StartTime.IsZero() {
		updates["start_time"] = in.StartTime.UTC()
	}
	if in.EndTime != nil {
		updates["end_time"] = in.EndTime.UTC()
	}
	if len(updates) == 0 {
		return core.Invalid("nothing to update")
	}

	res := s.db.WithContext(ctx).Model(&models.Meeting{}).
		Where("id = ? AND company_name = ?", in.ID, in.CompanyName).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update meeting: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return core.NotFound("meeting")
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id uint, company string) error {
	if id == 0 || strings.TrimSpace(company) == "" {
		return core.Invalid("meeting id and company_name required")
	}

	res := s.db.WithContext(ctx).Where("id = ? AND company_name = ?", id, company).Delete(&models.Meeting{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete meeting: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return core.NotFound("meeting")
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
