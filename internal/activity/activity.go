// Package activity stores what agents observe on employee machines (web
// visits, foreground applications, idle periods, screenshots) and serves
// the log viewers.
package activity

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"attendance-monitor/internal/clock"
	"attendance-monitor/internal/core"
	"attendance-monitor/internal/models"
)

const (
	MaxLogRows        = 500
	MaxScreenshotRows = 100
)

type Config struct {
	DB        *gorm.DB
	Clock     clock.Clock
	UploadDir string
	Logger    *zap.Logger
}

type Service struct {
	db        *gorm.DB
	clock     clock.Clock
	uploadDir string
	log       *zap.Logger
}

func NewService(cfg Config) *Service {
	s := &Service{db: cfg.DB, clock: cfg.Clock, uploadDir: cfg.UploadDir, log: cfg.Logger}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Source identifies the machine and user a log entry came from.
type Source struct {
	CompanyName     string
	SystemName      string
	Username        string
	DisplayUserName string
	IPAddress       string
}

func (src Source) validate() error {
	return core.Required(
		core.Field{Name: "company_name", Value: src.CompanyName},
		core.Field{Name: "username", Value: src.Username},
	)
}

type WebVisit struct {
	Source
	BrowserName     string
	WebsiteURL      string
	PageTitle       string
	Category        string
	VisitTime       time.Time
	DurationSeconds int
}

func (s *Service) LogWeb(ctx context.Context, in WebVisit) (*models.WebLog, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := core.Required(core.Field{Name: "website_url", Value: in.WebsiteURL}); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	row := &models.WebLog{
		CompanyName:     in.CompanyName,
		SystemName:      in.SystemName,
		Username:        in.Username,
		DisplayUserName: in.DisplayUserName,
		BrowserName:     in.BrowserName,
		WebsiteURL:      in.WebsiteURL,
		PageTitle:       in.PageTitle,
		Category:        in.Category,
		VisitTime:       orNow(in.VisitTime, now),
		DurationSeconds: in.DurationSeconds,
		IPAddress:       in.IPAddress,
		LogTimestamp:    now,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to log web visit: %w", err)
	}
	return row, nil
}

type AppUsage struct {
	Source
	AppName         string
	WindowTitle     string
	StartTime       time.Time
	EndTime         *time.Time
	DurationSeconds int
	IsActive        bool
}

func (s *Service) LogApplication(ctx context.Context, in AppUsage) (*models.ApplicationLog, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := core.Required(core.Field{Name: "app_name", Value: in.AppName}); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	row := &models.ApplicationLog{
		CompanyName:     in.CompanyName,
		SystemName:      in.SystemName,
		Username:        in.Username,
		DisplayUserName: in.DisplayUserName,
		AppName:         in.AppName,
		WindowTitle:     in.WindowTitle,
		StartTime:       orNow(in.StartTime, now),
		EndTime:         in.EndTime,
		DurationSeconds: durationOf(in.DurationSeconds, in.StartTime, in.EndTime),
		IsActive:        in.IsActive,
		IPAddress:       in.IPAddress,
		LogTimestamp:    now,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to log application usage: %w", err)
	}
	return row, nil
}

type IdlePeriod struct {
	Source
	StartTime       time.Time
	EndTime         *time.Time
	DurationSeconds int
	Status          string
}

func (s *Service) LogInactivity(ctx context.Context, in IdlePeriod) (*models.InactivityLog, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = "idle"
	}
	now := s.clock.Now()
	row := &models.InactivityLog{
		CompanyName:     in.CompanyName,
		SystemName:      in.SystemName,
		Username:        in.Username,
		DisplayUserName: in.DisplayUserName,
		StartTime:       orNow(in.StartTime, now),
		EndTime:         in.EndTime,
		DurationSeconds: durationOf(in.DurationSeconds, in.StartTime, in.EndTime),
		Status:          status,
		IPAddress:       in.IPAddress,
		LogTimestamp:    now,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to log inactivity: %w", err)
	}
	return row, nil
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t.UTC()
}

// durationOf prefers the reported duration and otherwise derives it from
// the start and end times.
func durationOf(reported int, start time.Time, end *time.Time) int {
	if reported > 0 || start.IsZero() || end == nil {
		return reported
	}
	if d := end.Sub(start); d > 0 {
		return int(d / time.Second)
	}
	return 0
}
