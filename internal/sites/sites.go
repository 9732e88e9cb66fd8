// Package sites monitors the uptime of company websites. Status changes
// open and close downtime windows; probes run concurrently on a worker pool.
package sites

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"attendance-monitor/internal/clock"
	"attendance-monitor/internal/core"
	"attendance-monitor/internal/models"
)

const (
	StatusUp      = "up"
	StatusDown    = "down"
	StatusUnknown = "unknown"

	downtimeOpen      = "down"
	downtimeRecovered = "recovered"

	DefaultCheckInterval = 30
	uptimeWindow         = 24 * time.Hour

	defaultProbeTimeout = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// Config of the monitor. ProbeTimeout bounds a single HTTP request of a
// probe; WriteTimeout bounds each status write after the probes finish.
type Config struct {
	DB           *gorm.DB
	Clock        clock.Clock
	Prober       Prober
	Workers      int
	ProbeTimeout time.Duration
	WriteTimeout time.Duration
	Logger       *zap.Logger
}

type Service struct {
	db           *gorm.DB
	clock        clock.Clock
	prober       Prober
	workers      int
	probeTimeout time.Duration
	writeTimeout time.Duration
	log          *zap.Logger
}

func NewService(cfg Config) *Service {
	s := &Service{
		db:           cfg.DB,
		clock:        cfg.Clock,
		prober:       cfg.Prober,
		workers:      cfg.Workers,
		probeTimeout: cfg.ProbeTimeout,
		writeTimeout: cfg.WriteTimeout,
		log:          cfg.Logger,
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.workers <= 0 {
		s.workers = 4
	}
	if s.probeTimeout <= 0 {
		s.probeTimeout = defaultProbeTimeout
	}
	if s.writeTimeout <= 0 {
		s.writeTimeout = defaultWriteTimeout
	}
	if s.prober == nil {
		s.prober = NewHTTPProber(s.probeTimeout, s.log)
	}
	return s
}

type SiteInput struct {
	ID            uint
	SiteName      string
	SiteURL       string
	CompanyName   string
	CheckInterval int
}

// Site is a monitored site with its uptime over the last 24 hours.
type Site struct {
	models.MonitoredSite
	Uptime float64 `json:"uptime"`
}

func (s *Service) Add(ctx context.Context, in SiteInput) (*models.MonitoredSite, error) {
	if err := core.Required(
		core.Field{Name: "site_name", Value: in.SiteName},
		core.Field{Name: "site_url", Value: in.SiteURL},
		core.Field{Name: "company_name", Value: in.CompanyName},
	); err != nil {
		return nil, err
	}
	if err := validateURL(in.SiteURL); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	site := &models.MonitoredSite{
		SiteName:      in.SiteName,
		SiteURL:       in.SiteURL,
		CompanyName:   in.CompanyName,
		CheckInterval: orDefaultInt(in.CheckInterval, DefaultCheckInterval),
		CurrentStatus: StatusUnknown,
		LastChecked:   &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.db.WithContext(ctx).Create(site).Error; err != nil {
		return nil, fmt.Errorf("failed to add monitored site: %w", err)
	}

	s.log.Info("Monitored site added", zap.Uint("site_id", site.ID), zap.String("site_url", site.SiteURL))
	return site, nil
}

func (s *Service) List(ctx context.Context, company string) ([]Site, error) {
	if err := core.Required(core.Field{Name: "company_name", Value: company}); err != nil {
		return nil, err
	}

	var rows []models.MonitoredSite
	err := s.db.WithContext(ctx).Where("company_name = ?", company).
		Order("created_at DESC").Order("id DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list monitored sites: %w", err)
	}

	out := make([]Site, 0, len(rows))
	for _, r := range rows {
		uptime, err := s.uptime(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Site{MonitoredSite: r, Uptime: uptime})
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, in SiteInput) (*models.MonitoredSite, error) {
	if in.ID == 0 {
		return nil, core.Invalid("site_id required")
	}
	if err := core.Required(
		core.Field{Name: "site_name", Value: in.SiteName},
		core.Field{Name: "site_url", Value: in.SiteURL},
	); err != nil {
		return nil, err
	}
	if err := validateURL(in.SiteURL); err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&models.MonitoredSite{}).Where("id = ?", in.ID).
		Updates(map[string]any{
			"site_name":      in.SiteName,
			"site_url":       in.SiteURL,
			"check_interval": orDefaultInt(in.CheckInterval, DefaultCheckInterval),
			"updated_at":     s.clock.Now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update monitored site: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, core.NotFound("site")
	}
	return s.get(ctx, s.db.WithContext(ctx), in.ID, "")
}

// Delete removes the site together with its downtime history.
func (s *Service) Delete(ctx context.Context, id uint) error {
	if id == 0 {
		return core.Invalid("site_id required")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("site_id = ?", id).Delete(&models.SiteDowntime{}).Error; err != nil {
			return fmt.Errorf("failed to delete downtime history: %w", err)
		}
		res := tx.Delete(&models.MonitoredSite{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete monitored site: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return core.NotFound("site")
		}
		return nil
	})
}

// RecordStatus applies an up/down observation: down opens a downtime window
// unless one is already open, up closes the latest open window.
func (s *Service) RecordStatus(ctx context.Context, siteID uint, company, status string) (*models.SiteDowntime, error) {
	if siteID == 0 || strings.TrimSpace(company) == "" {
		return nil, core.Invalid("site_id and company_name required")
	}
	if status != StatusUp && status != StatusDown {
		return nil, core.Invalid("status must be up or down")
	}

	var downtime *models.SiteDowntime
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		site, err := s.get(ctx, tx, siteID, company)
		if err != nil {
			return err
		}
		downtime, err = s.transition(tx, site, status, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return downtime, nil
}

func (s *Service) DowntimeHistory(ctx context.Context, siteID uint) ([]models.SiteDowntime, error) {
	if siteID == 0 {
		return nil, core.Invalid("site_id required")
	}

	rows := []models.SiteDowntime{}
	err := s.db.WithContext(ctx).Where("site_id = ?", siteID).
		Order("down_start DESC").Order("id DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get downtime history: %w", err)
	}
	return rows, nil
}

// transition writes the status change inside tx. responseTime is recorded
// along with last_checked when the observation came from a probe.
func (s *Service) transition(tx *gorm.DB, site *models.MonitoredSite, status string, responseTime *int64) (*models.SiteDowntime, error) {
	now := s.clock.Now()

	var open []models.SiteDowntime
	err := tx.Where("site_id = ? AND down_end IS NULL", site.ID).
		Order("down_start DESC").Order("id DESC").Limit(1).Find(&open).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find open downtime: %w", err)
	}

	var downtime *models.SiteDowntime
	switch status {
	case StatusDown:
		if len(open) > 0 {
			downtime = &open[0]
			break
		}
		downtime = &models.SiteDowntime{SiteID: site.ID, DownStart: now, Status: downtimeOpen, CreatedAt: now}
		if err := tx.Create(downtime).Error; err != nil {
			return nil, fmt.Errorf("failed to open downtime: %w", err)
		}
		s.log.Warn("Site down", zap.Uint("site_id", site.ID), zap.String("site_url", site.SiteURL))
	case StatusUp:
		if len(open) > 0 {
			downtime = &open[0]
			downtime.DownEnd = &now
			downtime.DurationMinutes = minutesBetween(downtime.DownStart, now)
			downtime.Status = downtimeRecovered
			err := tx.Model(downtime).Updates(map[string]any{
				"down_end":         now,
				"duration_minutes": downtime.DurationMinutes,
				"status":           downtimeRecovered,
			}).Error
			if err != nil {
				return nil, fmt.Errorf("failed to close downtime: %w", err)
			}
			s.log.Info("Site recovered", zap.Uint("site_id", site.ID), zap.Int("down_minutes", downtime.DurationMinutes))
		}
	}

	updates := map[string]any{"current_status": status, "updated_at": now}
	if responseTime != nil {
		updates["response_time"] = *responseTime
		updates["last_checked"] = now
	}
	if err := tx.Model(&models.MonitoredSite{}).Where("id = ?", site.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update site status: %w", err)
	}
	return downtime, nil
}

func (s *Service) get(ctx context.Context, db *gorm.DB, id uint, company string) (*models.MonitoredSite, error) {
	q := db.Where("id = ?", id)
	if company != "" {
		q = q.Where("company_name = ?", company)
	}
	var site models.MonitoredSite
	err := q.First(&site).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.NotFound("site")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get monitored site: %w", err)
	}
	return &site, nil
}

// uptime is the share of the last 24 hours not covered by downtime, as a
// percentage with two decimals.
func (s *Service) uptime(ctx context.Context, siteID uint) (float64, error) {
	now := s.clock.Now()
	windowStart := now.Add(-uptimeWindow)

	var rows []models.SiteDowntime
	err := s.db.WithContext(ctx).
		Where("site_id = ? AND (down_end IS NULL OR down_end > ?)", siteID, windowStart).
		Find(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute uptime: %w", err)
	}

	var down time.Duration
	for _, r := range rows {
		from := r.DownStart
		if from.Before(windowStart) {
			from = windowStart
		}
		to := now
		if r.DownEnd != nil && r.DownEnd.Before(now) {
			to = *r.DownEnd
		}
		if to.After(from) {
			down += to.Sub(from)
		}
	}

	ratio := decimal.NewFromInt(int64(down)).Div(decimal.NewFromInt(int64(uptimeWindow)))
	return decimal.NewFromInt(100).Sub(ratio.Mul(decimal.NewFromInt(100))).Round(2).InexactFloat64(), nil
}

func minutesBetween(from, to time.Time) int {
	return int(decimal.NewFromFloat(to.Sub(from).Minutes()).Round(0).IntPart())
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return core.Invalid("site_url must be an http or https URL")
	}
	return nil
}

func orDefaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
