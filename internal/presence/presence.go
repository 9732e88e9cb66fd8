// Package presence tracks which agent installations are online. A system is
// online when its last heartbeat falls inside the staleness window; the
// window is enforced lazily by a sweep on every listing.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/mo"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"attendance-monitor/internal/clock"
	"attendance-monitor/internal/core"
	"attendance-monitor/internal/models"
)

const DefaultStaleAfter = 2 * time.Minute

const (
	notConnectedMachine = "Not Connected"
	notConnectedStatus  = "not-connected"
)

type Config struct {
	DB         *gorm.DB
	Clock      clock.Clock
	StaleAfter time.Duration
	Logger     *zap.Logger
}

type Service struct {
	db         *gorm.DB
	clock      clock.Clock
	staleAfter time.Duration
	log        *zap.Logger
}

func NewService(cfg Config) *Service {
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: cfg.DB, clock: c, staleAfter: staleAfter, log: log}
}

// Heartbeat carries everything an agent reports about itself.
type Heartbeat struct {
	CompanyName string
	EmployeeID  string
	DisplayName string
	Department  string
	MachineID   string
	SystemID    string
	MachineName string
	IPAddress   string
	OSVersion   string
	AppVersion  string
	Status      string
}

// SystemRow is one employee joined with its presence, if any.
type SystemRow struct {
	ID             uint       `json:"id"`
	CompanyName    string     `json:"company_name"`
	EmployeeID     string     `json:"employee_id"`
	DisplayName    string     `json:"display_name"`
	Department     string     `json:"department"`
	MachineID      string     `json:"machine_id"`
	MachineName    string     `json:"machine_name"`
	IPAddress      string     `json:"ip_address"`
	OSVersion      string     `gorm:"column:os_version" json:"os_version"`
	AppVersion     string     `json:"app_version"`
	LastHeartbeat  *time.Time `json:"last_heartbeat"`
	FirstConnected *time.Time `json:"first_connected"`
	IsOnline       bool       `json:"is_online"`
	Status         string     `json:"status"`
	SystemID       string     `json:"system_id"`
}

type Stats struct {
	Total        int `json:"total"`
	Online       int `json:"online"`
	Offline      int `json:"offline"`
	NotConnected int `json:"notConnected"`
}

type Listing struct {
	Systems []SystemRow
	Stats   Stats
}

// RecordHeartbeat upserts the presence row for the reporting machine. All
// descriptive fields are overwritten with the latest values.
func (s *Service) RecordHeartbeat(ctx context.Context, hb Heartbeat) error {
	if err := requireKey(hb.CompanyName, hb.EmployeeID, hb.MachineID); err != nil {
		return err
	}

	now := s.clock.Now()
	row := models.ConnectedSystem{
		CompanyName:    hb.CompanyName,
		EmployeeID:     hb.EmployeeID,
		DisplayName:    hb.DisplayName,
		Department:     hb.Department,
		MachineID:      hb.MachineID,
		SystemID:       hb.SystemID,
		MachineName:    hb.MachineName,
		IPAddress:      hb.IPAddress,
		OSVersion:      hb.OSVersion,
		AppVersion:     orDefault(hb.AppVersion, "1.0"),
		LastHeartbeat:  &now,
		FirstConnected: &now,
		IsOnline:       true,
		Status:         orDefault(hb.Status, "active"),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "company_name"}, {Name: "employee_id"}, {Name: "machine_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name", "department", "system_id", "machine_name", "ip_address",
			"os_version", "app_version", "last_heartbeat", "is_online", "status",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert heartbeat: %w", err)
	}
	return nil
}

// Disconnect marks a machine offline after a graceful agent shutdown.
func (s *Service) Disconnect(ctx context.Context, company, employeeID, machineID string) error {
	if err := requireKey(company, employeeID, machineID); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Model(&models.ConnectedSystem{}).
		Where("company_name = ? AND employee_id = ? AND machine_id = ?", company, employeeID, machineID).
		Updates(map[string]any{"is_online": false, "last_heartbeat": s.clock.Now()}).Error
	if err != nil {
		return fmt.Errorf("failed to disconnect system: %w", err)
	}
	return nil
}

// Sweep forces is_online=false on every row whose heartbeat is older than
// the staleness window and returns how many rows flipped.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().Add(-s.staleAfter)
	res := s.db.WithContext(ctx).Model(&models.ConnectedSystem{}).
		Where("is_online = ? AND last_heartbeat < ?", true, cutoff).
		Update("is_online", false)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to sweep stale systems: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.log.Info("Marked stale systems offline", zap.Int64("count", res.RowsAffected), zap.Time("cutoff", cutoff))
	}
	return res.RowsAffected, nil
}

// ListSystems returns every active employee of the company (all companies
// when company is empty) with its presence. Stats always describe the full
// set; includeOffline=false only trims the returned rows.
func (s *Service) ListSystems(ctx context.Context, company string, includeOffline bool) (*Listing, error) {
	if _, err := s.Sweep(ctx); err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Table("company_employees AS ce").
		Select(`COALESCE(cs.id, 0) AS id,
			ce.company_name,
			ce.employee_id,
			ce.full_name AS display_name,
			ce.department,
			COALESCE(cs.machine_id, '') AS machine_id,
			COALESCE(cs.machine_name, ?) AS machine_name,
			COALESCE(cs.ip_address, '-') AS ip_address,
			COALESCE(cs.os_version, '-') AS os_version,
			COALESCE(cs.app_version, '-') AS app_version,
			cs.last_heartbeat,
			cs.first_connected,
			COALESCE(cs.is_online, 0) AS is_online,
			COALESCE(cs.status, ?) AS status,
			COALESCE(cs.system_id, '') AS system_id`, notConnectedMachine, notConnectedStatus).
		Joins("LEFT JOIN connected_systems cs ON cs.employee_id = ce.employee_id AND cs.company_name = ce.company_name").
		Where("ce.is_active = ?", true)

	if isAllCompanies(company) {
		q = q.Order("COALESCE(cs.is_online, 0) DESC").Order("ce.company_name ASC").Order("ce.full_name ASC")
	} else {
		q = q.Where("ce.company_name = ?", company).Order("COALESCE(cs.is_online, 0) DESC").Order("ce.full_name ASC")
	}

	var rows []SystemRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list connected systems: %w", err)
	}

	listing := &Listing{Systems: make([]SystemRow, 0, len(rows)), Stats: Stats{Total: len(rows)}}
	for _, r := range rows {
		switch {
		case r.IsOnline:
			listing.Stats.Online++
		case r.MachineID != "":
			listing.Stats.Offline++
		default:
			listing.Stats.NotConnected++
		}
		if includeOffline || r.IsOnline {
			listing.Systems = append(listing.Systems, r)
		}
	}
	return listing, nil
}

// GetSystem looks a system up by machine_id, falling back to system_id.
func (s *Service) GetSystem(ctx context.Context, id string) (mo.Option[*models.ConnectedSystem], error) {
	if err := core.Required(core.Field{Name: "machine_id", Value: id}); err != nil {
		return mo.None[*models.ConnectedSystem](), err
	}

	for _, column := range []string{"machine_id", "system_id"} {
		var rows []models.ConnectedSystem
		err := s.db.WithContext(ctx).Where(column+" = ?", id).Limit(1).Find(&rows).Error
		if err != nil {
			return mo.None[*models.ConnectedSystem](), fmt.Errorf("failed to get system by %s: %w", column, err)
		}
		if len(rows) > 0 {
			return mo.Some(&rows[0]), nil
		}
	}
	return mo.None[*models.ConnectedSystem](), nil
}

func requireKey(company, employeeID, machineID string) error {
	return core.Required(
		core.Field{Name: "company_name", Value: company},
		core.Field{Name: "employee_id", Value: employeeID},
		core.Field{Name: "machine_id", Value: machineID},
	)
}

// demoCompany is the company of the bundled demo admin account, which sees
// every company.
const demoCompany = "Demo Company"

func isAllCompanies(company string) bool {
	return company == "" || company == "undefined" || company == demoCompany
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
