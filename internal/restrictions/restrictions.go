// Package restrictions records admin toggles for endpoint restrictions and
// turns each toggle into a queued command for the target agent.
package restrictions

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"attendance-monitor/internal/clock"
	"attendance-monitor/internal/commands"
	"attendance-monitor/internal/core"
	"attendance-monitor/internal/models"
)

const (
	FullRestrictionCommand       = "full_system_restriction"
	RemoveFullRestrictionCommand = "remove_full_restriction"
)

type commandPair struct {
	block   string
	unblock string
}

// KnownTypes is the fixed order in which a full restriction is applied.
var KnownTypes = []string{
	"cmd",
	"powershell",
	"regedit",
	"copy_paste",
	"software_install",
	"delete",
	"task_manager",
	"control_panel",
	"ip_change",
}

var commandTable = map[string]commandPair{
	"cmd":              {"block_cmd", "unblock_cmd"},
	"powershell":       {"block_powershell", "unblock_powershell"},
	"regedit":          {"block_regedit", "unblock_regedit"},
	"copy_paste":       {"block_copy_paste", "unblock_copy_paste"},
	"software_install": {"block_software_install", "unblock_software_install"},
	"delete":           {"block_delete", "unblock_delete"},
	"task_manager":     {"block_task_manager", "unblock_task_manager"},
	"control_panel":    {"block_control_panel", "unblock_control_panel"},
	"ip_change":        {"lock_ip", "unlock_ip"},
}

// CommandFor maps a restriction toggle to the command an agent executes.
// Types outside the table fall back to block_<type> / unblock_<type>.
func CommandFor(restrictionType string, active bool) string {
	pair, ok := commandTable[restrictionType]
	if !ok {
		pair = commandPair{"block_" + restrictionType, "unblock_" + restrictionType}
	}
	if active {
		return pair.block
	}
	return pair.unblock
}

type Service struct {
	db       *gorm.DB
	commands *commands.Service
	clock    clock.Clock
	log      *zap.Logger
}

func NewService(db *gorm.DB, cmds *commands.Service, c clock.Clock, log *zap.Logger) *Service {
	if c == nil {
		c = clock.Real()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, commands: cmds, clock: c, log: log}
}

// Toggle is the outcome of one restriction change.
type Toggle struct {
	RestrictionType string `json:"restriction_type"`
	IsActive        bool   `json:"is_active"`
	Command         string `json:"command"`
	CommandID       uint   `json:"command_id"`
}

// SetRestriction upserts the restriction state and enqueues the matching
// command in one transaction; either both land or neither does.
func (s *Service) SetRestriction(ctx context.Context, company, system, restrictionType string, active bool, changedBy string) (*Toggle, error) {
	if err := core.Required(
		core.Field{Name: "company_name", Value: company},
		core.Field{Name: "system_name", Value: system},
		core.Field{Name: "restriction_type", Value: restrictionType},
	); err != nil {
		return nil, err
	}

	var toggle *Toggle
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		toggle, err = s.apply(ctx, tx, company, system, restrictionType, active, changedBy)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toggle, nil
}

// SetFullRestriction toggles every known restriction type and then queues a
// single full-restriction command, all in one transaction.
func (s *Service) SetFullRestriction(ctx context.Context, company, system string, active bool, changedBy string) ([]Toggle, error) {
	if err := core.Required(
		core.Field{Name: "company_name", Value: company},
		core.Field{Name: "system_name", Value: system},
	); err != nil {
		return nil, err
	}

	toggles := make([]Toggle, 0, len(KnownTypes)+1)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, restrictionType := range KnownTypes {
			toggle, err := s.apply(ctx, tx, company, system, restrictionType, active, changedBy)
			if err != nil {
				return err
			}
			toggles = append(toggles, *toggle)
		}

		commandType := RemoveFullRestrictionCommand
		if active {
			commandType = FullRestrictionCommand
		}
		cmd, err := s.commands.WithTx(tx).Enqueue(ctx, commands.EnqueueRequest{
			CompanyName: company,
			SystemName:  system,
			CommandType: commandType,
			CreatedBy:   changedBy,
		})
		if err != nil {
			return err
		}
		toggles = append(toggles, Toggle{
			RestrictionType: "full",
			IsActive:        active,
			Command:         commandType,
			CommandID:       cmd.ID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Full restriction toggled",
		zap.String("company_name", company),
		zap.String("system_name", system),
		zap.Bool("active", active),
	)
	return toggles, nil
}

// List returns the restriction rows for one system.
func (s *Service) List(ctx context.Context, company, system string) ([]models.SystemRestriction, error) {
	if err := core.Required(core.Field{Name: "system_name", Value: system}); err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Where("system_name = ?", system)
	if company != "" {
		q = q.Where("company_name = ?", company)
	}

	rows := []models.SystemRestriction{}
	if err := q.Order("restriction_type ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list restrictions: %w", err)
	}
	return rows, nil
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, company, system, restrictionType string, active bool, changedBy string) (*Toggle, error) {
	if changedBy == "" {
		changedBy = "admin"
	}

	row := models.SystemRestriction{
		CompanyName:     company,
		SystemName:      system,
		RestrictionType: restrictionType,
		IsActive:        active,
		ChangedBy:       changedBy,
		ChangedAt:       s.clock.Now(),
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_name"}, {Name: "system_name"}, {Name: "restriction_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_active", "changed_by", "changed_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save restriction %s: %w", restrictionType, err)
	}

	commandType := CommandFor(restrictionType, active)
	cmd, err := s.commands.WithTx(tx).Enqueue(ctx, commands.EnqueueRequest{
		CompanyName: company,
		SystemName:  system,
		CommandType: commandType,
		CreatedBy:   changedBy,
	})
	if err != nil {
		return nil, err
	}

	return &Toggle{
		RestrictionType: restrictionType,
		IsActive:        active,
		Command:         commandType,
		CommandID:       cmd.ID,
	}, nil
}
