// Package commands is the durable queue between the dashboard and agents.
// Commands are inserted as pending and stay there until an agent reports a
// status; agents poll, nothing is pushed.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samber/mo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"attendance-monitor/internal/clock"
	"attendance-monitor/internal/core"
	"attendance-monitor/internal/models"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500

	defaultCreatedBy = "admin"
	maxStatusLen     = 50
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

// WithTx returns a copy of the service bound to tx, so enqueues can share a
// transaction with other writes.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx, clock: s.clock, log: s.log}
}

type EnqueueRequest struct {
	CompanyName string
	SystemName  string
	CommandType string
	Parameters  json.RawMessage
	CreatedBy   string
}

// Enqueue stores a new pending command. Any command type is accepted;
// parameters must be a JSON object when present.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (*models.ControlCommand, error) {
	if err := core.Required(
		core.Field{Name: "company_name", Value: req.CompanyName},
		core.Field{Name: "system_name", Value: req.SystemName},
		core.Field{Name: "command_type", Value: req.CommandType},
	); err != nil {
		return nil, err
	}

	params, err := normalizeParameters(req.Parameters)
	if err != nil {
		return nil, err
	}

	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = defaultCreatedBy
	}

	cmd := &models.ControlCommand{
		CompanyName: req.CompanyName,
		SystemName:  req.SystemName,
		CommandType: req.CommandType,
		Parameters:  params,
		Status:      models.CommandStatusPending,
		CreatedBy:   createdBy,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(cmd).Error; err != nil {
		return nil, fmt.Errorf("failed to enqueue command: %w", err)
	}

	s.log.Info("Command queued",
		zap.Uint("command_id", cmd.ID),
		zap.String("company_name", cmd.CompanyName),
		zap.String("system_name", cmd.SystemName),
		zap.String("command_type", cmd.CommandType),
	)
	return cmd, nil
}

// PollPending returns the pending commands addressed to systemName, oldest
// first. Polling does not claim anything; the same rows come back until a
// status is reported.
func (s *Service) PollPending(ctx context.Context, systemName, company string) ([]models.ControlCommand, error) {
	if err := core.Required(core.Field{Name: "system_name", Value: systemName}); err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).
		Where("system_name = ? AND status = ?", systemName, models.CommandStatusPending)
	if company != "" {
		q = q.Where("company_name = ?", company)
	}

	cmds := []models.ControlCommand{}
	if err := q.Order("created_at ASC").Order("id ASC").Find(&cmds).Error; err != nil {
		return nil, fmt.Errorf("failed to poll commands: %w", err)
	}
	return cmds, nil
}

// ReportStatus records an agent's outcome. Statuses are agent-defined
// ("completed", "failed", "success", ...) and any status may overwrite any
// other; the last report wins.
func (s *Service) ReportStatus(ctx context.Context, id uint, status models.CommandStatus, result string) error {
	if id == 0 || status == "" {
		return core.Invalid("command_id and status required")
	}
	if len(status) > maxStatusLen {
		return core.Invalid("status must be at most %d characters", maxStatusLen)
	}

	res := s.db.WithContext(ctx).Model(&models.ControlCommand{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      status,
			"result":      result,
			"executed_at": s.clock.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update command status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return core.NotFound("command")
	}

	s.log.Info("Command status reported",
		zap.Uint("command_id", id),
		zap.String("status", string(status)),
	)
	return nil
}

// History lists commands newest first. An empty company lists every company.
func (s *Service) History(ctx context.Context, company string, limit int) ([]models.ControlCommand, error) {
	q := s.db.WithContext(ctx).Model(&models.ControlCommand{})
	if company != "" {
		q = q.Where("company_name = ?", company)
	}

	cmds := []models.ControlCommand{}
	err := q.Order("created_at DESC").Order("id DESC").Limit(ClampLimit(limit)).Find(&cmds).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get command history: %w", err)
	}
	return cmds, nil
}

func (s *Service) Get(ctx context.Context, id uint) (mo.Option[models.ControlCommand], error) {
	var cmd models.ControlCommand
	err := s.db.WithContext(ctx).First(&cmd, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return mo.None[models.ControlCommand](), nil
	}
	if err != nil {
		return mo.None[models.ControlCommand](), fmt.Errorf("failed to get command: %w", err)
	}
	return mo.Some(cmd), nil
}

// ClampLimit applies the history default and ceiling.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

func normalizeParameters(raw json.RawMessage) (datatypes.JSON, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return datatypes.JSON("{}"), nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, core.Invalid("parameters must be a JSON object")
	}
	return datatypes.JSON(raw), nil
}
