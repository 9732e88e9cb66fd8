package handlers

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"attendance-monitor/internal/commands"
	"attendance-monitor/internal/core"
	"attendance-monitor/internal/models"
	"attendance-monitor/internal/presence"
)

func (h *MonitorHandler) systemActions() map[string]action {
	systemsFallback := &reply{Data: []any{}, Stats: presence.Stats{}}
	return map[string]action{
		"system_heartbeat":          write(h.heartbeat),
		"system_disconnect":         write(h.disconnect),
		"get_connected_systems":     read(h.connectedSystems, systemsFallback),
		"get_systems":               read(h.connectedSystems, systemsFallback),
		"get_system_info":           read(h.systemInfo, nil),
		"send_system_command":       write(h.sendCommand),
		"get_pending_commands":      read(h.pendingCommands, emptyList),
		"update_command_status":     write(h.updateCommandStatus),
		"get_command_history":       read(h.commandHistory, emptyList),
		"get_command":               read(h.command, nil),
		"toggle_system_restriction": write(h.toggleRestriction),
		"set_full_restriction":      write(h.fullRestriction),
		"get_system_restrictions":   read(h.systemRestrictions, emptyList),
	}
}

func (h *MonitorHandler) heartbeat(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	err := h.svc.Presence.RecordHeartbeat(ctx, presence.Heartbeat{
		CompanyName: p.String("company_name"),
		EmployeeID:  p.String("employee_id"),
		DisplayName: p.String("display_name"),
		Department:  p.String("department"),
		MachineID:   p.String("machine_id"),
		SystemID:    p.String("system_id"),
		MachineName: p.String("machine_name"),
		IPAddress:   p.First("ip_address", "client_ip"),
		OSVersion:   p.String("os_version"),
		AppVersion:  p.String("app_version"),
		Status:      p.String("status"),
	})
	if err != nil {
		return nil, err
	}
	return withMessage("Heartbeat received")
}

func (h *MonitorHandler) disconnect(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	err := h.svc.Presence.Disconnect(ctx, p.String("company_name"), p.String("employee_id"), p.String("machine_id"))
	if err != nil {
		return nil, err
	}
	return withMessage("System disconnected")
}

func (h *MonitorHandler) connectedSystems(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	listing, err := h.svc.Presence.ListSystems(ctx, p.String("company_name"), p.Bool("include_offline", true))
	if err != nil {
		return nil, err
	}
	return &reply{Data: list(listing.Systems), Stats: listing.Stats}, nil
}

func (h *MonitorHandler) systemInfo(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	found, err := h.svc.Presence.GetSystem(ctx, p.First("machine_id", "system_id"))
	if err != nil {
		return nil, err
	}
	system, ok := found.Get()
	if !ok {
		return nil, core.NotFound("system")
	}
	return withData(system)
}

func (h *MonitorHandler) sendCommand(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	cmd, err := h.svc.Commands.Enqueue(ctx, commands.EnqueueRequest{
		CompanyName: p.String("company_name"),
		SystemName:  p.String("system_name"),
		CommandType: p.String("command_type"),
		Parameters:  p.RawJSON("parameters"),
		CreatedBy:   p.String("created_by"),
	})
	if err != nil {
		return nil, err
	}
	return &reply{Data: cmd, Message: "Command queued"}, nil
}

func (h *MonitorHandler) pendingCommands(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	cmds, err := h.svc.Commands.PollPending(ctx, p.First("system_name", "machine_id"), p.String("company_name"))
	if err != nil {
		return nil, err
	}
	return withData(list(cmds))
}

func (h *MonitorHandler) updateCommandStatus(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	err := h.svc.Commands.ReportStatus(ctx, idParam(p, "command_id", "id"), models.CommandStatus(p.String("status")), p.String("result"))
	if err != nil {
		return nil, err
	}
	return withMessage("Command status updated")
}

func (h *MonitorHandler) commandHistory(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	cmds, err := h.svc.Commands.History(ctx, p.String("company_name"), p.Int("limit", 0))
	if err != nil {
		return nil, err
	}
	return withData(list(cmds))
}

func (h *MonitorHandler) command(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	id := p.Uint("command_id")
	if id == 0 {
		return nil, core.Invalid("command_id required")
	}
	found, err := h.svc.Commands.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cmd, ok := found.Get()
	if !ok {
		return nil, core.NotFound("command")
	}
	return withData(cmd)
}

func (h *MonitorHandler) toggleRestriction(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	active := p.BoolPtr("is_active")
	activeField := ""
	if active != nil {
		activeField = "set"
	}
	if err := core.Required(
		core.Field{Name: "company_name", Value: p.String("company_name")},
		core.Field{Name: "system_name", Value: p.String("system_name")},
		core.Field{Name: "restriction_type", Value: p.String("restriction_type")},
		core.Field{Name: "is_active", Value: activeField},
	); err != nil {
		return nil, err
	}

	toggle, err := h.svc.Restrictions.SetRestriction(ctx,
		p.String("company_name"), p.String("system_name"), p.String("restriction_type"),
		*active, p.String("changed_by"))
	if err != nil {
		return nil, err
	}
	return &reply{Data: toggle, Message: fmt.Sprintf("Restriction %s %s", toggle.RestrictionType, stateWord(toggle.IsActive))}, nil
}

func (h *MonitorHandler) fullRestriction(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	active := p.Bool("is_active", true)
	toggles, err := h.svc.Restrictions.SetFullRestriction(ctx,
		p.String("company_name"), p.String("system_name"), active, p.String("changed_by"))
	if err != nil {
		return nil, err
	}
	return &reply{Data: toggles, Message: "Full system restriction " + stateWord(active)}, nil
}

func (h *MonitorHandler) systemRestrictions(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	rows, err := h.svc.Restrictions.List(ctx, p.String("company_name"), p.String("system_name"))
	if err != nil {
		return nil, err
	}
	return withData(list(rows))
}

func stateWord(active bool) string {
	if active {
		return "enabled"
	}
	return "disabled"
}
