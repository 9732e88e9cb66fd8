package restrictions_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"attendance-monitor/internal/clock"
	"attendance-monitor/internal/commands"
	"attendance-monitor/internal/core"
	"attendance-monitor/internal/database/dbtest"
	"attendance-monitor/internal/models"
	"attendance-monitor/internal/restrictions"
)

type fixture struct {
	db   *gorm.DB
	cmds *commands.Service
	svc  *restrictions.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := dbtest.New(t)
	fake := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	cmds := commands.NewService(db, fake, nil)
	return fixture{db: db, cmds: cmds, svc: restrictions.NewService(db, cmds, fake, nil)}
}

func TestCommandFor(t *testing.T) {
	tests := []struct {
		restriction string
		active      bool
		want        string
	}{
		{"cmd", true, "block_cmd"},
		{"cmd", false, "unblock_cmd"},
		{"powershell", true, "block_powershell"},
		{"copy_paste", false, "unblock_copy_paste"},
		{"task_manager", true, "block_task_manager"},
		{"ip_change", true, "lock_ip"},
		{"ip_change", false, "unlock_ip"},
		{"usb", true, "block_usb"},
		{"usb", false, "unblock_usb"},
	}
	for _, tt := range tests {
		t.Run(tt.restriction, func(t *testing.T) {
			assert.Equal(t, tt.want, restrictions.CommandFor(tt.restriction, tt.active))
		})
	}
}

func TestSetRestrictionQueuesCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	toggle, err := f.svc.SetRestriction(ctx, "Acme", "M1", "cmd", true, "")
	require.NoError(t, err)
	assert.Equal(t, "block_cmd", toggle.Command)

	pending, err := f.cmds.PollPending(ctx, "M1", "Acme")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "block_cmd", pending[0].CommandType)
	assert.Equal(t, toggle.CommandID, pending[0].ID)

	rows, err := f.svc.List(ctx, "Acme", "M1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsActive)
	assert.Equal(t, "admin", rows[0].ChangedBy)
}

func TestSetRestrictionUpsertsState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetRestriction(ctx, "Acme", "M1", "ip_change", true, "alice")
	require.NoError(t, err)
	_, err = f.svc.SetRestriction(ctx, "Acme", "M1", "ip_change", false, "bob")
	require.NoError(t, err)

	rows, err := f.svc.List(ctx, "Acme", "M1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].IsActive)
	assert.Equal(t, "bob", rows[0].ChangedBy)

	pending, err := f.cmds.PollPending(ctx, "M1", "Acme")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "lock_ip", pending[0].CommandType)
	assert.Equal(t, "unlock_ip", pending[1].CommandType)
	assert.Equal(t, "bob", pending[1].CreatedBy)
}

func TestSetRestrictionValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SetRestriction(context.Background(), "Acme", "M1", "", true, "")
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	var count int64
	require.NoError(t, f.db.Model(&models.ControlCommand{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSetFullRestriction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	toggles, err := f.svc.SetFullRestriction(ctx, "Acme", "M1", true, "")
	require.NoError(t, err)
	require.Len(t, toggles, len(restrictions.KnownTypes)+1)

	pending, err := f.cmds.PollPending(ctx, "M1", "Acme")
	require.NoError(t, err)
	require.Len(t, pending, len(restrictions.KnownTypes)+1)

	for i, restrictionType := range restrictions.KnownTypes {
		assert.Equal(t, restrictions.CommandFor(restrictionType, true), pending[i].CommandType)
	}
	assert.Equal(t, restrictions.FullRestrictionCommand, pending[len(pending)-1].CommandType)

	rows, err := f.svc.List(ctx, "Acme", "M1")
	require.NoError(t, err)
	assert.Len(t, rows, len(restrictions.KnownTypes))
	for _, row := range rows {
		assert.True(t, row.IsActive, row.RestrictionType)
	}

	_, err = f.svc.SetFullRestriction(ctx, "Acme", "M1", false, "")
	require.NoError(t, err)
	pending, err = f.cmds.PollPending(ctx, "M1", "Acme")
	require.NoError(t, err)
	assert.Equal(t, restrictions.RemoveFullRestrictionCommand, pending[len(pending)-1].CommandType)
}

func TestSetFullRestrictionRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.Exec("DROP TABLE system_control_commands").Error)

	_, err := f.svc.SetFullRestriction(ctx, "Acme", "M1", true, "")
	require.Error(t, err)

	var count int64
	require.NoError(t, f.db.Model(&models.SystemRestriction{}).Count(&count).Error)
	assert.Zero(t, count)
}
