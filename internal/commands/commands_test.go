package commands_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance-monitor/internal/clock"
	"attendance-monitor/internal/commands"
	"attendance-monitor/internal/core"
	"attendance-monitor/internal/database/dbtest"
	"attendance-monitor/internal/models"
)

func newService(t *testing.T) (*commands.Service, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	return commands.NewService(dbtest.New(t), fake, nil), fake
}

func enqueue(t *testing.T, svc *commands.Service, company, system, cmdType string) *models.ControlCommand {
	t.Helper()
	cmd, err := svc.Enqueue(context.Background(), commands.EnqueueRequest{
		CompanyName: company,
		SystemName:  system,
		CommandType: cmdType,
	})
	require.NoError(t, err)
	return cmd
}

func TestEnqueueDefaults(t *testing.T) {
	svc, _ := newService(t)

	cmd := enqueue(t, svc, "Acme", "M1", "restart")
	assert.NotZero(t, cmd.ID)
	assert.Equal(t, models.CommandStatusPending, cmd.Status)
	assert.Equal(t, "admin", cmd.CreatedBy)
	assert.JSONEq(t, `{}`, string(cmd.Parameters))
	assert.Nil(t, cmd.ExecutedAt)
}

func TestEnqueueKeepsParameters(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cmd, err := svc.Enqueue(ctx, commands.EnqueueRequest{
		CompanyName: "Acme",
		SystemName:  "M1",
		CommandType: "show_message",
		Parameters:  json.RawMessage(`{"message":"hello","timeout":5}`),
		CreatedBy:   "ops",
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, cmd.ID)
	require.NoError(t, err)
	require.True(t, got.IsPresent())
	assert.JSONEq(t, `{"message":"hello","timeout":5}`, string(got.MustGet().Parameters))
	assert.Equal(t, "ops", got.MustGet().CreatedBy)
}

func TestEnqueueValidation(t *testing.T) {
	svc, _ := newService(t)

	tests := []struct {
		name    string
		req     commands.EnqueueRequest
		wantErr string
	}{
		{
			name:    "missing system",
			req:     commands.EnqueueRequest{CompanyName: "Acme", CommandType: "restart"},
			wantErr: "system_name required",
		},
		{
			name:    "missing everything",
			req:     commands.EnqueueRequest{},
			wantErr: "company_name, system_name and command_type required",
		},
		{
			name: "parameters not an object",
			req: commands.EnqueueRequest{
				CompanyName: "Acme", SystemName: "M1", CommandType: "restart",
				Parameters: json.RawMessage(`[1,2]`),
			},
			wantErr: "parameters must be a JSON object",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Enqueue(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, core.IsValidation(err))
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestPollPendingIsFIFOAndNonClaiming(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()

	first := enqueue(t, svc, "Acme", "M1", "restart")
	fake.Advance(time.Second)
	second := enqueue(t, svc, "Acme", "M1", "block_cmd")
	third := enqueue(t, svc, "Acme", "M1", "lock_ip")
	enqueue(t, svc, "Acme", "M2", "restart")
	enqueue(t, svc, "Other", "M1", "restart")

	for i := 0; i < 2; i++ {
		pending, err := svc.PollPending(ctx, "M1", "Acme")
		require.NoError(t, err)
		require.Len(t, pending, 3)
		assert.Equal(t, []uint{first.ID, second.ID, third.ID},
			[]uint{pending[0].ID, pending[1].ID, pending[2].ID})
	}

	all, err := svc.PollPending(ctx, "M1", "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestReportStatus(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()

	cmd := enqueue(t, svc, "Acme", "M1", "restart")
	fake.Advance(5 * time.Second)
	require.NoError(t, svc.ReportStatus(ctx, cmd.ID, models.CommandStatusCompleted, "ok"))

	pending, err := svc.PollPending(ctx, "M1", "Acme")
	require.NoError(t, err)
	assert.Empty(t, pending)

	got, err := svc.Get(ctx, cmd.ID)
	require.NoError(t, err)
	stored := got.MustGet()
	assert.Equal(t, models.CommandStatusCompleted, stored.Status)
	assert.Equal(t, "ok", stored.Result)
	require.NotNil(t, stored.ExecutedAt)
	assert.True(t, stored.ExecutedAt.Equal(fake.Now()))

	// A late report overwrites a terminal one.
	require.NoError(t, svc.ReportStatus(ctx, cmd.ID, models.CommandStatusFailed, "late"))
	got, err = svc.Get(ctx, cmd.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommandStatusFailed, got.MustGet().Status)
	assert.Equal(t, "late", got.MustGet().Result)
}

func TestReportStatusErrors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	cmd := enqueue(t, svc, "Acme", "M1", "restart")

	err := svc.ReportStatus(ctx, 9999, models.CommandStatusCompleted, "")
	assert.True(t, core.IsNotFound(err))
	assert.EqualError(t, err, "command not found")

	err = svc.ReportStatus(ctx, 0, models.CommandStatusCompleted, "")
	assert.True(t, core.IsValidation(err))

	err = svc.ReportStatus(ctx, cmd.ID, models.CommandStatus(strings.Repeat("x", 51)), "")
	assert.True(t, core.IsValidation(err))

	// Agent-defined terminal states are stored as reported.
	require.NoError(t, svc.ReportStatus(ctx, cmd.ID, "success", "done"))
	got, err := svc.Get(ctx, cmd.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommandStatus("success"), got.MustGet().Status)
}

func TestHistory(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()

	var ids []uint
	for i := 0; i < 3; i++ {
		ids = append(ids, enqueue(t, svc, "Acme", "M1", "restart").ID)
		fake.Advance(time.Minute)
	}
	enqueue(t, svc, "Other", "M9", "restart")

	history, err := svc.History(ctx, "Acme", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, ids[2], history[0].ID)
	assert.Equal(t, ids[0], history[2].ID)

	limited, err := svc.History(ctx, "Acme", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	everything, err := svc.History(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, everything, 4)
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 50},
		{-1, 50},
		{10, 10},
		{500, 500},
		{10000, 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, commands.ClampLimit(tt.in))
	}
}

func TestGetMissing(t *testing.T) {
	svc, _ := newService(t)

	got, err := svc.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, got.IsAbsent())
}
