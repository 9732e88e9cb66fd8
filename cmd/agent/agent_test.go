package main

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"attendance-monitor/internal/agentclient"
)

type report struct {
	id     uint
	status string
	result string
}

type fakeQueue struct {
	pending   []agentclient.Command
	reports   []report
	reportErr error
}

func (q *fakeQueue) PendingCommands(context.Context, agentclient.Identity) ([]agentclient.Command, error) {
	return q.pending, nil
}

func (q *fakeQueue) ReportCommand(_ context.Context, id uint, status, result string) error {
	if q.reportErr != nil {
		return q.reportErr
	}
	q.reports = append(q.reports, report{id, status, result})
	return nil
}

func TestProcessCommands(t *testing.T) {
	q := &fakeQueue{pending: []agentclient.Command{
		{ID: 1, CommandType: "show_message", Parameters: json.RawMessage(`{"title":"IT","message":"Reboot tonight"}`)},
		{ID: 2, CommandType: "restart"},
		{ID: 3, CommandType: "show_message", Parameters: json.RawMessage(`not json`)},
	}}

	require.NoError(t, processCommands(context.Background(), q, agentclient.Identity{}, zap.NewNop()))
	assert.Equal(t, []report{
		{1, "completed", "message shown"},
		{2, "failed", "unsupported command"},
		{3, "failed", "invalid parameters"},
	}, q.reports)
}

func TestProcessCommandsStopsOnReportError(t *testing.T) {
	q := &fakeQueue{
		pending:   []agentclient.Command{{ID: 9, CommandType: "restart"}},
		reportErr: errors.New("connection refused"),
	}
	err := processCommands(context.Background(), q, agentclient.Identity{}, zap.NewNop())
	assert.ErrorContains(t, err, "failed to report command 9")
}

type usageCall struct {
	usage  agentclient.AppUsage
	ctxErr error
}

type fakeUsage struct{ calls []usageCall }

func (f *fakeUsage) LogApplication(ctx context.Context, _ agentclient.Identity, usage agentclient.AppUsage) error {
	f.calls = append(f.calls, usageCall{usage: usage, ctxErr: ctx.Err()})
	return nil
}

func TestWindowTrackerSessions(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	titles := []string{"main.go - Code", "main.go - Code", "Inbox - Mail"}
	now := base
	usage := &fakeUsage{}
	w := &windowTracker{
		usage: usage,
		title: func() string { title := titles[0]; titles = titles[1:]; return title },
		now:   func() time.Time { return now },
		log:   zap.NewNop(),
	}

	ctx := context.Background()
	w.poll(ctx)
	now = base.Add(time.Minute)
	w.poll(ctx)
	assert.Empty(t, usage.calls)

	now = base.Add(90 * time.Second)
	w.poll(ctx)
	require.Len(t, usage.calls, 1)
	got := usage.calls[0].usage
	assert.Equal(t, "Code", got.AppName)
	assert.Equal(t, "main.go - Code", got.WindowTitle)
	assert.Equal(t, base, got.StartTime)
	assert.Equal(t, 90, got.DurationSeconds)
}

func TestTrackWindowsFlushesOnShutdown(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	now := base
	usage := &fakeUsage{}
	w := &windowTracker{
		usage: usage,
		title: func() string { return "Inbox - Mail" },
		now:   func() time.Time { return now },
		log:   zap.NewNop(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.poll(ctx)
	now = base.Add(2 * time.Minute)
	trackWindows(ctx, time.Hour, w)

	require.Len(t, usage.calls, 1)
	assert.NoError(t, usage.calls[0].ctxErr)
	assert.Equal(t, "Mail", usage.calls[0].usage.AppName)
	assert.Equal(t, 120, usage.calls[0].usage.DurationSeconds)
}

func TestAppNameFromTitle(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"main.go - attendance-monitor - Visual Studio Code", "Visual Studio Code"},
		{"Inbox - Mozilla Thunderbird", "Mozilla Thunderbird"},
		{"Terminal", "Terminal"},
		{"trailing - ", "trailing -"},
	}
	for _, tc := range tests {
		t.Run(tc.title, func(t *testing.T) {
			assert.Equal(t, tc.want, appNameFromTitle(tc.title))
		})
	}
}

func TestInstanceLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks", "agent.lock")

	first, err := acquireInstanceLock(path)
	require.NoError(t, err)

	_, err = acquireInstanceLock(path)
	assert.ErrorIs(t, err, errAlreadyRunning)

	require.NoError(t, first.Unlock())
	again, err := acquireInstanceLock(path)
	require.NoError(t, err)
	require.NoError(t, again.Unlock())
}

func TestGetSeconds(t *testing.T) {
	t.Setenv("HEARTBEAT_INTERVAL_SEC", "15")
	t.Setenv("COMMAND_POLL_INTERVAL_SEC", "-3")
	assert.Equal(t, 15*time.Second, getSeconds("HEARTBEAT_INTERVAL_SEC", 30))
	assert.Equal(t, 10*time.Second, getSeconds("COMMAND_POLL_INTERVAL_SEC", 10))
	assert.Equal(t, time.Minute, getSeconds("SCREENSHOT_INTERVAL_SEC_UNSET", 60))
}
