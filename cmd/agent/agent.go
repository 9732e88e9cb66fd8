package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/kbinani/screenshot"
	"go.uber.org/zap"

	"attendance-monitor/internal/agentclient"
)

const (
	statusCompleted = "completed"
	statusFailed    = "failed"

	shutdownTimeout = 5 * time.Second
)

type agent struct {
	client *agentclient.Client
	id     agentclient.Identity
	cfg    agentConfig
	log    *zap.Logger
}

// run starts every background task and blocks until ctx is cancelled. On the
// way out the agent punches out and tells the server it is going offline.
func (a *agent) run(ctx context.Context) {
	a.punchIn(ctx)

	tasks := []func(context.Context){
		a.heartbeatLoop,
		a.commandLoop,
		a.windowLoop,
		a.screenshotLoop,
	}
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task func(context.Context)) {
			defer wg.Done()
			task(ctx)
		}(task)
	}
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.client.PunchOut(shutdownCtx, a.id, 0); err != nil {
		a.log.Warn("Punch out failed", zap.Error(err))
	}
	if err := a.client.Disconnect(shutdownCtx, a.id); err != nil {
		a.log.Warn("Disconnect failed", zap.Error(err))
	}
}

func (a *agent) punchIn(ctx context.Context) {
	err := a.client.PunchIn(ctx, a.id)
	var apiErr *agentclient.APIError
	if errors.As(err, &apiErr) && strings.Contains(apiErr.Message, "already punched in") {
		return
	}
	if err != nil {
		a.log.Warn("Punch in failed", zap.Error(err))
	}
}

// every runs fn immediately and then on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		fn(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *agent) heartbeatLoop(ctx context.Context) {
	every(ctx, a.cfg.HeartbeatInterval, func(ctx context.Context) {
		if err := a.client.Heartbeat(ctx, a.id, "active"); err != nil && ctx.Err() == nil {
			a.log.Warn("Heartbeat failed", zap.Error(err))
		}
	})
}

func (a *agent) commandLoop(ctx context.Context) {
	every(ctx, a.cfg.CommandPollInterval, func(ctx context.Context) {
		if err := processCommands(ctx, a.client, a.id, a.log); err != nil && ctx.Err() == nil {
			a.log.Warn("Command poll failed", zap.Error(err))
		}
	})
}

type commandQueue interface {
	PendingCommands(ctx context.Context, id agentclient.Identity) ([]agentclient.Command, error)
	ReportCommand(ctx context.Context, commandID uint, status, result string) error
}

// processCommands executes and acknowledges every pending command in order.
// A failed acknowledgement leaves the command pending for the next poll.
func processCommands(ctx context.Context, queue commandQueue, id agentclient.Identity, log *zap.Logger) error {
	cmds, err := queue.PendingCommands(ctx, id)
	if err != nil {
		return err
	}
	for _, cmd := range cmds {
		status, result := execute(cmd, log)
		if err := queue.ReportCommand(ctx, cmd.ID, status, result); err != nil {
			return fmt.Errorf("failed to report command %d: %w", cmd.ID, err)
		}
	}
	return nil
}

type messageParams struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Text    string `json:"text"`
}

func execute(cmd agentclient.Command, log *zap.Logger) (string, string) {
	switch cmd.CommandType {
	case "show_message":
		var p messageParams
		if len(cmd.Parameters) > 0 {
			if err := json.Unmarshal(cmd.Parameters, &p); err != nil {
				return statusFailed, "invalid parameters"
			}
		}
		msg := p.Message
		if msg == "" {
			msg = p.Text
		}
		log.Info("Message from administrator",
			zap.Uint("command_id", cmd.ID),
			zap.String("title", p.Title),
			zap.String("message", msg),
		)
		return statusCompleted, "message shown"
	default:
		log.Info("Ignoring unsupported command", zap.Uint("command_id", cmd.ID), zap.String("command_type", cmd.CommandType))
		return statusFailed, "unsupported command"
	}
}

// windowLoop reports how long each foreground window stayed focused.
func (a *agent) windowLoop(ctx context.Context) {
	tracker := &windowTracker{
		usage: a.client,
		id:    a.id,
		title: getActiveWindowTitle,
		now:   time.Now,
		log:   a.log,
	}
	trackWindows(ctx, a.cfg.WindowPollInterval, tracker)
}

type usageLogger interface {
	LogApplication(ctx context.Context, id agentclient.Identity, usage agentclient.AppUsage) error
}

// windowTracker turns foreground window changes into application sessions.
type windowTracker struct {
	usage usageLogger
	id    agentclient.Identity
	title func() string
	now   func() time.Time
	log   *zap.Logger

	current string
	since   time.Time
}

func (w *windowTracker) poll(ctx context.Context) {
	title := w.title()
	if title == w.current {
		return
	}
	now := w.now()
	w.flush(ctx, now)
	w.current, w.since = title, now
}

func (w *windowTracker) flush(ctx context.Context, until time.Time) {
	if w.current == "" {
		return
	}
	end := until.UTC()
	err := w.usage.LogApplication(ctx, w.id, agentclient.AppUsage{
		AppName:         appNameFromTitle(w.current),
		WindowTitle:     w.current,
		StartTime:       w.since,
		EndTime:         &end,
		DurationSeconds: int(until.Sub(w.since) / time.Second),
	})
	if err != nil && ctx.Err() == nil {
		w.log.Warn("Application log failed", zap.Error(err))
	}
}

// trackWindows polls until ctx is done, then reports the open session on a
// fresh context so the last interval is not lost.
func trackWindows(ctx context.Context, interval time.Duration, w *windowTracker) {
	every(ctx, interval, w.poll)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	w.flush(shutdownCtx, w.now())
}

// appNameFromTitle takes the part after the last " - ", which is where most
// desktop applications put their own name.
func appNameFromTitle(title string) string {
	if i := strings.LastIndex(title, " - "); i >= 0 {
		if name := strings.TrimSpace(title[i+3:]); name != "" {
			return name
		}
	}
	return strings.TrimSpace(title)
}

func (a *agent) screenshotLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.ScreenshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.captureDisplays(ctx)
		}
	}
}

func (a *agent) captureDisplays(ctx context.Context) {
	n := screenshot.NumActiveDisplays()
	for i := 0; i < n; i++ {
		bounds := screenshot.GetDisplayBounds(i)
		img, err := screenshot.CaptureRect(bounds)
		if err != nil {
			a.log.Debug("Screen capture failed", zap.Int("display", i), zap.Error(err))
			continue
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			a.log.Warn("Failed to encode screenshot", zap.Error(err))
			continue
		}

		filename := fmt.Sprintf("screen_display_%d.png", i)
		if err := a.client.UploadScreenshot(ctx, a.id, filename, buf.Bytes(), bounds.Dx(), bounds.Dy()); err != nil && ctx.Err() == nil {
			a.log.Warn("Screenshot upload failed", zap.Int("display", i), zap.Error(err))
		}
	}
}
