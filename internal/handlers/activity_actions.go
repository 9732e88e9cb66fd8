package handlers

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"attendance-monitor/internal/activity"
	"attendance-monitor/internal/core"
)

func (h *MonitorHandler) activityActions() map[string]action {
	return map[string]action{
		"log_web":           write(h.logWeb),
		"log_application":   write(h.logApplication),
		"log_inactivity":    write(h.logInactivity),
		"upload_screenshot": write(h.uploadScreenshot),

		"get_web_logs":         read(h.webLogs, emptyList),
		"get_application_logs": read(h.applicationLogs, emptyList),
		"get_inactivity_logs":  read(h.inactivityLogs, emptyList),
		"get_screenshots":      read(h.screenshots, emptyList),
		"get_screenshot_image": read(h.screenshotImage, nil),
		"get_log_employees":    read(h.logEmployees, emptyList),
	}
}

// source identifies the reporting agent. The caller's address stands in for
// a missing ip_address.
func source(c *gin.Context, p Params) activity.Source {
	ip := p.First("ip_address", "client_ip")
	if ip == "" {
		ip = c.ClientIP()
	}
	return activity.Source{
		CompanyName:     p.String("company_name"),
		SystemName:      p.First("system_name", "machine_name"),
		Username:        p.First("username", "employee_id"),
		DisplayUserName: p.First("display_user_name", "display_name"),
		IPAddress:       ip,
	}
}

func (h *MonitorHandler) logWeb(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	visitTime, err := p.Time("visit_time")
	if err != nil {
		return nil, err
	}
	row, err := h.svc.Activity.LogWeb(ctx, activity.WebVisit{
		Source:          source(c, p),
		BrowserName:     p.String("browser_name"),
		WebsiteURL:      p.First("website_url", "url"),
		PageTitle:       p.String("page_title"),
		Category:        p.String("category"),
		VisitTime:       visitTime,
		DurationSeconds: p.Int("duration_seconds", 0),
	})
	if err != nil {
		return nil, err
	}
	return &reply{Data: row, Message: "Web activity logged"}, nil
}

func (h *MonitorHandler) logApplication(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	start, err := p.Time("start_time")
	if err != nil {
		return nil, err
	}
	end, err := p.TimePtr("end_time")
	if err != nil {
		return nil, err
	}
	row, err := h.svc.Activity.LogApplication(ctx, activity.AppUsage{
		Source:          source(c, p),
		AppName:         p.String("app_name"),
		WindowTitle:     p.String("window_title"),
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: p.Int("duration_seconds", 0),
		IsActive:        p.Bool("is_active", end == nil),
	})
	if err != nil {
		return nil, err
	}
	return &reply{Data: row, Message: "Application usage logged"}, nil
}

func (h *MonitorHandler) logInactivity(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	start, err := p.Time("start_time")
	if err != nil {
		return nil, err
	}
	end, err := p.TimePtr("end_time")
	if err != nil {
		return nil, err
	}
	row, err := h.svc.Activity.LogInactivity(ctx, activity.IdlePeriod{
		Source:          source(c, p),
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: p.Int("duration_seconds", 0),
		Status:          p.String("status"),
	})
	if err != nil {
		return nil, err
	}
	return &reply{Data: row, Message: "Inactivity logged"}, nil
}

func (h *MonitorHandler) uploadScreenshot(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	file, err := c.FormFile("screenshot")
	if err != nil {
		file, err = c.FormFile("file")
	}
	if err != nil {
		return nil, core.Invalid("screenshot file required")
	}
	captured, err := p.Time("capture_time")
	if err != nil {
		return nil, err
	}

	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer f.Close()

	row, err := h.svc.Activity.SaveScreenshot(ctx, activity.ScreenshotUpload{
		Source:       source(c, p),
		Filename:     file.Filename,
		ScreenWidth:  p.Int("screen_width", 0),
		ScreenHeight: p.Int("screen_height", 0),
		CapturedAt:   captured,
	}, f)
	if err != nil {
		return nil, err
	}
	return &reply{Data: row, Message: "Screenshot uploaded"}, nil
}

func logFilter(p Params) activity.LogFilter {
	return activity.LogFilter{
		CompanyName: p.String("company_name"),
		StartDate:   p.String("start_date"),
		EndDate:     p.String("end_date"),
		Search:      p.String("search"),
		EmployeeID:  p.First("employee_id", "employee"),
	}
}

func (h *MonitorHandler) webLogs(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	logs, err := h.svc.Activity.WebLogs(ctx, logFilter(p))
	if err != nil {
		return nil, err
	}
	return withData(list(logs))
}

func (h *MonitorHandler) applicationLogs(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	logs, err := h.svc.Activity.ApplicationLogs(ctx, logFilter(p))
	if err != nil {
		return nil, err
	}
	return withData(list(logs))
}

func (h *MonitorHandler) inactivityLogs(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	logs, err := h.svc.Activity.InactivityLogs(ctx, logFilter(p))
	if err != nil {
		return nil, err
	}
	return withData(list(logs))
}

func (h *MonitorHandler) screenshots(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	shots, err := h.svc.Activity.Screenshots(ctx, logFilter(p))
	if err != nil {
		return nil, err
	}
	return withData(list(shots))
}

func (h *MonitorHandler) screenshotImage(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	img, err := h.svc.Activity.ScreenshotImage(ctx, p.Uint("id"), p.String("company_name"))
	if err != nil {
		return nil, err
	}
	return withData(img)
}

func (h *MonitorHandler) logEmployees(ctx context.Context, c *gin.Context, p Params) (*reply, error) {
	emps, err := h.svc.Activity.LogEmployees(ctx, p.String("company_name"), p.String("log_type"))
	if err != nil {
		return nil, err
	}
	return withData(list(emps))
}
