// Package agentclient speaks the agent half of the dashboard API.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const apiPath = "/api"

// APIError is a response with success=false.
type APIError struct {
	Action     string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status: %d)", e.Action, e.Message, e.StatusCode)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// Identity describes the machine and employee an agent reports for.
type Identity struct {
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
}

func (id Identity) fields() map[string]any {
	return map[string]any{
		"company_name": id.CompanyName,
		"employee_id":  id.EmployeeID,
		"display_name": id.DisplayName,
		"machine_id":   id.MachineID,
		"ip_address":   id.IPAddress,
	}
}

type Command struct {
	ID          uint            `json:"id"`
	CommandType string          `json:"command_type"`
	Parameters  json.RawMessage `json:"parameters"`
	Status      string          `json:"status"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

type AppUsage struct {
	AppName         string
	WindowTitle     string
	StartTime       time.Time
	EndTime         *time.Time
	DurationSeconds int
}

type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{httpClient: client, logger: logger}
}

func (c *Client) Heartbeat(ctx context.Context, id Identity, status string) error {
	body := id.fields()
	body["department"] = id.Department
	body["system_id"] = id.SystemID
	body["machine_name"] = id.MachineName
	body["os_version"] = id.OSVersion
	body["app_version"] = id.AppVersion
	body["status"] = status
	return c.post(ctx, "system_heartbeat", body, nil)
}

func (c *Client) Disconnect(ctx context.Context, id Identity) error {
	return c.post(ctx, "system_disconnect", id.fields(), nil)
}

// PendingCommands returns the commands queued for the machine, oldest first.
// The same commands come back until they are reported.
func (c *Client) PendingCommands(ctx context.Context, id Identity) ([]Command, error) {
	var cmds []Command
	err := c.get(ctx, "get_pending_commands", map[string]string{
		"system_name":  id.MachineID,
		"company_name": id.CompanyName,
	}, &cmds)
	if err != nil {
		return nil, err
	}
	return cmds, nil
}

func (c *Client) ReportCommand(ctx context.Context, commandID uint, status, result string) error {
	return c.post(ctx, "update_command_status", map[string]any{
		"command_id": commandID,
		"status":     status,
		"result":     result,
	}, nil)
}

func (c *Client) LogApplication(ctx context.Context, id Identity, usage AppUsage) error {
	body := id.fields()
	body["username"] = id.EmployeeID
	body["display_user_name"] = id.DisplayName
	body["system_name"] = id.MachineName
	body["app_name"] = usage.AppName
	body["window_title"] = usage.WindowTitle
	body["duration_seconds"] = usage.DurationSeconds
	if !usage.StartTime.IsZero() {
		body["start_time"] = usage.StartTime.UTC().Format(time.RFC3339)
	}
	if usage.EndTime != nil {
		body["end_time"] = usage.EndTime.UTC().Format(time.RFC3339)
	}
	return c.post(ctx, "log_application", body, nil)
}

func (c *Client) UploadScreenshot(ctx context.Context, id Identity, filename string, image []byte, width, height int) error {
	var env envelope
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("action", "upload_screenshot").
		SetFormData(map[string]string{
			"company_name":      id.CompanyName,
			"username":          id.EmployeeID,
			"display_user_name": id.DisplayName,
			"system_name":       id.MachineName,
			"ip_address":        id.IPAddress,
			"screen_width":      strconv.Itoa(width),
			"screen_height":     strconv.Itoa(height),
		}).
		SetFileReader("screenshot", filename, bytes.NewReader(image)).
		SetResult(&env).
		SetError(&env).
		Post(apiPath)
	return c.finish("upload_screenshot", resp, err, &env, nil)
}

func (c *Client) PunchIn(ctx context.Context, id Identity) error {
	body := id.fields()
	body["system_name"] = id.MachineName
	return c.post(ctx, "punch_in", body, nil)
}

func (c *Client) PunchOut(ctx context.Context, id Identity, breakSeconds int) error {
	body := id.fields()
	body["break_duration_seconds"] = breakSeconds
	return c.post(ctx, "punch_out", body, nil)
}

func (c *Client) post(ctx context.Context, action string, body map[string]any, out any) error {
	var env envelope
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("action", action).
		SetBody(body).
		SetResult(&env).
		SetError(&env).
		Post(apiPath)
	return c.finish(action, resp, err, &env, out)
}

func (c *Client) get(ctx context.Context, action string, query map[string]string, out any) error {
	var env envelope
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("action", action).
		SetQueryParams(query).
		SetResult(&env).
		SetError(&env).
		Get(apiPath)
	return c.finish(action, resp, err, &env, out)
}

func (c *Client) finish(action string, resp *resty.Response, err error, env *envelope, out any) error {
	if err != nil {
		c.logger.Warn("API call failed", zap.String("action", action), zap.Error(err))
		return fmt.Errorf("failed to call %s: %w", action, err)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = resp.Status()
		}
		return &APIError{Action: action, StatusCode: resp.StatusCode(), Message: msg}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", action, err)
		}
	}
	return nil
}
