package models

import (
	"time"

	"gorm.io/datatypes"
)

type ActivationKey struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ActivationKey string    `gorm:"uniqueIndex" json:"activation_key"`
	CompanyName   string    `json:"company_name"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

type CompanyUser struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Username        string    `json:"username"`
	PasswordHash    string    `json:"-"`
	FullName        string    `json:"full_name"`
	Email           string    `json:"email"`
	RoleID          int       `json:"role_id"`
	CompanyName     string    `json:"company_name"`
	IsActive        bool      `json:"is_active"`
	ActivationKeyID *uint     `json:"activation_key_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// Role maps role_id 1 to admin; everything else is a regular user.
func (u CompanyUser) Role() string {
	if u.RoleID == 1 {
		return "admin"
	}
	return "user"
}

type Employee struct {
	ID                              uint      `gorm:"primaryKey" json:"id"`
	CompanyName                     string    `json:"company_name"`
	EmployeeID                      string    `json:"employee_id"`
	FullName                        string    `json:"full_name"`
	Email                           string    `json:"email"`
	Phone                           string    `json:"phone"`
	Department                      string    `json:"department"`
	Designation                     string    `json:"designation"`
	IsActive                        bool      `json:"is_active"`
	LunchDuration                   int       `json:"lunch_duration"`
	SignificantIdleThresholdMinutes int       `json:"significant_idle_threshold_minutes"`
	CreatedAt                       time.Time `json:"created_at"`
	UpdatedAt                       time.Time `json:"updated_at"`
}

func (Employee) TableName() string { return "company_employees" }

type Department struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CompanyName    string    `json:"company_name"`
	DepartmentName string    `json:"department_name"`
	DepartmentCode string    `json:"department_code"`
	Description    string    `json:"description"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Department) TableName() string { return "company_departments" }

// PunchLog is one attendance session; PunchOutTime is nil while the
// employee is still working.
type PunchLog struct {
	ID                       uint       `gorm:"primaryKey" json:"id"`
	CompanyName              string     `json:"company_name"`
	Username                 string     `json:"username"`
	DisplayName              string     `json:"display_name"`
	SystemName               string     `json:"system_name"`
	MachineID                string     `json:"machine_id"`
	IPAddress                string     `json:"ip_address"`
	PunchInTime              time.Time  `json:"punch_in_time"`
	PunchOutTime             *time.Time `json:"punch_out_time"`
	BreakDurationSeconds     int        `json:"break_duration_seconds"`
	TotalWorkDurationSeconds int        `json:"total_work_duration_seconds"`
	CreatedAt                time.Time  `json:"created_at"`
}

func (PunchLog) TableName() string { return "punch_log_consolidated" }

type WebLog struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CompanyName     string    `json:"company_name"`
	SystemName      string    `json:"system_name"`
	Username        string    `json:"username"`
	DisplayUserName string    `json:"display_user_name"`
	BrowserName     string    `json:"browser_name"`
	WebsiteURL      string    `gorm:"column:website_url" json:"website_url"`
	PageTitle       string    `json:"page_title"`
	Category        string    `json:"category"`
	VisitTime       time.Time `json:"visit_time"`
	DurationSeconds int       `json:"duration_seconds"`
	IPAddress       string    `json:"ip_address"`
	LogTimestamp    time.Time `json:"log_timestamp"`
}

func (WebLog) TableName() string { return "web_logs" }

type ApplicationLog struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	CompanyName     string     `json:"company_name"`
	SystemName      string     `json:"system_name"`
	Username        string     `json:"username"`
	DisplayUserName string     `json:"display_user_name"`
	AppName         string     `json:"app_name"`
	WindowTitle     string     `json:"window_title"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationSeconds int        `json:"duration_seconds"`
	IsActive        bool       `json:"is_active"`
	IPAddress       string     `json:"ip_address"`
	LogTimestamp    time.Time  `json:"log_timestamp"`
}

func (ApplicationLog) TableName() string { return "application_logs" }

type InactivityLog struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	CompanyName     string     `json:"company_name"`
	SystemName      string     `json:"system_name"`
	Username        string     `json:"username"`
	DisplayUserName string     `json:"display_user_name"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationSeconds int        `json:"duration_seconds"`
	Status          string     `json:"status"`
	IPAddress       string     `json:"ip_address"`
	LogTimestamp    time.Time  `json:"log_timestamp"`
}

func (InactivityLog) TableName() string { return "inactivity_logs" }

// ScreenshotLog points at an image stored under the upload directory; the
// bytes themselves never live in the table.
type ScreenshotLog struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CompanyName     string    `json:"company_name"`
	SystemName      string    `json:"system_name"`
	Username        string    `json:"username"`
	DisplayUserName string    `json:"display_user_name"`
	FilePath        string    `json:"file_path"`
	ScreenWidth     int       `json:"screen_width"`
	ScreenHeight    int       `json:"screen_height"`
	IPAddress       string    `json:"ip_address"`
	LogTimestamp    time.Time `json:"log_timestamp"`
}

func (ScreenshotLog) TableName() string { return "screenshot_logs" }

// ConnectedSystem is the latest known presence of one agent installation,
// unique per (company_name, employee_id, machine_id). IsOnline is a cached
// value that the staleness sweep corrects on read.
type ConnectedSystem struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	CompanyName    string     `json:"company_name"`
	EmployeeID     string     `json:"employee_id"`
	DisplayName    string     `json:"display_name"`
	Department     string     `json:"department"`
	MachineID      string     `json:"machine_id"`
	SystemID       string     `json:"system_id"`
	MachineName    string     `json:"machine_name"`
	IPAddress      string     `json:"ip_address"`
	OSVersion      string     `gorm:"column:os_version" json:"os_version"`
	AppVersion     string     `json:"app_version"`
	LastHeartbeat  *time.Time `json:"last_heartbeat"`
	FirstConnected *time.Time `json:"first_connected"`
	IsOnline       bool       `json:"is_online"`
	Status         string     `json:"status"`
}

type CommandStatus string

const (
	CommandStatusPending   CommandStatus = "pending"
	CommandStatusExecuting CommandStatus = "executing"
	CommandStatusCompleted CommandStatus = "completed"
	CommandStatusFailed    CommandStatus = "failed"
)

type ControlCommand struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CompanyName string         `json:"company_name"`
	SystemName  string         `json:"system_name"`
	CommandType string         `json:"command_type"`
	Parameters  datatypes.JSON `json:"parameters"`
	Status      CommandStatus  `json:"status"`
	Result      string         `json:"result"`
	CreatedBy   string         `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	ExecutedAt  *time.Time     `json:"executed_at"`
}

func (ControlCommand) TableName() string { return "system_control_commands" }

type SystemRestriction struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CompanyName     string    `json:"company_name"`
	SystemName      string    `json:"system_name"`
	RestrictionType string    `json:"restriction_type"`
	IsActive        bool      `json:"is_active"`
	ChangedBy       string    `json:"changed_by"`
	ChangedAt       time.Time `json:"changed_at"`
}

type ChatMessage struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	DeviceID       string    `json:"device_id"`
	Sender         string    `json:"sender"`
	Message        string    `json:"message"`
	IsFromDesktop  bool      `json:"is_from_desktop"`
	RecipientID    string    `json:"recipient_id"`
	ConversationID string    `json:"conversation_id"`
	Read           bool      `gorm:"column:is_read" json:"read"`
	Timestamp      time.Time `json:"timestamp"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Meeting struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	CompanyName  string     `json:"company_name"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Organizer    string     `json:"organizer"`
	Participants string     `json:"participants"`
	MeetingLink  string     `json:"meeting_link"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type MonitoredSite struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	SiteName      string     `json:"site_name"`
	SiteURL       string     `gorm:"column:site_url" json:"site_url"`
	CompanyName   string     `json:"company_name"`
	CheckInterval int        `json:"check_interval"`
	CurrentStatus string     `json:"current_status"`
	ResponseTime  int64      `json:"response_time"`
	LastChecked   *time.Time `json:"last_checked"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (MonitoredSite) TableName() string { return "monitored_websites" }

type SiteDowntime struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	SiteID          uint       `json:"site_id"`
	DownStart       time.Time  `json:"down_start"`
	DownEnd         *time.Time `json:"down_end"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (SiteDowntime) TableName() string { return "website_downtime" }
