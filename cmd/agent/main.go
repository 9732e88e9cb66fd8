package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"attendance-monitor/internal/agentclient"
	"attendance-monitor/internal/logger"
)

const appVersion = "2.0.0"

type agentConfig struct {
	ServerURL           string
	CompanyName         string
	EmployeeID          string
	DisplayName         string
	Department          string
	MachineID           string
	HeartbeatInterval   time.Duration
	CommandPollInterval time.Duration
	ScreenshotInterval  time.Duration
	WindowPollInterval  time.Duration
	LockFile            string
	LogLevel            string
}

func loadConfig() agentConfig {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using system defaults.")
	}

	hostname, _ := os.Hostname()
	return agentConfig{
		ServerURL:           getEnv("SERVER_URL", "http://localhost:8080"),
		CompanyName:         getEnv("COMPANY_NAME", ""),
		EmployeeID:          getEnv("EMPLOYEE_ID", ""),
		DisplayName:         getEnv("DISPLAY_NAME", ""),
		Department:          getEnv("DEPARTMENT", ""),
		MachineID:           getEnv("MACHINE_ID", hostname),
		HeartbeatInterval:   getSeconds("HEARTBEAT_INTERVAL_SEC", 30),
		CommandPollInterval: getSeconds("COMMAND_POLL_INTERVAL_SEC", 10),
		ScreenshotInterval:  getSeconds("SCREENSHOT_INTERVAL_SEC", 60),
		WindowPollInterval:  getSeconds("WINDOW_POLL_INTERVAL_SEC", 1),
		LockFile:            getEnv("AGENT_LOCK_FILE", filepath.Join(os.TempDir(), "attendance-agent", "agent.lock")),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getSeconds(key string, fallback int) time.Duration {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func getLocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "unknown"
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() {
			if ipNet.IP.To4() != nil {
				return ipNet.IP.String()
			}
		}
	}
	return "unknown"
}

func (cfg agentConfig) identity() agentclient.Identity {
	hostname, _ := os.Hostname()
	display := cfg.DisplayName
	if display == "" {
		display = cfg.EmployeeID
	}
	return agentclient.Identity{
		CompanyName: cfg.CompanyName,
		EmployeeID:  cfg.EmployeeID,
		DisplayName: display,
		Department:  cfg.Department,
		MachineID:   cfg.MachineID,
		SystemID:    cfg.MachineID,
		MachineName: hostname,
		IPAddress:   getLocalIP(),
		OSVersion:   runtime.GOOS + "/" + runtime.GOARCH,
		AppVersion:  appVersion,
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()
	if cfg.CompanyName == "" || cfg.EmployeeID == "" {
		return errors.New("COMPANY_NAME and EMPLOYEE_ID must be set")
	}

	log, err := logger.NewLogger(cfg.LogLevel, "console", "attendance-agent")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	lock, err := acquireInstanceLock(cfg.LockFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("Failed to release instance lock", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &agent{
		client: agentclient.New(cfg.ServerURL, 30*time.Second, log.Named("client")),
		id:     cfg.identity(),
		cfg:    cfg,
		log:    log,
	}
	log.Info("Agent started",
		zap.String("server_url", cfg.ServerURL),
		zap.String("company_name", cfg.CompanyName),
		zap.String("employee_id", cfg.EmployeeID),
		zap.String("machine_id", cfg.MachineID),
	)
	a.run(ctx)
	log.Info("Agent stopped")
	return nil
}
