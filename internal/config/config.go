package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type DatabaseConfig struct {
	Path         string
	QueryTimeout time.Duration
	Debug        bool
}

// RedisConfig is optional; an empty Addr disables the stats cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// IsConfigured returns true if a Redis address is present
func (c RedisConfig) IsConfigured() bool {
	return c.Addr != ""
}

type LogConfig struct {
	Level  string
	Format string
}

type SiteCheckConfig struct {
	Workers int
	Timeout time.Duration
}

type Config struct {
	ServerPort         string
	UploadDir          string
	PresenceStaleAfter time.Duration
	StatsCacheTTL      time.Duration
	CORSAllowedOrigins []string
	Database           DatabaseConfig
	Redis              RedisConfig
	Log                LogConfig
	SiteCheck          SiteCheckConfig
}

// Load reads .env (when present) and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system defaults.")
	}

	return &Config{
		ServerPort:         getEnv("SERVER_PORT", ":8080"),
		UploadDir:          getEnv("UPLOAD_DIR", "./uploads"),
		PresenceStaleAfter: getDuration("PRESENCE_STALE_AFTER", 2*time.Minute),
		StatsCacheTTL:      getDuration("STATS_CACHE_TTL", 30*time.Second),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		Database: DatabaseConfig{
			Path:         getEnv("DB_NAME", "central_monitor.db"),
			QueryTimeout: getDuration("DB_QUERY_TIMEOUT", 10*time.Second),
			Debug:        getBool("DB_DEBUG", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		SiteCheck: SiteCheckConfig{
			Workers: getInt("SITE_CHECK_WORKERS", 4),
			Timeout: getDuration("SITE_CHECK_TIMEOUT", 10*time.Second),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

// getDuration accepts Go durations ("90s", "2m") or a bare number of seconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
