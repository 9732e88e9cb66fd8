package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	actionKey       = "action"
)

type RouterConfig struct {
	UploadDir      string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter mounts the action endpoint under /api and /api.php, serves
// uploaded screenshots from /uploads, and wraps everything in CORS.
func NewRouter(h *MonitorHandler, cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	// Numeric ids and flags stay json.Number until a Params accessor reads them.
	binding.EnableDecoderUseNumber = true

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(log))

	for _, path := range []string{"/api", "/api.php"} {
		r.GET(path, h.Handle)
		r.POST(path, h.Handle)
	}
	if cfg.UploadDir != "" {
		r.Static("/uploads", cfg.UploadDir)
	}
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, "Content-Disposition"},
	})
	return c.Handler(r)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("action", c.GetString(actionKey)),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		// Heartbeats and command polls arrive every few seconds per agent.
		switch c.GetString(actionKey) {
		case "system_heartbeat", "get_pending_commands":
			log.Debug("API request", fields...)
		default:
			log.Info("API request", fields...)
		}
	}
}
