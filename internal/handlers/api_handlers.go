package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"attendance-monitor/internal/activity"
	"attendance-monitor/internal/attendance"
	"attendance-monitor/internal/auth"
	"attendance-monitor/internal/cache"
	"attendance-monitor/internal/chat"
	"attendance-monitor/internal/clock"
	"attendance-monitor/internal/commands"
	"attendance-monitor/internal/directory"
	"attendance-monitor/internal/meetings"
	"attendance-monitor/internal/presence"
	"attendance-monitor/internal/restrictions"
	"attendance-monitor/internal/sites"
)

// Services is everything the action table dispatches to.
type Services struct {
	Presence     *presence.Service
	Commands     *commands.Service
	Restrictions *restrictions.Service
	Auth         *auth.Service
	Directory    *directory.Service
	Attendance   *attendance.Service
	Activity     *activity.Service
	Chat         *chat.Service
	Meetings     *meetings.Service
	Sites        *sites.Service
}

type ServicesConfig struct {
	DB                 *gorm.DB
	Clock              clock.Clock
	Cache              cache.KV
	UploadDir          string
	PresenceStaleAfter time.Duration
	StatsCacheTTL      time.Duration
	SiteCheckWorkers   int
	SiteCheckTimeout   time.Duration
	QueryTimeout       time.Duration
	Logger             *zap.Logger
}

func NewServices(cfg ServicesConfig) Services {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	kv := cfg.Cache
	if kv == nil {
		kv = cache.Nop{}
	}

	cmds := commands.NewService(cfg.DB, clk, log.Named("commands"))
	timeout := cfg.SiteCheckTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return Services{
		Presence: presence.NewService(presence.Config{
			DB: cfg.DB, Clock: clk, StaleAfter: cfg.PresenceStaleAfter, Logger: log.Named("presence"),
		}),
		Commands:     cmds,
		Restrictions: restrictions.NewService(cfg.DB, cmds, clk, log.Named("restrictions")),
		Auth:         auth.NewService(cfg.DB, log.Named("auth")),
		Directory:    directory.NewService(cfg.DB, clk, log.Named("directory")),
		Attendance: attendance.NewService(attendance.Config{
			DB: cfg.DB, Clock: clk, Cache: kv, StatsTTL: cfg.StatsCacheTTL, Logger: log.Named("attendance"),
		}),
		Activity: activity.NewService(activity.Config{
			DB: cfg.DB, Clock: clk, UploadDir: cfg.UploadDir, Logger: log.Named("activity"),
		}),
		Chat:     chat.NewService(cfg.DB, clk, log.Named("chat")),
		Meetings: meetings.NewService(cfg.DB, log.Named("meetings")),
		Sites: sites.NewService(sites.Config{
			DB:           cfg.DB,
			Clock:        clk,
			Prober:       sites.NewHTTPProber(timeout, log.Named("sites")),
			Workers:      cfg.SiteCheckWorkers,
			ProbeTimeout: timeout,
			WriteTimeout: cfg.QueryTimeout,
			Logger:       log.Named("sites"),
		}),
	}
}

type actionFunc func(ctx context.Context, c *gin.Context, p Params) (*reply, error)

// action is one entry of the dispatch table. Reads carry a fallback that is
// sent along with a storage error so the dashboard can still render.
type action struct {
	run      actionFunc
	fallback *reply
}

func write(fn actionFunc) action { return action{run: fn} }

func read(fn actionFunc, fallback *reply) action { return action{run: fn, fallback: fallback} }

var emptyList = &reply{Data: []any{}}

type MonitorHandler struct {
	svc          Services
	log          *zap.Logger
	queryTimeout time.Duration
	actions      map[string]action
}

func NewMonitorHandler(svc Services, log *zap.Logger, queryTimeout time.Duration) *MonitorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &MonitorHandler{svc: svc, log: log, queryTimeout: queryTimeout}
	h.actions = map[string]action{}
	for _, group := range []map[string]action{
		h.systemActions(),
		h.workforceActions(),
		h.activityActions(),
		h.collaborationActions(),
	} {
		for name, a := range group {
			h.actions[name] = a
		}
	}
	return h
}

// Actions lists the registered action names.
func (h *MonitorHandler) Actions() []string {
	names := make([]string, 0, len(h.actions))
	for name := range h.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle is the single API endpoint. The action name comes from the merged
// params, so GET query strings and POST bodies are both accepted.
func (h *MonitorHandler) Handle(c *gin.Context) {
	p, err := bindParams(c)
	if err != nil {
		h.writeError(c, "", err, nil)
		return
	}

	name := p.String("action")
	c.Set(actionKey, name)
	a, found := h.actions[name]
	if !found {
		c.JSON(http.StatusBadRequest, envelope{Success: false, Error: "Unknown action: " + name})
		return
	}

	ctx := c.Request.Context()
	if h.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.queryTimeout)
		defer cancel()
	}

	r, err := a.run(ctx, c, p)
	if err != nil {
		h.writeError(c, name, err, a.fallback)
		return
	}
	writeReply(c, r)
}
