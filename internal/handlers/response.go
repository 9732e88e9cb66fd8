package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"attendance-monitor/internal/auth"
	"attendance-monitor/internal/core"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Stats   any    `json:"stats,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// reply is what an action produces on success. File replaces the envelope
// with a download.
type reply struct {
	Data    any
	Stats   any
	Message string
	File    *download
}

type download struct {
	Name        string
	ContentType string
	Body        []byte
}

func withData(v any) (*reply, error) { return &reply{Data: v}, nil }

func withMessage(msg string) (*reply, error) { return &reply{Message: msg}, nil }

// list keeps empty lists as [] on the wire.
func list[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func writeReply(c *gin.Context, r *reply) {
	if r.File != nil {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, r.File.Name))
		c.Data(http.StatusOK, r.File.ContentType, r.File.Body)
		return
	}
	c.JSON(http.StatusOK, envelope{Success: true, Data: r.Data, Stats: r.Stats, Message: r.Message})
}

func isClientError(err error) bool {
	return core.IsValidation(err) || core.IsNotFound(err) ||
		errors.Is(err, auth.ErrInvalidKey) || errors.Is(err, auth.ErrInvalidCredentials)
}

// writeError maps err onto the envelope. Client errors are 400 with the
// message as is; anything else is logged and returned as 500, carrying the
// action's safe default when it has one.
func (h *MonitorHandler) writeError(c *gin.Context, action string, err error, fallback *reply) {
	if isClientError(err) {
		c.JSON(http.StatusBadRequest, envelope{Success: false, Error: err.Error()})
		return
	}

	h.log.Error("Action failed",
		zap.String("action", action),
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.Error(err),
	)
	env := envelope{Success: false, Error: "Server error: " + err.Error()}
	if fallback != nil {
		env.Data = fallback.Data
		env.Stats = fallback.Stats
	}
	c.JSON(http.StatusInternalServerError, env)
}
