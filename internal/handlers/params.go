package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"attendance-monitor/internal/core"
)

const maxJSONBody = 4 << 20

// Params is the request input with the query string merged under the form
// fields or JSON body, so body values win.
type Params map[string]any

func bindParams(c *gin.Context) (Params, error) {
	p := Params{}
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			p[k] = v[0]
		}
	}
	if c.Request.Method == http.MethodGet || c.Request.Body == nil {
		return p, nil
	}

	switch c.ContentType() {
	case "multipart/form-data":
		form, err := c.MultipartForm()
		if err != nil {
			return nil, core.Invalid("invalid multipart form")
		}
		for k, v := range form.Value {
			if len(v) > 0 {
				p[k] = v[0]
			}
		}
	case "application/x-www-form-urlencoded":
		if err := c.Request.ParseForm(); err != nil {
			return nil, core.Invalid("invalid form body")
		}
		for k, v := range c.Request.PostForm {
			if len(v) > 0 {
				p[k] = v[0]
			}
		}
	default:
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxJSONBody)
		var fields map[string]any
		if err := c.ShouldBindJSON(&fields); err != nil {
			var tooLarge *http.MaxBytesError
			switch {
			case errors.Is(err, io.EOF):
				return p, nil
			case errors.As(err, &tooLarge):
				return nil, core.Invalid("request body too large")
			}
			return nil, core.Invalid("invalid JSON body")
		}
		for k, v := range fields {
			p[k] = v
		}
	}
	return p, nil
}

func (p Params) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

func (p Params) String(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// First returns the first non-empty value among keys.
func (p Params) First(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(p.String(k)); v != "" {
			return v
		}
	}
	return ""
}

func (p Params) Int(key string, fallback int) int {
	raw := strings.TrimSpace(p.String(key))
	if raw == "" {
		return fallback
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(f)
	}
	return fallback
}

func (p Params) Uint(key string) uint {
	n := p.Int(key, 0)
	if n <= 0 {
		return 0
	}
	return uint(n)
}

func (p Params) Bool(key string, fallback bool) bool {
	if v := p.BoolPtr(key); v != nil {
		return *v
	}
	return fallback
}

// BoolPtr is nil when the key is absent or not a recognisable boolean.
func (p Params) BoolPtr(key string) *bool {
	var b bool
	switch strings.ToLower(strings.TrimSpace(p.String(key))) {
	case "true", "1", "yes", "on":
		b = true
	case "false", "0", "no", "off":
		b = false
	default:
		return nil
	}
	return &b
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Time parses a timestamp field; an absent field is the zero time. Values
// without a zone are read as UTC.
func (p Params) Time(key string) (time.Time, error) {
	raw := strings.TrimSpace(p.String(key))
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, core.Invalid("%s must be a timestamp", key)
}

func (p Params) TimePtr(key string) (*time.Time, error) {
	t, err := p.Time(key)
	if err != nil || t.IsZero() {
		return nil, err
	}
	return &t, nil
}

// RawJSON returns the field as JSON. A string holding a JSON document is
// passed through unchanged.
func (p Params) RawJSON(key string) json.RawMessage {
	switch v := p[key].(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		if json.Valid([]byte(s)) && strings.HasPrefix(s, "{") {
			return json.RawMessage(s)
		}
	}
	b, err := json.Marshal(p[key])
	if err != nil {
		return nil
	}
	return b
}

// UintList accepts a JSON array, a comma separated string or a single id.
func (p Params) UintList(key string) []uint {
	var raw []string
	switch v := p[key].(type) {
	case nil:
		return nil
	case []any:
		for _, item := range v {
			raw = append(raw, Params{"v": item}.String("v"))
		}
	default:
		raw = strings.Split(p.String(key), ",")
	}

	var ids []uint
	for _, s := range raw {
		if n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64); err == nil && n > 0 {
			ids = append(ids, uint(n))
		}
	}
	return ids
}
