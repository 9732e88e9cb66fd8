package activity

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"attendance-monitor/internal/core"
	"attendance-monitor/internal/models"
)

const maxScreenshotBytes = 20 << 20

type ScreenshotUpload struct {
	Source
	Filename     string
	ScreenWidth  int
	ScreenHeight int
	CapturedAt   time.Time
}

// SaveScreenshot stores the image under <upload dir>/<user folder>/ and
// records its relative path. The folder is the display name, falling back to
// the system name, with spaces replaced by underscores.
func (s *Service) SaveScreenshot(ctx context.Context, in ScreenshotUpload, r io.Reader) (*models.ScreenshotLog, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if s.uploadDir == "" {
		return nil, errors.New("upload directory not configured")
	}

	data, err := io.ReadAll(io.LimitReader(r, maxScreenshotBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read screenshot: %w", err)
	}
	if len(data) == 0 {
		return nil, core.Invalid("screenshot required")
	}
	if len(data) > maxScreenshotBytes {
		return nil, core.Invalid("screenshot too large")
	}

	width, height := in.ScreenWidth, in.ScreenHeight
	if width == 0 || height == 0 {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			width, height = cfg.Width, cfg.Height
		}
	}

	folder := in.DisplayUserName
	if folder == "" {
		folder = in.SystemName
	}
	if folder == "" {
		folder = in.Username
	}
	folder = safeName(folder)

	userDir := filepath.Join(s.uploadDir, folder)
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create user directory: %w", err)
	}

	now := s.clock.Now()
	base := "screenshot.png"
	if in.Filename != "" {
		base = safeName(filepath.Base(in.Filename))
	}
	// The random suffix keeps same-second uploads of the same file apart.
	filename := fmt.Sprintf("%s_%d_%s_%s", safeName(in.Username), now.Unix(), uuid.NewString()[:8], base)
	if err := os.WriteFile(filepath.Join(userDir, filename), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to save screenshot: %w", err)
	}

	row := &models.ScreenshotLog{
		CompanyName:     in.CompanyName,
		SystemName:      in.SystemName,
		Username:        in.Username,
		DisplayUserName: in.DisplayUserName,
		FilePath:        path.Join(folder, filename),
		ScreenWidth:     width,
		ScreenHeight:    height,
		IPAddress:       in.IPAddress,
		LogTimestamp:    orNow(in.CapturedAt, now),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to record screenshot: %w", err)
	}

	s.log.Info("Screenshot stored",
		zap.String("company_name", in.CompanyName),
		zap.String("username", in.Username),
		zap.String("file_path", row.FilePath),
	)
	return row, nil
}

type ScreenshotImage struct {
	ID             uint      `json:"id"`
	SystemName     string    `json:"system_name"`
	Username       string    `json:"username"`
	CaptureTime    time.Time `json:"capture_time"`
	ContentType    string    `json:"content_type"`
	ScreenshotData string    `json:"screenshot_data"`
}

// ScreenshotImage loads one screenshot of the company as base64.
func (s *Service) ScreenshotImage(ctx context.Context, id uint, company string) (*ScreenshotImage, error) {
	if id == 0 || strings.TrimSpace(company) == "" {
		return nil, core.Invalid("screenshot id and company_name required")
	}

	var row models.ScreenshotLog
	err := s.db.WithContext(ctx).Where("id = ? AND company_name = ?", id, company).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.NotFound("screenshot")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get screenshot: %w", err)
	}

	full := filepath.Join(s.uploadDir, filepath.FromSlash(row.FilePath))
	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, core.NotFound("screenshot file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read screenshot file: %w", err)
	}

	return &ScreenshotImage{
		ID:             row.ID,
		SystemName:     row.SystemName,
		Username:       row.Username,
		CaptureTime:    row.LogTimestamp,
		ContentType:    http.DetectContentType(data),
		ScreenshotData: base64.StdEncoding.EncodeToString(data),
	}, nil
}

// safeName keeps a single path element: separators and spaces become
// underscores and leading dots are dropped.
func safeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer(" ", "_", "/", "_", `\`, "_", ":", "_").Replace(name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "unknown"
	}
	return name
}
