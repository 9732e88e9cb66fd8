package sites

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"attendance-monitor/internal/core"
	"attendance-monitor/internal/models"
)

// Probe is the outcome of one availability check.
type Probe struct {
	Status         string
	StatusCode     int
	ResponseTimeMs int64
	Err            error
}

type Prober interface {
	Probe(ctx context.Context, rawURL string) Probe
}

type HTTPProber struct {
	client *resty.Client
	log    *zap.Logger
}

func NewHTTPProber(timeout time.Duration, log *zap.Logger) *HTTPProber {
	client := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		SetHeader("User-Agent", "attendance-monitor-uptime/1.0")
	return &HTTPProber{client: client, log: log}
}

// Probe sends HEAD and falls back to GET for servers that reject HEAD. Any
// status below 400 counts as up.
func (p *HTTPProber) Probe(ctx context.Context, rawURL string) Probe {
	resp, err := p.client.R().SetContext(ctx).Head(rawURL)
	if err == nil && (resp.StatusCode() == http.StatusMethodNotAllowed || resp.StatusCode() == http.StatusNotImplemented) {
		resp, err = p.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(rawURL)
		if err == nil {
			resp.RawBody().Close()
		}
	}
	if err != nil {
		p.log.Debug("Site probe failed", zap.String("site_url", rawURL), zap.Error(err))
		return Probe{Status: StatusDown, Err: err}
	}

	status := StatusUp
	if resp.StatusCode() >= http.StatusBadRequest {
		status = StatusDown
	}
	return Probe{
		Status:         status,
		StatusCode:     resp.StatusCode(),
		ResponseTimeMs: resp.Time().Milliseconds(),
	}
}

type CheckResult struct {
	SiteID         uint   `json:"site_id"`
	SiteName       string `json:"site_name"`
	SiteURL        string `json:"site_url"`
	Status         string `json:"status"`
	StatusCode     int    `json:"status_code"`
	ResponseTimeMs int64  `json:"response_time"`
	Error          string `json:"error,omitempty"`
}

// CheckSites probes every site of the company concurrently, then feeds each
// result through the same transition as RecordStatus.
func (s *Service) CheckSites(ctx context.Context, company string) ([]CheckResult, error) {
	if err := core.Required(core.Field{Name: "company_name", Value: company}); err != nil {
		return nil, err
	}

	var sites []models.MonitoredSite
	if err := s.db.WithContext(ctx).Where("company_name = ?", company).Order("id ASC").Find(&sites).Error; err != nil {
		return nil, fmt.Errorf("failed to load monitored sites: %w", err)
	}

	// Probes run on their own deadline, not the caller's query timeout. HEAD
	// may fall back to GET, so one probe can take two request timeouts.
	rounds := (len(sites) + s.workers - 1) / s.workers
	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*s.probeTimeout*time.Duration(rounds))
	defer cancel()

	probes := make([]Probe, len(sites))
	var mu sync.Mutex
	wp := workerpool.New(s.workers)
	for i, site := range sites {
		i, site := i, site
		wp.Submit(func() {
			p := s.prober.Probe(probeCtx, site.SiteURL)
			mu.Lock()
			probes[i] = p
			mu.Unlock()
		})
	}
	wp.StopWait()

	results := make([]CheckResult, 0, len(sites))
	for i := range sites {
		site, p := &sites[i], probes[i]
		if err := s.applyProbe(ctx, site, p); err != nil {
			return nil, err
		}

		r := CheckResult{
			SiteID:         site.ID,
			SiteName:       site.SiteName,
			SiteURL:        site.SiteURL,
			Status:         p.Status,
			StatusCode:     p.StatusCode,
			ResponseTimeMs: p.ResponseTimeMs,
		}
		if p.Err != nil {
			r.Error = p.Err.Error()
		}
		results = append(results, r)
	}

	s.log.Info("Site checks completed", zap.String("company_name", company), zap.Int("sites", len(results)))
	return results, nil
}

func (s *Service) applyProbe(ctx context.Context, site *models.MonitoredSite, p Probe) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()
	return s.db.WithContext(writeCtx).Transaction(func(tx *gorm.DB) error {
		_, err := s.transition(tx, site, p.Status, &p.ResponseTimeMs)
		return err
	})
}
