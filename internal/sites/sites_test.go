package sites_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"attendance-monitor/internal/clock"
	"attendance-monitor/internal/core"
	"attendance-monitor/internal/database/dbtest"
	"attendance-monitor/internal/models"
	"attendance-monitor/internal/sites"
)

var start = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type stubProber struct {
	mu     sync.Mutex
	byURL  map[string]sites.Probe
	probed []string
}

func (p *stubProber) Probe(_ context.Context, rawURL string) sites.Probe {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probed = append(p.probed, rawURL)
	return p.byURL[rawURL]
}

func newService(t *testing.T, prober sites.Prober) (*sites.Service, *gorm.DB, *clock.Fake) {
	t.Helper()
	db := dbtest.New(t)
	fake := clock.NewFake(start)
	svc := sites.NewService(sites.Config{DB: db, Clock: fake, Prober: prober, Workers: 2})
	return svc, db, fake
}

func addSite(t *testing.T, svc *sites.Service, name, url string) *models.MonitoredSite {
	t.Helper()
	site, err := svc.Add(context.Background(), sites.SiteInput{SiteName: name, SiteURL: url, CompanyName: "Acme"})
	require.NoError(t, err)
	return site
}

func TestAddValidation(t *testing.T) {
	svc, _, _ := newService(t, nil)
	ctx := context.Background()

	_, err := svc.Add(ctx, sites.SiteInput{SiteName: "Home"})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
	assert.Equal(t, "site_url and company_name required", err.Error())

	_, err = svc.Add(ctx, sites.SiteInput{SiteName: "Home", SiteURL: "ftp://example.com", CompanyName: "Acme"})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	site := addSite(t, svc, "Home", "https://example.com")
	assert.Equal(t, sites.DefaultCheckInterval, site.CheckInterval)
	assert.Equal(t, sites.StatusUnknown, site.CurrentStatus)
}

func TestDownUpTransitions(t *testing.T) {
	svc, _, fake := newService(t, nil)
	ctx := context.Background()
	site := addSite(t, svc, "Home", "https://example.com")

	first, err := svc.RecordStatus(ctx, site.ID, "Acme", sites.StatusDown)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, start, first.DownStart)
	assert.Nil(t, first.DownEnd)

	// A second down report keeps the existing window open.
	fake.Advance(5 * time.Minute)
	again, err := svc.RecordStatus(ctx, site.ID, "Acme", sites.StatusDown)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	fake.Advance(7 * time.Minute)
	closed, err := svc.RecordStatus(ctx, site.ID, "Acme", sites.StatusUp)
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, 12, closed.DurationMinutes)
	assert.Equal(t, "recovered", closed.Status)

	history, err := svc.DowntimeHistory(ctx, site.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].DownEnd)
	assert.Equal(t, start.Add(12*time.Minute), *history[0].DownEnd)

	// Up with nothing open is a no-op for the history.
	none, err := svc.RecordStatus(ctx, site.ID, "Acme", sites.StatusUp)
	require.NoError(t, err)
	assert.Nil(t, none)

	list, err := svc.List(ctx, "Acme")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sites.StatusUp, list[0].CurrentStatus)
	// 12 minutes down out of 24 hours.
	assert.InDelta(t, 99.17, list[0].Uptime, 0.001)
}

func TestRecordStatusRejects(t *testing.T) {
	svc, _, _ := newService(t, nil)
	ctx := context.Background()
	site := addSite(t, svc, "Home", "https://example.com")

	_, err := svc.RecordStatus(ctx, site.ID, "Acme", "sideways")
	assert.True(t, core.IsValidation(err))

	_, err = svc.RecordStatus(ctx, site.ID, "Other", sites.StatusDown)
	assert.True(t, core.IsNotFound(err))

	_, err = svc.RecordStatus(ctx, 0, "Acme", sites.StatusDown)
	assert.True(t, core.IsValidation(err))
}

func TestUpdateAndDelete(t *testing.T) {
	svc, db, _ := newService(t, nil)
	ctx := context.Background()
	site := addSite(t, svc, "Home", "https://example.com")

	updated, err := svc.Update(ctx, sites.SiteInput{ID: site.ID, SiteName: "Shop", SiteURL: "https://shop.example.com", CheckInterval: 60})
	require.NoError(t, err)
	assert.Equal(t, "Shop", updated.SiteName)
	assert.Equal(t, 60, updated.CheckInterval)

	_, err = svc.Update(ctx, sites.SiteInput{ID: 999, SiteName: "x", SiteURL: "https://x.example.com"})
	assert.True(t, core.IsNotFound(err))

	_, err = svc.RecordStatus(ctx, site.ID, "Acme", sites.StatusDown)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, site.ID))
	var downtimes int64
	require.NoError(t, db.Model(&models.SiteDowntime{}).Where("site_id = ?", site.ID).Count(&downtimes).Error)
	assert.Zero(t, downtimes)

	assert.True(t, core.IsNotFound(svc.Delete(ctx, site.ID)))
}

func TestCheckSitesFeedsTransitions(t *testing.T) {
	prober := &stubProber{byURL: map[string]sites.Probe{
		"https://up.example.com":   {Status: sites.StatusUp, StatusCode: 200, ResponseTimeMs: 42},
		"https://down.example.com": {Status: sites.StatusDown, StatusCode: 503, ResponseTimeMs: 7},
	}}
	svc, _, _ := newService(t, prober)
	ctx := context.Background()
	up := addSite(t, svc, "Up", "https://up.example.com")
	down := addSite(t, svc, "Down", "https://down.example.com")

	results, err := svc.CheckSites(ctx, "Acme")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, up.ID, results[0].SiteID)
	assert.Equal(t, sites.StatusUp, results[0].Status)
	assert.Equal(t, int64(42), results[0].ResponseTimeMs)
	assert.Equal(t, sites.StatusDown, results[1].Status)
	assert.ElementsMatch(t, []string{"https://up.example.com", "https://down.example.com"}, prober.probed)

	history, err := svc.DowntimeHistory(ctx, down.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	list, err := svc.List(ctx, "Acme")
	require.NoError(t, err)
	byID := map[uint]sites.Site{}
	for _, s := range list {
		byID[s.ID] = s
	}
	assert.Equal(t, int64(42), byID[up.ID].ResponseTime)
	assert.Equal(t, sites.StatusDown, byID[down.ID].CurrentStatus)
}

type slowProber struct{ delay time.Duration }

func (p slowProber) Probe(ctx context.Context, _ string) sites.Probe {
	select {
	case <-time.After(p.delay):
		return sites.Probe{Status: sites.StatusUp, StatusCode: 200}
	case <-ctx.Done():
		return sites.Probe{Status: sites.StatusDown, Err: ctx.Err()}
	}
}

func TestCheckSitesIgnoresCallerDeadline(t *testing.T) {
	db := dbtest.New(t)
	svc := sites.NewService(sites.Config{
		DB:           db,
		Clock:        clock.NewFake(start),
		Prober:       slowProber{delay: 100 * time.Millisecond},
		Workers:      1,
		ProbeTimeout: time.Second,
	})
	for _, name := range []string{"a", "b", "c"} {
		addSite(t, svc, name, "https://"+name+".example.com")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	results, err := svc.CheckSites(ctx, "Acme")
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, sites.StatusUp, r.Status)
		assert.Empty(t, r.Error)
	}

	list, err := svc.List(context.Background(), "Acme")
	require.NoError(t, err)
	for _, site := range list {
		assert.Equal(t, sites.StatusUp, site.CurrentStatus)
	}
}

func TestHTTPProber(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()

	noHead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write([]byte("hello"))
	}))
	defer noHead.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	prober := sites.NewHTTPProber(2*time.Second, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, sites.StatusUp, prober.Probe(ctx, ok.URL).Status)

	p := prober.Probe(ctx, noHead.URL)
	assert.Equal(t, sites.StatusUp, p.Status)
	assert.Equal(t, http.StatusOK, p.StatusCode)

	p = prober.Probe(ctx, broken.URL)
	assert.Equal(t, sites.StatusDown, p.Status)
	assert.Equal(t, http.StatusInternalServerError, p.StatusCode)

	p = prober.Probe(ctx, "http://127.0.0.1:1")
	assert.Equal(t, sites.StatusDown, p.Status)
	assert.Error(t, p.Err)
}
