package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/qrtracker/internal/geo"
	"github.com/mmeshcher/qrtracker/internal/models"
	"github.com/mmeshcher/qrtracker/internal/repository"
	"github.com/mmeshcher/qrtracker/internal/useragent"
)

const (
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	ipadUA    = "Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1"
)

type captureSubmitter struct {
	mu    sync.Mutex
	scans []*models.Scan
}

func (c *captureSubmitter) Submit(scan *models.Scan) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scans = append(c.scans, scan)
	return true
}

func (c *captureSubmitter) submitted() []*models.Scan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*models.Scan(nil), c.scans...)
}

type stubResolver struct {
	loc   geo.Location
	calls int
}

func (r *stubResolver) Lookup(_ context.Context, _ string) geo.Location {
	r.calls++
	return r.loc
}

type brokenRepo struct {
	*repository.MemoryRepository
}

func (brokenRepo) GetQRCodeByHash(context.Context, string) (*models.QRCode, error) {
	return nil, errors.New("connection refused")
}

func newDispatcherFixture(t *testing.T) (*Dispatcher, *repository.MemoryRepository, *captureSubmitter, *stubResolver) {
	t.Helper()

	repo := repository.NewMemoryRepository()
	short := "Dyn1234"
	codes := []*models.QRCode{
		{ID: "static", UserID: "u", Hash: "aaaaaaaaaaaa", Name: "s", URL: "https://desktop.example.com", Type: models.QRTypeStatic, IsActive: true},
		{ID: "split", UserID: "u", Hash: "bbbbbbbbbbbb", Name: "m", URL: "https://desktop.example.com", URL2: "https://mobile.example.com", Type: models.QRTypeStatic, IsActive: true},
		{ID: "dynamic", UserID: "u", Hash: "cccccccccccc", ShortCode: &short, Name: "d", URL: "https://dynamic.example.com", Type: models.QRTypeDynamic, IsActive: true},
		{ID: "inactive", UserID: "u", Hash: "dddddddddddd", Name: "i", URL: "https://example.com", Type: models.QRTypeDynamic, IsActive: false},
		{ID: "broken", UserID: "u", Hash: "eeeeeeeeeeee", Name: "b", URL: "not a url", Type: models.QRTypeStatic, IsActive: true},
	}
	for _, c := range codes {
		c.CreatedAt = time.Now()
		require.NoError(t, repo.CreateQRCode(context.Background(), c))
	}

	lat, lon := 52.52, 13.40
	resolver := &stubResolver{loc: geo.Location{Country: "Germany", City: "Berlin", Latitude: &lat, Longitude: &lon}}
	submitter := &captureSubmitter{}

	d := NewDispatcher(repo, resolver, submitter, zap.NewNop())
	d.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	return d, repo, submitter, resolver
}

func TestDispatcherResolveByHash(t *testing.T) {
	tests := []struct {
		name       string
		hash       string
		userAgent  string
		want       string
		wantErr    error
		wantScan   bool
		wantDevice string
	}{
		{
			name:       "desktop gets primary url",
			hash:       "aaaaaaaaaaaa",
			userAgent:  desktopUA,
			want:       "https://desktop.example.com",
			wantScan:   true,
			wantDevice: useragent.DeviceDesktop,
		},
		{
			name:       "mobile without url2 gets primary url",
			hash:       "aaaaaaaaaaaa",
			userAgent:  iphoneUA,
			want:       "https://desktop.example.com",
			wantScan:   true,
			wantDevice: useragent.DeviceMobile,
		},
		{
			name:       "mobile gets url2",
			hash:       "bbbbbbbbbbbb",
			userAgent:  iphoneUA,
			want:       "https://mobile.example.com",
			wantScan:   true,
			wantDevice: useragent.DeviceMobile,
		},
		{
			name:       "tablet gets url2",
			hash:       "bbbbbbbbbbbb",
			userAgent:  ipadUA,
			want:       "https://mobile.example.com",
			wantScan:   true,
			wantDevice: useragent.DeviceTablet,
		},
		{
			name:       "desktop with url2 gets primary url",
			hash:       "bbbbbbbbbbbb",
			userAgent:  desktopUA,
			want:       "https://desktop.example.com",
			wantScan:   true,
			wantDevice: useragent.DeviceDesktop,
		},
		{
			name:       "empty user agent is desktop",
			hash:       "bbbbbbbbbbbb",
			userAgent:  "",
			want:       "https://desktop.example.com",
			wantScan:   true,
			wantDevice: useragent.DeviceDesktop,
		},
		{
			name:    "unknown hash",
			hash:    "ffffffffffff",
			wantErr: ErrNotFound,
		},
		{
			name:    "inactive code",
			hash:    "dddddddddddd",
			wantErr: ErrInactive,
		},
		{
			name:    "invalid destination",
			hash:    "eeeeeeeeeeee",
			wantErr: ErrInvalidTarget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, submitter, _ := newDispatcherFixture(t)

			target, err := d.ResolveByHash(context.Background(), tt.hash, ScanRequest{
				IP:             "8.8.8.8",
				UserAgent:      tt.userAgent,
				Referer:        "https://ref.example.com",
				AcceptLanguage: "de-DE,de;q=0.9",
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, target)
				assert.Empty(t, submitter.submitted(), "failed lookups must not record scans")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, target)

			scans := submitter.submitted()
			require.Len(t, scans, 1)
			scan := scans[0]
			assert.NotEmpty(t, scan.ID)
			assert.Equal(t, tt.wantDevice, scan.DeviceType)
			assert.Equal(t, "8.8.8.8", scan.IPAddress)
			assert.Equal(t, "https://ref.example.com", scan.Referer)
			assert.Equal(t, "de", scan.Language)
			assert.Equal(t, "Germany", scan.Country)
			assert.Equal(t, "Berlin", scan.City)
			require.NotNil(t, scan.Latitude)
			assert.InDelta(t, 52.52, *scan.Latitude, 0.0001)
			assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), scan.ScannedAt)
		})
	}
}

func TestDispatcherResolveByShortCode(t *testing.T) {
	d, _, submitter, resolver := newDispatcherFixture(t)
	ctx := context.Background()

	target, err := d.ResolveByShortCode(ctx, "Dyn1234", ScanRequest{IP: "1.1.1.1", UserAgent: desktopUA})
	require.NoError(t, err)
	assert.Equal(t, "https://dynamic.example.com", target)
	assert.Len(t, submitter.submitted(), 1)
	assert.Equal(t, 1, resolver.calls)

	_, err = d.ResolveByShortCode(ctx, "missing", ScanRequest{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, resolver.calls, "geo lookup only happens for resolvable codes")
}

func TestDispatcherInactiveShortCode(t *testing.T) {
	d, repo, _, _ := newDispatcherFixture(t)
	ctx := context.Background()

	inactive := false
	_, err := repo.UpdateQRCode(ctx, "u", "dynamic", repository.QRCodeUpdate{IsActive: &inactive})
	require.NoError(t, err)

	_, err = d.ResolveByShortCode(ctx, "Dyn1234", ScanRequest{UserAgent: desktopUA})
	assert.ErrorIs(t, err, ErrInactive)
}

func TestDispatcherRepositoryError(t *testing.T) {
	d := NewDispatcher(brokenRepo{repository.NewMemoryRepository()}, nil, &captureSubmitter{}, zap.NewNop())

	_, err := d.ResolveByHash(context.Background(), "aaaaaaaaaaaa", ScanRequest{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestDestination(t *testing.T) {
	qr := &models.QRCode{URL: "https://a.example.com", URL2: "https://b.example.com"}

	assert.Equal(t, "https://a.example.com", Destination(qr, useragent.Classify(desktopUA)))
	assert.Equal(t, "https://b.example.com", Destination(qr, useragent.Classify(iphoneUA)))

	qr.URL2 = ""
	assert.Equal(t, "https://a.example.com", Destination(qr, useragent.Classify(iphoneUA)))
}
