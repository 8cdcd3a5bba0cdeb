package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/qrtracker/internal/models"
	"github.com/mmeshcher/qrtracker/internal/repository"
	"github.com/mmeshcher/qrtracker/internal/useragent"
)

func TestAnalyticsHandler(t *testing.T) {
	env := newTestEnv(t, repository.NewMemoryRepository())
	userID, cookie := env.session(t)
	_, otherCookie := env.session(t)
	qr := env.createCode(t, userID, models.CreateQRCodeRequest{Name: "Menu", URL: "https://example.com/menu"})

	for _, ua := range []string{desktopUA, iphoneUA, iphoneUA} {
		request := httptest.NewRequest(http.MethodGet, "/scan/"+qr.Hash, nil)
		request.Header.Set("User-Agent", ua)
		env.router.ServeHTTP(httptest.NewRecorder(), request)
	}
	env.recorder.Close()

	t.Run("positive: owner gets aggregates", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodGet, "/api/analytics/"+qr.ID, nil)
		request.AddCookie(cookie)
		w := httptest.NewRecorder()

		env.router.ServeHTTP(w, request)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var analytics models.Analytics
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analytics))

		assert.Equal(t, qr.ID, analytics.QRCode.ID)
		assert.Equal(t, 3, analytics.TotalScans)
		assert.Equal(t, map[string]int{"Germany": 3}, analytics.ScansByCountry)
		assert.Equal(t, map[string]int{useragent.DeviceDesktop: 1, useragent.DeviceMobile: 2}, analytics.ScansByDevice)
		assert.Len(t, analytics.ScansByDate, 1)
		assert.Len(t, analytics.RecentScans, 3)
	})

	tests := []struct {
		name       string
		path       string
		cookie     *http.Cookie
		wantStatus int
	}{
		{
			name:       "negative: other user",
			path:       "/api/analytics/" + qr.ID,
			cookie:     otherCookie,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "negative: unknown code",
			path:       "/api/analytics/7d1c1b9e-3c43-4a55-9a55-6e4a1f4a2b10",
			cookie:     cookie,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "negative: no session",
			path:       "/api/analytics/" + qr.ID,
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != nil {
				request.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()

			env.router.ServeHTTP(w, request)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}
