package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithLogging(t *testing.T) {
	tests := []struct {
		name         string
		handler      http.HandlerFunc
		wantStatus   int
		wantSize     int
		wantLevel    zapcore.Level
		wantLocation string
	}{
		{
			name: "implicit 200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("pong"))
			},
			wantStatus: http.StatusOK,
			wantSize:   4,
			wantLevel:  zapcore.InfoLevel,
		},
		{
			name: "redirect",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Location", "https://example.com")
				w.WriteHeader(http.StatusFound)
			},
			wantStatus:   http.StatusFound,
			wantLevel:    zapcore.InfoLevel,
			wantLocation: "https://example.com",
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("boom"))
			},
			wantStatus: http.StatusInternalServerError,
			wantSize:   4,
			wantLevel:  zapcore.ErrorLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			handler := Logger(zap.New(core))(tt.handler)

			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)

			entries := logs.All()
			require.Len(t, entries, 1)
			entry := entries[0]
			assert.Equal(t, tt.wantLevel, entry.Level)

			fields := entry.ContextMap()
			assert.Equal(t, int64(tt.wantStatus), fields["status"])
			assert.Equal(t, int64(tt.wantSize), fields["size"])
			assert.Equal(t, "GET", fields["method"])
			assert.Equal(t, "/ping", fields["uri"])
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, fields["location"])
			}
		})
	}
}
