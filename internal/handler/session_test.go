package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/qrtracker/internal/middleware"
	"github.com/mmeshcher/qrtracker/internal/models"
	"github.com/mmeshcher/qrtracker/internal/repository"
)

func TestSessionHandler(t *testing.T) {
	env := newTestEnv(t, repository.NewMemoryRepository())
	existingUser, existingCookie := env.session(t)

	tests := []struct {
		name        string
		prepare     func(r *http.Request)
		keepsUserID bool
	}{
		{
			name:    "positive: new visitor",
			prepare: func(r *http.Request) {},
		},
		{
			name:        "positive: existing cookie is refreshed",
			prepare:     func(r *http.Request) { r.AddCookie(existingCookie) },
			keepsUserID: true,
		},
		{
			name:        "positive: existing bearer token is refreshed",
			prepare:     func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+existingCookie.Value) },
			keepsUserID: true,
		},
		{
			name:    "positive: invalid cookie starts a new session",
			prepare: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: "forged"}) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodPost, "/api/session", nil)
			tt.prepare(request)
			w := httptest.NewRecorder()

			env.router.ServeHTTP(w, request)

			result := w.Result()
			defer result.Body.Close()

			require.Equal(t, http.StatusOK, result.StatusCode)
			assert.Equal(t, "application/json", result.Header.Get("Content-Type"))

			var resp models.SessionResponse
			require.NoError(t, json.NewDecoder(result.Body).Decode(&resp))

			if tt.keepsUserID {
				assert.Equal(t, existingUser, resp.UserID)
			} else {
				assert.NotEqual(t, existingUser, resp.UserID)
				_, err := uuid.Parse(resp.UserID)
				assert.NoError(t, err)
			}

			parsed, err := env.auth.ParseToken(resp.Token)
			require.NoError(t, err)
			assert.Equal(t, resp.UserID, parsed)

			cookies := result.Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, middleware.CookieName, cookies[0].Name)
			assert.Equal(t, resp.Token, cookies[0].Value)
		})
	}
}

func TestSessionCookieOpensAPI(t *testing.T) {
	env := newTestEnv(t, repository.NewMemoryRepository())

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/session", nil))
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)

	request := httptest.NewRequest(http.MethodGet, "/api/qr-codes", nil)
	request.AddCookie(cookies[0])
	list := httptest.NewRecorder()

	env.router.ServeHTTP(list, request)

	assert.Equal(t, http.StatusOK, list.Code)
	assert.JSONEq(t, `[]`, list.Body.String())
}
