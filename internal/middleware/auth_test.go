package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIssueAndParseToken(t *testing.T) {
	auth := NewAuthMiddleware("test-secret", zap.NewNop())
	userID := uuid.NewString()

	token, err := auth.IssueToken(userID)
	require.NoError(t, err)

	got, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestParseTokenRejects(t *testing.T) {
	auth := NewAuthMiddleware("test-secret", zap.NewNop())
	other := NewAuthMiddleware("other-secret", zap.NewNop())
	userID := uuid.NewString()

	foreign, err := other.IssueToken(userID)
	require.NoError(t, err)

	expiredIssuer := NewAuthMiddleware("test-secret", zap.NewNop())
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * SessionTTL) }
	expired, err := expiredIssuer.IssueToken(userID)
	require.NoError(t, err)

	notUUID, err := auth.IssueToken("admin")
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: userID}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.token"},
		{name: "wrong secret", token: foreign},
		{name: "expired", token: expired},
		{name: "subject is not a uuid", token: notUUID},
		{name: "alg none", token: noneAlg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.ParseToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidSession)
		})
	}
}

func TestRequireSession(t *testing.T) {
	auth := NewAuthMiddleware("test-secret", zap.NewNop())
	userID := uuid.NewString()
	token, err := auth.IssueToken(userID)
	require.NoError(t, err)

	tests := []struct {
		name       string
		prepare    func(r *http.Request)
		wantStatus int
		wantUserID string
	}{
		{
			name:       "positive: cookie",
			prepare:    func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: token}) },
			wantStatus: http.StatusOK,
			wantUserID: userID,
		},
		{
			name:       "positive: bearer header",
			prepare:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			wantStatus: http.StatusOK,
			wantUserID: userID,
		},
		{
			name: "positive: header wins over stale cookie",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: CookieName, Value: "stale"})
				r.Header.Set("Authorization", "bearer "+token)
			},
			wantStatus: http.StatusOK,
			wantUserID: userID,
		},
		{
			name:       "negative: no session",
			prepare:    func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "negative: tampered cookie",
			prepare:    func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: token + "x"}) },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "negative: basic auth",
			prepare:    func(r *http.Request) { r.Header.Set("Authorization", "Basic Zm9vOmJhcg==") },
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUserID string
			handler := auth.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUserID, _ = GetUserIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/qr-codes", nil)
			tt.prepare(req)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantUserID, gotUserID)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
				assert.JSONEq(t, `{"error":"authentication required"}`, w.Body.String())
			}
		})
	}
}

func TestSetSessionCookie(t *testing.T) {
	auth := NewAuthMiddleware("test-secret", zap.NewNop())
	w := httptest.NewRecorder()

	auth.SetSessionCookie(w, "token-value")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, "token-value", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, "/", cookies[0].Path)
}

func TestGetUserIDFromContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := GetUserIDFromContext(req.Context())
	assert.False(t, ok)

	_, ok = GetUserIDFromContext(WithUserID(req.Context(), ""))
	assert.False(t, ok)

	id, ok := GetUserIDFromContext(WithUserID(req.Context(), "u-1"))
	assert.True(t, ok)
	assert.Equal(t, "u-1", id)
}
