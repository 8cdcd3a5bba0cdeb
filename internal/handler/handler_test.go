package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/qrtracker/internal/geo"
	"github.com/mmeshcher/qrtracker/internal/messaging"
	"github.com/mmeshcher/qrtracker/internal/middleware"
	"github.com/mmeshcher/qrtracker/internal/models"
	"github.com/mmeshcher/qrtracker/internal/repository"
	"github.com/mmeshcher/qrtracker/internal/service"
)

const (
	testSecret  = "test-secret-key"
	testBaseURL = "http://localhost:8080"

	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
)

type fixedResolver geo.Location

func (f fixedResolver) Lookup(context.Context, string) geo.Location {
	return geo.Location(f)
}

// failingScanRepo refuses every scan insert.
type failingScanRepo struct {
	*repository.MemoryRepository
}

func (failingScanRepo) InsertScan(context.Context, *models.Scan) error {
	return errors.New("disk full")
}

type brokenPinger struct{}

func (brokenPinger) Ping(context.Context) error {
	return errors.New("connection refused")
}

type testEnv struct {
	repo     repository.Repository
	qrCodes  *service.QRCodeService
	recorder *service.ScanRecorder
	auth     *middleware.AuthMiddleware
	handler  *Handler
	router   http.Handler
}

func newTestEnv(t *testing.T, repo repository.Repository) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	recorder := service.NewScanRecorder(repo, messaging.NopPublisher{}, logger, 16, 1)
	t.Cleanup(recorder.Close)

	qrCodes := service.NewQRCodeService(repo, nil, testBaseURL, logger)
	dispatcher := service.NewDispatcher(repo, fixedResolver{Country: "Germany", City: "Berlin"}, recorder, logger)
	auth := middleware.NewAuthMiddleware(testSecret, logger)

	h := NewHandler(qrCodes, dispatcher, auth, repo, logger)
	return &testEnv{
		repo:     repo,
		qrCodes:  qrCodes,
		recorder: recorder,
		auth:     auth,
		handler:  h,
		router:   h.SetupRouter(),
	}
}

// session returns a fresh user id and a cookie carrying its token.
func (e *testEnv) session(t *testing.T) (string, *http.Cookie) {
	t.Helper()
	userID := uuid.NewString()
	token, err := e.auth.IssueToken(userID)
	require.NoError(t, err)
	return userID, &http.Cookie{Name: middleware.CookieName, Value: token}
}

func (e *testEnv) createCode(t *testing.T, userID string, req models.CreateQRCodeRequest) *models.QRCode {
	t.Helper()
	qr, err := e.qrCodes.Create(context.Background(), userID, req)
	require.NoError(t, err)
	return qr
}

func (e *testEnv) scans(t *testing.T, qrCodeID string) []models.Scan {
	t.Helper()
	scans, err := e.repo.ListScans(context.Background(), qrCodeID)
	require.NoError(t, err)
	return scans
}
