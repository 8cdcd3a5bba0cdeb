package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/qrtracker/internal/clientinfo"
	"github.com/mmeshcher/qrtracker/internal/geo"
	"github.com/mmeshcher/qrtracker/internal/models"
	"github.com/mmeshcher/qrtracker/internal/repository"
	"github.com/mmeshcher/qrtracker/internal/useragent"
)

// ScanRequest is the request metadata captured for a scan.
type ScanRequest struct {
	IP             string
	UserAgent      string
	Referer        string
	AcceptLanguage string
}

type ScanSubmitter interface {
	Submit(scan *models.Scan) bool
}

// Dispatcher resolves tracking URLs to their destination and hands the scan
// to the recorder.
type Dispatcher struct {
	repo     repository.Repository
	resolver geo.Resolver
	recorder ScanSubmitter
	logger   *zap.Logger
	now      func() time.Time
}

func NewDispatcher(repo repository.Repository, resolver geo.Resolver, recorder ScanSubmitter, logger *zap.Logger) *Dispatcher {
	if resolver == nil {
		resolver = geo.NopResolver{}
	}
	return &Dispatcher{
		repo:     repo,
		resolver: resolver,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

func (d *Dispatcher) ResolveByHash(ctx context.Context, hash string, req ScanRequest) (string, error) {
	qr, err := d.repo.GetQRCodeByHash(ctx, hash)
	return d.dispatch(ctx, qr, err, req)
}

func (d *Dispatcher) ResolveByShortCode(ctx context.Context, code string, req ScanRequest) (string, error) {
	qr, err := d.repo.GetQRCodeByShortCode(ctx, code)
	return d.dispatch(ctx, qr, err, req)
}

func (d *Dispatcher) dispatch(ctx context.Context, qr *models.QRCode, lookupErr error, req ScanRequest) (string, error) {
	if lookupErr != nil {
		if errors.Is(lookupErr, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("lookup qr code: %w", lookupErr)
	}

	if !qr.IsActive {
		return "", ErrInactive
	}

	ua := useragent.Classify(req.UserAgent)
	target := Destination(qr, ua)
	if !validAbsoluteURL(target) {
		d.logger.Warn("QR code has invalid destination",
			zap.String("qr_code_id", qr.ID),
			zap.String("target", target))
		return "", ErrInvalidTarget
	}

	loc := d.resolver.Lookup(ctx, req.IP)

	scan := &models.Scan{
		ID:             uuid.NewString(),
		QRCodeID:       qr.ID,
		IPAddress:      req.IP,
		UserAgent:      req.UserAgent,
		Referer:        req.Referer,
		AcceptLanguage: req.AcceptLanguage,
		Language:       clientinfo.Language(req.AcceptLanguage),
		Country:        loc.Country,
		City:           loc.City,
		Region:         loc.Region,
		Timezone:       loc.Timezone,
		Latitude:       loc.Latitude,
		Longitude:      loc.Longitude,
		DeviceType:     ua.DeviceType,
		Browser:        ua.Browser,
		OS:             ua.OS,
		ScannedAt:      d.now().UTC(),
	}
	d.recorder.Submit(scan)

	return target, nil
}

// Destination picks url2 for non-desktop devices when one is configured.
func Destination(qr *models.QRCode, ua useragent.Classification) string {
	if !ua.IsDesktop() && qr.URL2 != "" {
		return qr.URL2
	}
	return qr.URL
}
