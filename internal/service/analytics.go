package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/qrtracker/internal/models"
)

const (
	recentScansLimit = 10
	unknownBucket    = "Unknown"
	dateLayout       = "2006-01-02"
)

// Analytics aggregates all scans of an owned code.
func (s *QRCodeService) Analytics(ctx context.Context, userID, id string) (*models.Analytics, error) {
	qr, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	scans, err := s.repo.ListScans(ctx, qr.ID)
	if err != nil {
		s.logger.Error("Failed to load scans", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("list scans: %w", err)
	}

	result := aggregateScans(scans)
	result.QRCode = *s.present(qr)
	return result, nil
}

// aggregateScans expects scans ordered newest first.
func aggregateScans(scans []models.Scan) *models.Analytics {
	a := &models.Analytics{
		TotalScans:     len(scans),
		ScansByDate:    make(map[string]int),
		ScansByCountry: make(map[string]int),
		ScansByDevice:  make(map[string]int),
		ScansByBrowser: make(map[string]int),
	}

	for _, scan := range scans {
		a.ScansByDate[scan.ScannedAt.UTC().Format(dateLayout)]++
		a.ScansByCountry[bucket(scan.Country)]++
		a.ScansByDevice[bucket(scan.DeviceType)]++
		a.ScansByBrowser[bucket(scan.Browser)]++
	}

	recent := scans
	if len(recent) > recentScansLimit {
		recent = recent[:recentScansLimit]
	}
	a.RecentScans = append(make([]models.Scan, 0, len(recent)), recent...)

	return a
}

func bucket(v string) string {
	if v == "" {
		return unknownBucket
	}
	return v
}
