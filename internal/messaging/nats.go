// Package messaging publishes scan events for downstream consumers.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/mmeshcher/qrtracker/internal/models"
)

const DefaultSubject = "qrtracker.scans"

type Publisher interface {
	PublishScan(ctx context.Context, scan *models.Scan) error
	Close()
}

// ScanMessage is the payload published for every recorded scan.
type ScanMessage struct {
	ScanID     string    `json:"scan_id"`
	QRCodeID   string    `json:"qr_code_id"`
	Country    string    `json:"country,omitempty"`
	City       string    `json:"city,omitempty"`
	DeviceType string    `json:"device_type"`
	Browser    string    `json:"browser"`
	OS         string    `json:"os"`
	Language   string    `json:"language,omitempty"`
	ScannedAt  time.Time `json:"scanned_at"`
}

type natsConn interface {
	Publish(subj string, data []byte) error
	Close()
}

type NATSPublisher struct {
	conn    natsConn
	subject string
	logger  *zap.Logger
}

func NewNATSPublisher(url, subject string, logger *zap.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("qrtracker"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("Connected to NATS", zap.String("url", url), zap.String("subject", subject))
	return newNATSPublisher(conn, subject, logger), nil
}

func newNATSPublisher(conn natsConn, subject string, logger *zap.Logger) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}
}

func (p *NATSPublisher) PublishScan(ctx context.Context, scan *models.Scan) error {
	msg := ScanMessage{
		ScanID:     scan.ID,
		QRCodeID:   scan.QRCodeID,
		Country:    scan.Country,
		City:       scan.City,
		DeviceType: scan.DeviceType,
		Browser:    scan.Browser,
		OS:         scan.OS,
		Language:   scan.Language,
		ScannedAt:  scan.ScannedAt,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal scan event: %w", err)
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		p.logger.Error("Failed to publish scan event",
			zap.String("scan_id", scan.ID),
			zap.Error(err))
		return fmt.Errorf("failed to publish scan event: %w", err)
	}

	p.logger.Debug("Scan event published", zap.String("scan_id", scan.ID))
	return nil
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
		p.logger.Info("NATS connection closed")
	}
}

type NopPublisher struct{}

func (NopPublisher) PublishScan(context.Context, *models.Scan) error { return nil }

func (NopPublisher) Close() {}
