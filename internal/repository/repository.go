package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmeshcher/qrtracker/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	ErrDuplicateHash      = fmt.Errorf("%w: hash already exists", ErrConflict)
	ErrDuplicateShortCode = fmt.Errorf("%w: short code already exists", ErrConflict)
)

// Repository is implemented by the PostgreSQL and in-memory stores.
//
// Lookups by owner return ErrNotFound both for unknown ids and for codes owned
// by somebody else.
type Repository interface {
	CreateQRCode(ctx context.Context, qr *models.QRCode) error
	ShortCodeExists(ctx context.Context, code string) (bool, error)
	GetQRCodeByHash(ctx context.Context, hash string) (*models.QRCode, error)
	GetQRCodeByShortCode(ctx context.Context, code string) (*models.QRCode, error)
	GetUserQRCode(ctx context.Context, userID, id string) (*models.QRCode, error)
	ListUserQRCodes(ctx context.Context, userID string) ([]models.QRCodeWithCount, error)
	UpdateQRCode(ctx context.Context, userID, id string, upd QRCodeUpdate) (*models.QRCode, error)
	DeleteUserQRCode(ctx context.Context, userID, id string) error
	UpdateQRCodeImage(ctx context.Context, id, imageURL, imagePath string) error

	InsertScan(ctx context.Context, scan *models.Scan) error
	IncrementScanCount(ctx context.Context, qrCodeID string) error
	ListScans(ctx context.Context, qrCodeID string) ([]models.Scan, error)

	Ping(ctx context.Context) error
	Close() error
}

// QRCodeUpdate holds the mutable columns; nil fields keep their value.
type QRCodeUpdate struct {
	Name     *string
	URL      *string
	URL2     *string
	IsActive *bool
}

func (u QRCodeUpdate) Empty() bool {
	return u.Name == nil && u.URL == nil && u.URL2 == nil && u.IsActive == nil
}
