package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/mmeshcher/qrtracker/internal/models"
)

// MemoryRepository keeps everything in process memory. It is used when no
// DATABASE_DSN is configured and in tests.
type MemoryRepository struct {
	mu        sync.RWMutex
	codes     map[string]models.QRCode
	byHash    map[string]string
	byShort   map[string]string
	scans     map[string][]models.Scan
	closeOnce sync.Once
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		codes:   make(map[string]models.QRCode),
		byHash:  make(map[string]string),
		byShort: make(map[string]string),
		scans:   make(map[string][]models.Scan),
	}
}

func (m *MemoryRepository) CreateQRCode(_ context.Context, qr *models.QRCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byHash[qr.Hash]; ok {
		return ErrDuplicateHash
	}
	if qr.ShortCode != nil {
		if _, ok := m.byShort[*qr.ShortCode]; ok {
			return ErrDuplicateShortCode
		}
	}
	if _, ok := m.codes[qr.ID]; ok {
		return ErrConflict
	}

	stored := cloneQRCode(*qr)
	m.codes[qr.ID] = stored
	m.byHash[qr.Hash] = qr.ID
	if qr.ShortCode != nil {
		m.byShort[*qr.ShortCode] = qr.ID
	}
	return nil
}

func (m *MemoryRepository) ShortCodeExists(_ context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.byShort[code]
	return ok, nil
}

func (m *MemoryRepository) GetQRCodeByHash(_ context.Context, hash string) (*models.QRCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.lookup(m.byHash[hash])
}

func (m *MemoryRepository) GetQRCodeByShortCode(_ context.Context, code string) (*models.QRCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.lookup(m.byShort[code])
}

func (m *MemoryRepository) GetUserQRCode(_ context.Context, userID, id string) (*models.QRCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	qr, ok := m.codes[id]
	if !ok || qr.UserID != userID {
		return nil, ErrNotFound
	}
	out := cloneQRCode(qr)
	return &out, nil
}

// lookup expects the read lock to be held.
func (m *MemoryRepository) lookup(id string) (*models.QRCode, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	qr, ok := m.codes[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneQRCode(qr)
	return &out, nil
}

func (m *MemoryRepository) ListUserQRCodes(_ context.Context, userID string) ([]models.QRCodeWithCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]models.QRCodeWithCount, 0)
	for id, qr := range m.codes {
		if qr.UserID != userID {
			continue
		}
		result = append(result, models.QRCodeWithCount{
			QRCode:    cloneQRCode(qr),
			ScanCount: int64(len(m.scans[id])),
		})
	}

	// id breaks ties so the order matches the postgres store
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (m *MemoryRepository) UpdateQRCode(_ context.Context, userID, id string, upd QRCodeUpdate) (*models.QRCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	qr, ok := m.codes[id]
	if !ok || qr.UserID != userID {
		return nil, ErrNotFound
	}

	if upd.Name != nil {
		qr.Name = *upd.Name
	}
	if upd.URL != nil {
		qr.URL = *upd.URL
	}
	if upd.URL2 != nil {
		qr.URL2 = *upd.URL2
	}
	if upd.IsActive != nil {
		qr.IsActive = *upd.IsActive
	}
	m.codes[id] = qr

	out := cloneQRCode(qr)
	return &out, nil
}

// DeleteUserQRCode removes the code together with its scans.
func (m *MemoryRepository) DeleteUserQRCode(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	qr, ok := m.codes[id]
	if !ok || qr.UserID != userID {
		return ErrNotFound
	}

	delete(m.codes, id)
	delete(m.byHash, qr.Hash)
	if qr.ShortCode != nil {
		delete(m.byShort, *qr.ShortCode)
	}
	delete(m.scans, id)
	return nil
}

func (m *MemoryRepository) UpdateQRCodeImage(_ context.Context, id, imageURL, imagePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	qr, ok := m.codes[id]
	if !ok {
		return ErrNotFound
	}
	qr.ImageURL = imageURL
	qr.ImagePath = imagePath
	m.codes[id] = qr
	return nil
}

func (m *MemoryRepository) InsertScan(_ context.Context, scan *models.Scan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.codes[scan.QRCodeID]; !ok {
		return ErrNotFound
	}
	m.scans[scan.QRCodeID] = append(m.scans[scan.QRCodeID], cloneScan(*scan))
	return nil
}

func (m *MemoryRepository) IncrementScanCount(_ context.Context, qrCodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	qr, ok := m.codes[qrCodeID]
	if !ok {
		return ErrNotFound
	}
	qr.TotalScans++
	m.codes[qrCodeID] = qr
	return nil
}

// ListScans returns the scans of a code, newest first.
func (m *MemoryRepository) ListScans(_ context.Context, qrCodeID string) ([]models.Scan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.scans[qrCodeID]
	result := make([]models.Scan, 0, len(stored))
	for _, s := range stored {
		result = append(result, cloneScan(s))
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ScannedAt.After(result[j].ScannedAt)
	})
	return result, nil
}

func (m *MemoryRepository) Ping(context.Context) error {
	return nil
}

func (m *MemoryRepository) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.codes = make(map[string]models.QRCode)
		m.byHash = make(map[string]string)
		m.byShort = make(map[string]string)
		m.scans = make(map[string][]models.Scan)
	})
	return nil
}

func cloneQRCode(qr models.QRCode) models.QRCode {
	if qr.ShortCode != nil {
		code := *qr.ShortCode
		qr.ShortCode = &code
	}
	return qr
}

func cloneScan(s models.Scan) models.Scan {
	if s.Latitude != nil {
		lat := *s.Latitude
		s.Latitude = &lat
	}
	if s.Longitude != nil {
		lon := *s.Longitude
		s.Longitude = &lon
	}
	return s
}
