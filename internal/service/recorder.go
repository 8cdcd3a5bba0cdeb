package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/qrtracker/internal/messaging"
	"github.com/mmeshcher/qrtracker/internal/models"
	"github.com/mmeshcher/qrtracker/internal/repository"
)

const (
	DefaultScanQueueSize = 1024
	DefaultScanWorkers   = 4

	scanWriteTimeout = 5 * time.Second
)

// ScanRecorder persists scans in the background so redirects never wait on
// the database. Submit never blocks; when the queue is full the scan is
// dropped.
type ScanRecorder struct {
	repo      repository.Repository
	publisher messaging.Publisher
	logger    *zap.Logger

	tasks   chan *models.Scan
	workers int
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewScanRecorder(repo repository.Repository, publisher messaging.Publisher, logger *zap.Logger, queueSize, workers int) *ScanRecorder {
	if queueSize <= 0 {
		queueSize = DefaultScanQueueSize
	}
	if workers <= 0 {
		workers = DefaultScanWorkers
	}
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}

	r := &ScanRecorder{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		tasks:     make(chan *models.Scan, queueSize),
		workers:   workers,
	}

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	return r
}

// Submit queues scan for recording and reports whether it was accepted.
func (r *ScanRecorder) Submit(scan *models.Scan) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.Warn("Scan recorder closed, dropping scan",
			zap.String("qr_code_id", scan.QRCodeID))
		return false
	}

	select {
	case r.tasks <- scan:
		return true
	default:
		r.logger.Warn("Scan queue is full, dropping scan",
			zap.String("qr_code_id", scan.QRCodeID))
		return false
	}
}

func (r *ScanRecorder) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("Scan worker started", zap.Int("workerID", id))
	for scan := range r.tasks {
		r.record(scan)
	}
	r.logger.Debug("Scan worker stopped", zap.Int("workerID", id))
}

// record runs the insert and the counter increment concurrently. Their
// failures are independent and only logged.
func (r *ScanRecorder) record(scan *models.Scan) {
	var g errgroup.Group

	g.Go(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), scanWriteTimeout)
		defer cancel()

		if err := r.repo.InsertScan(ctx, scan); err != nil {
			r.logger.Error("Failed to insert scan",
				zap.String("qr_code_id", scan.QRCodeID),
				zap.Error(err))
			return err
		}

		if err := r.publisher.PublishScan(ctx, scan); err != nil {
			r.logger.Warn("Failed to publish scan",
				zap.String("scan_id", scan.ID),
				zap.Error(err))
		}
		return nil
	})

	g.Go(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), scanWriteTimeout)
		defer cancel()

		if err := r.repo.IncrementScanCount(ctx, scan.QRCodeID); err != nil {
			r.logger.Error("Failed to increment scan count",
				zap.String("qr_code_id", scan.QRCodeID),
				zap.Error(err))
			return err
		}
		return nil
	})

	_ = g.Wait()
}

// Close stops accepting scans and waits until queued ones are recorded.
func (r *ScanRecorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.tasks)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("All scan workers stopped")
}
