package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/qrtracker/internal/models"
	"github.com/mmeshcher/qrtracker/internal/qrimage"
	"github.com/mmeshcher/qrtracker/internal/repository"
	"github.com/mmeshcher/qrtracker/internal/storage"
)

const (
	imageUploadTimeout = 30 * time.Second
	uploadedImageSize  = 512
	imageContentType   = "image/png"
)

// LogoLoader resolves a code's logo_url to an image drawn over the QR center.
type LogoLoader interface {
	Fetch(ctx context.Context, logoURL string) (image.Image, error)
}

type LogoLoaderFunc func(ctx context.Context, logoURL string) (image.Image, error)

func (f LogoLoaderFunc) Fetch(ctx context.Context, logoURL string) (image.Image, error) {
	return f(ctx, logoURL)
}

type Option func(*QRCodeService)

// WithCodeGenerator replaces the random short-code source.
func WithCodeGenerator(gen CodeGenerator) Option {
	return func(s *QRCodeService) {
		s.genCode = gen
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *QRCodeService) {
		s.now = now
	}
}

func WithLogoLoader(loader LogoLoader) Option {
	return func(s *QRCodeService) {
		s.logos = loader
	}
}

type QRCodeService struct {
	repo    repository.Repository
	store   storage.ImageStore
	baseURL string
	logger  *zap.Logger
	genCode CodeGenerator
	now     func() time.Time
	logos   LogoLoader

	uploads sync.WaitGroup
}

func NewQRCodeService(repo repository.Repository, store storage.ImageStore, baseURL string, logger *zap.Logger, opts ...Option) *QRCodeService {
	if store == nil {
		store = storage.NopStore{}
	}
	s := &QRCodeService{
		repo:    repo,
		store:   store,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
		genCode: randomShortCode,
		now:     time.Now,
		logos:   qrimage.NewLogoFetcher(qrimage.DefaultLogoTimeout),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TrackingURL is the URL encoded in the QR image.
func (s *QRCodeService) TrackingURL(qr *models.QRCode) string {
	if qr.Type == models.QRTypeDynamic && qr.ShortCode != nil && *qr.ShortCode != "" {
		u, _ := url.JoinPath(s.baseURL, "r", *qr.ShortCode)
		return u
	}
	u, _ := url.JoinPath(s.baseURL, "scan", qr.Hash)
	return u
}

func (s *QRCodeService) Create(ctx context.Context, userID string, req models.CreateQRCodeRequest) (*models.QRCode, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	qr, err := s.newQRCode(userID, req)
	if err != nil {
		s.logger.Warn("Invalid QR code request", zap.String("userID", userID), zap.Error(err))
		return nil, err
	}

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		qr.CreatedAt = s.now().UTC()
		qr.Hash = computeHash(userID, qr.URL, qr.CreatedAt)

		if qr.Type == models.QRTypeDynamic {
			code, err := s.generateShortCode(ctx)
			if err != nil {
				return nil, err
			}
			qr.ShortCode = &code
		}

		err = s.repo.CreateQRCode(ctx, qr)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrConflict) {
			s.logger.Debug("Identifier collision, retrying",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}
		s.logger.Error("Failed to save QR code", zap.Error(err))
		return nil, fmt.Errorf("save qr code: %w", err)
	}
	if err != nil {
		s.logger.Error("Failed to generate unique identifiers", zap.Error(err))
		return nil, ErrGenerateID
	}

	s.logger.Info("QR code created",
		zap.String("userID", userID),
		zap.String("id", qr.ID),
		zap.String("type", string(qr.Type)))

	s.scheduleImageUpload(*qr)
	return s.present(qr), nil
}

func (s *QRCodeService) newQRCode(userID string, req models.CreateQRCodeRequest) (*models.QRCode, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	target := strings.TrimSpace(req.URL)
	if target == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	if !validAbsoluteURL(target) {
		return nil, fmt.Errorf("%w: url must be an absolute URL", ErrInvalidInput)
	}

	target2 := strings.TrimSpace(req.URL2)
	if target2 != "" && !validAbsoluteURL(target2) {
		return nil, fmt.Errorf("%w: url2 must be an absolute URL", ErrInvalidInput)
	}

	qrType := models.QRTypeStatic
	switch strings.ToUpper(strings.TrimSpace(req.Type)) {
	case "", string(models.QRTypeStatic):
	case string(models.QRTypeDynamic):
		qrType = models.QRTypeDynamic
	default:
		return nil, fmt.Errorf("%w: type must be STATIC or DYNAMIC", ErrInvalidInput)
	}

	fg, err := colorOrDefault(req.Color, qrimage.DefaultColor, "color")
	if err != nil {
		return nil, err
	}
	bg, err := colorOrDefault(req.BackgroundColor, qrimage.DefaultBackground, "background_color")
	if err != nil {
		return nil, err
	}
	eye, err := colorOrDefault(req.EyeColor, fg, "eye_color")
	if err != nil {
		return nil, err
	}

	pattern, err := oneOf(req.PatternStyle, "pattern_style", models.PatternSquare, models.PatternDots, models.PatternRounded)
	if err != nil {
		return nil, err
	}
	eyeStyle, err := oneOf(req.EyeStyle, "eye_style", models.EyeSquare, models.EyeCircle)
	if err != nil {
		return nil, err
	}

	logo := strings.TrimSpace(req.LogoURL)
	if logo != "" && !validAbsoluteURL(logo) {
		return nil, fmt.Errorf("%w: logo_url must be an absolute URL", ErrInvalidInput)
	}

	return &models.QRCode{
		ID:              uuid.NewString(),
		UserID:          userID,
		Name:            name,
		URL:             target,
		URL2:            target2,
		Type:            qrType,
		Color:           fg,
		BackgroundColor: bg,
		PatternStyle:    pattern,
		EyeStyle:        eyeStyle,
		EyeColor:        eye,
		LogoURL:         logo,
		IsActive:        true,
	}, nil
}

// generateShortCode tries short codes of the default length first and falls
// back to a longer code once the attempts are used up.
func (s *QRCodeService) generateShortCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt <= shortCodeAttempts; attempt++ {
		length := shortCodeLength
		if attempt == shortCodeAttempts {
			length = shortCodeLongLen
		}

		code, err := s.genCode(length)
		if err != nil {
			return "", fmt.Errorf("generate short code: %w", err)
		}

		exists, err := s.repo.ShortCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check short code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrGenerateID
}

func (s *QRCodeService) List(ctx context.Context, userID string) ([]models.QRCodeWithCount, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	codes, err := s.repo.ListUserQRCodes(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list QR codes", zap.String("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("list qr codes: %w", err)
	}

	for i := range codes {
		codes[i].TrackingURL = s.TrackingURL(&codes[i].QRCode)
	}
	return codes, nil
}

func (s *QRCodeService) Get(ctx context.Context, userID, id string) (*models.QRCode, error) {
	qr, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.present(qr), nil
}

func (s *QRCodeService) Update(ctx context.Context, userID, id string, req models.UpdateQRCodeRequest) (*models.QRCode, error) {
	current, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	var upd repository.QRCodeUpdate
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if req.URL != nil || req.URL2 != nil {
		if current.Type != models.QRTypeDynamic {
			return nil, fmt.Errorf("%w: destination of a STATIC code cannot change", ErrInvalidInput)
		}
	}
	if req.URL != nil {
		target := strings.TrimSpace(*req.URL)
		if !validAbsoluteURL(target) {
			return nil, fmt.Errorf("%w: url must be an absolute URL", ErrInvalidInput)
		}
		upd.URL = &target
	}
	if req.URL2 != nil {
		target2 := strings.TrimSpace(*req.URL2)
		if target2 != "" && !validAbsoluteURL(target2) {
			return nil, fmt.Errorf("%w: url2 must be an absolute URL", ErrInvalidInput)
		}
		upd.URL2 = &target2
	}
	upd.IsActive = req.IsActive

	updated, err := s.repo.UpdateQRCode(ctx, userID, id, upd)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		s.logger.Error("Failed to update QR code", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("update qr code: %w", err)
	}

	s.logger.Info("QR code updated", zap.String("userID", userID), zap.String("id", id))
	return s.present(updated), nil
}

// Delete removes the code and, through the store's cascade, its scans.
func (s *QRCodeService) Delete(ctx context.Context, userID, id string) error {
	qr, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteUserQRCode(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		s.logger.Error("Failed to delete QR code", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("delete qr code: %w", err)
	}

	if qr.ImagePath != "" && s.store.Enabled() {
		if err := s.store.Delete(ctx, qr.ImagePath); err != nil {
			s.logger.Warn("Failed to delete QR image",
				zap.String("path", qr.ImagePath),
				zap.Error(err))
		}
	}

	s.logger.Info("QR code deleted", zap.String("userID", userID), zap.String("id", id))
	return nil
}

// Image renders the code's tracking URL with its stored styling.
func (s *QRCodeService) Image(ctx context.Context, userID, id string, size int) ([]byte, error) {
	qr, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	png, err := s.render(ctx, qr, size)
	if err != nil {
		return nil, fmt.Errorf("render qr image: %w", err)
	}
	return png, nil
}

// render draws the code without its logo when the logo cannot be loaded.
func (s *QRCodeService) render(ctx context.Context, qr *models.QRCode, size int) ([]byte, error) {
	opts := qrimage.Options{
		Size:         size,
		Color:        qr.Color,
		Background:   qr.BackgroundColor,
		PatternStyle: qr.PatternStyle,
		EyeStyle:     qr.EyeStyle,
		EyeColor:     qr.EyeColor,
	}

	if qr.LogoURL != "" && s.logos != nil {
		logo, err := s.logos.Fetch(ctx, qr.LogoURL)
		if err != nil {
			s.logger.Warn("Failed to load QR logo",
				zap.String("id", qr.ID),
				zap.String("logo_url", qr.LogoURL),
				zap.Error(err))
		} else {
			opts.Logo = logo
		}
	}

	return qrimage.Render(s.TrackingURL(qr), opts)
}

func (s *QRCodeService) owned(ctx context.Context, userID, id string) (*models.QRCode, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if !validID(id) {
		return nil, ErrNotFound
	}

	qr, err := s.repo.GetUserQRCode(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		s.logger.Error("Failed to load QR code", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("load qr code: %w", err)
	}
	return qr, nil
}

func (s *QRCodeService) present(qr *models.QRCode) *models.QRCode {
	qr.TrackingURL = s.TrackingURL(qr)
	return qr
}

func (s *QRCodeService) scheduleImageUpload(qr models.QRCode) {
	if !s.store.Enabled() {
		return
	}

	s.uploads.Add(1)
	go func() {
		defer s.uploads.Done()

		ctx, cancel := context.WithTimeout(context.Background(), imageUploadTimeout)
		defer cancel()

		if err := s.uploadImage(ctx, &qr); err != nil {
			s.logger.Warn("Failed to upload QR image",
				zap.String("id", qr.ID),
				zap.Error(err))
		}
	}()
}

func (s *QRCodeService) uploadImage(ctx context.Context, qr *models.QRCode) error {
	png, err := s.render(ctx, qr, uploadedImageSize)
	if err != nil {
		return err
	}

	key := "qr/" + qr.ID + ".png"
	imageURL, err := s.store.Put(ctx, key, png, imageContentType)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateQRCodeImage(ctx, qr.ID, imageURL, key); err != nil {
		return fmt.Errorf("attach image: %w", err)
	}

	s.logger.Debug("QR image uploaded", zap.String("id", qr.ID), zap.String("url", imageURL))
	return nil
}

// Wait blocks until background image uploads have finished.
func (s *QRCodeService) Wait() {
	s.uploads.Wait()
}

func colorOrDefault(value, def, field string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return def, nil
	}
	c, err := qrimage.NormalizeColor(value)
	if err != nil {
		return "", fmt.Errorf("%w: %s must be a hex color", ErrInvalidInput, field)
	}
	return c, nil
}

func oneOf(value, field string, allowed ...string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return allowed[0], nil
	}
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %s must be one of %s", ErrInvalidInput, field, strings.Join(allowed, ", "))
}
