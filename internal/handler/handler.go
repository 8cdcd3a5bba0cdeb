package handler

import (
	"context"

	"github.com/mmeshcher/qrtracker/internal/middleware"
	"github.com/mmeshcher/qrtracker/internal/service"
	"go.uber.org/zap"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	qrCodes    *service.QRCodeService
	dispatcher *service.Dispatcher
	auth       *middleware.AuthMiddleware
	db         Pinger
	logger     *zap.Logger
}

func NewHandler(qrCodes *service.QRCodeService, dispatcher *service.Dispatcher, auth *middleware.AuthMiddleware, db Pinger, logger *zap.Logger) *Handler {
	return &Handler{
		qrCodes:    qrCodes,
		dispatcher: dispatcher,
		auth:       auth,
		db:         db,
		logger:     logger,
	}
}
