package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/qrtracker/internal/middleware"
	"github.com/mmeshcher/qrtracker/internal/models"
)

func (h *Handler) CreateQRCodeHandler(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.GetUserIDFromContext(ctx)

	var req models.CreateQRCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Failed to decode create request", zap.Error(err))
		writeError(rw, http.StatusBadRequest, "invalid request body")
		return
	}

	qr, err := h.qrCodes.Create(ctx, userID, req)
	if err != nil {
		h.writeServiceError(rw, err, "failed to create qr code")
		return
	}

	h.writeJSON(rw, http.StatusCreated, qr)
}

func (h *Handler) ListQRCodesHandler(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.GetUserIDFromContext(ctx)

	codes, err := h.qrCodes.List(ctx, userID)
	if err != nil {
		h.writeServiceError(rw, err, "failed to list qr codes")
		return
	}

	if codes == nil {
		codes = []models.QRCodeWithCount{}
	}
	h.writeJSON(rw, http.StatusOK, codes)
}

func (h *Handler) GetQRCodeHandler(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.GetUserIDFromContext(ctx)

	qr, err := h.qrCodes.Get(ctx, userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(rw, err, "failed to load qr code")
		return
	}

	h.writeJSON(rw, http.StatusOK, qr)
}

func (h *Handler) UpdateQRCodeHandler(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.GetUserIDFromContext(ctx)

	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(rw, http.StatusBadRequest, "id is required")
		return
	}

	var req models.UpdateQRCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Failed to decode update request", zap.Error(err))
		writeError(rw, http.StatusBadRequest, "invalid request body")
		return
	}

	qr, err := h.qrCodes.Update(ctx, userID, id, req)
	if err != nil {
		h.writeServiceError(rw, err, "failed to update qr code")
		return
	}

	h.writeJSON(rw, http.StatusOK, qr)
}

func (h *Handler) DeleteQRCodeHandler(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.GetUserIDFromContext(ctx)

	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(rw, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.qrCodes.Delete(ctx, userID, id); err != nil {
		h.writeServiceError(rw, err, "failed to delete qr code")
		return
	}

	h.writeJSON(rw, http.StatusOK, models.SuccessResponse{Success: true})
}
