package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/qrtracker/internal/middleware"
	"github.com/mmeshcher/qrtracker/internal/qrimage"
)

// QRCodeImageHandler renders the code as PNG. A missing or malformed size
// falls back to the default; oversized requests are capped by the renderer.
func (h *Handler) QRCodeImageHandler(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.GetUserIDFromContext(ctx)

	size := qrimage.DefaultSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			size = n
		}
	}

	png, err := h.qrCodes.Image(ctx, userID, chi.URLParam(r, "id"), size)
	if err != nil {
		h.writeServiceError(rw, err, "failed to render qr code")
		return
	}

	rw.Header().Set("Content-Type", "image/png")
	rw.Header().Set("Content-Length", strconv.Itoa(len(png)))
	rw.WriteHeader(http.StatusOK)
	if _, err := rw.Write(png); err != nil {
		h.logger.Error("Failed to write image", zap.Error(err))
	}
}
