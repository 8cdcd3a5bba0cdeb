package handler

import (
	"net/http"

	"go.uber.org/zap"
)

func (h *Handler) PingHandler(rw http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Error("Database ping failed", zap.Error(err))
		writeError(rw, http.StatusInternalServerError, "database unavailable")
		return
	}

	rw.WriteHeader(http.StatusOK)
}
