package handler

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/qrtracker/internal/models"
)

// SessionHandler issues an anonymous session. A caller that already holds a
// valid session keeps its user id and gets a fresh token.
func (h *Handler) SessionHandler(rw http.ResponseWriter, r *http.Request) {
	userID, err := h.auth.UserFromRequest(r)
	if err != nil {
		userID = uuid.NewString()
		h.logger.Info("New session user", zap.String("userID", userID))
	}

	token, err := h.auth.IssueToken(userID)
	if err != nil {
		h.logger.Error("Failed to issue session token", zap.Error(err))
		writeError(rw, http.StatusInternalServerError, "failed to issue session")
		return
	}

	h.auth.SetSessionCookie(rw, token)
	h.writeJSON(rw, http.StatusOK, models.SessionResponse{
		UserID: userID,
		Token:  token,
	})
}
